package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tablero/internal/annotations"
	"tablero/internal/importer"
	"tablero/internal/kv"
	"tablero/internal/kv/memory"
)

const boardA = `{
  "id": "A",
  "name": "Estudio A",
  "lists": [{"id": "l1", "name": "Activos"}],
  "cards": [
    {"id": "c1", "name": "Pérez laboral", "pos": 1, "idList": "l1"},
    {"id": "c2", "name": "Gómez", "pos": 2, "idList": "l1"},
    {"id": "c3", "name": "Cerrada", "closed": true, "idList": "l1"}
  ],
  "customFields": [{"id": "f1", "name": "Importe a percibir"}],
  "customFieldItems": [{"idCustomField": "f1", "idModel": "c2", "value": {"number": "300"}}]
}`

const boardB = `{"id": "B", "name": "Estudio B", "lists": [{"id": "x"}], "cards": [{"id": "k1", "name": "civil", "idList": "x"}]}`

type recorder struct {
	mu      sync.Mutex
	changes []annotations.Change
	err     error
}

func (r *recorder) AnnotationChanged(_ context.Context, c annotations.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return r.err
}

type failingSet struct{ *memory.Store }

func (failingSet) Set(context.Context, string, string) error { return errors.New("disk full") }

var fixedNow = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC) }

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := New(memory.New(), Options{Notifier: rec, Now: fixedNow})

	if s.State() != StateEmpty {
		t.Fatalf("state = %v", s.State())
	}
	if _, err := s.Edit(ctx, "c1", "10", false); !errors.Is(err, ErrNoBoard) {
		t.Fatalf("edit before import: %v", err)
	}
	if _, err := s.Views(""); !errors.Is(err, ErrNoBoard) {
		t.Fatalf("views before import: %v", err)
	}
	if _, _, err := s.Export(); !errors.Is(err, ErrNoBoard) {
		t.Fatalf("export before import: %v", err)
	}

	v, err := s.Import(ctx, []byte(boardA))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if s.State() != StateReady || v.CardCount != 2 {
		t.Fatalf("state = %v, cards = %d", s.State(), v.CardCount)
	}

	v, err = s.Edit(ctx, "c1", "$ 1.500,755", true)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !v.PaidTotal.Equal(decimal.RequireFromString("1500.76")) {
		t.Fatalf("paid total = %s", v.PaidTotal)
	}
	if got := v.Categories[len(v.Categories)-1]; len(got.Cards) != 1 || got.Cards[0].ID != "c1" {
		t.Fatalf("c1 should be in COBRADO: %+v", got)
	}
	if len(rec.changes) != 1 || rec.changes[0].CardID != "c1" || !rec.changes[0].At.Equal(fixedNow()) {
		t.Fatalf("notifications = %+v", rec.changes)
	}

	if _, err := s.Edit(ctx, "c3", "1", false); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("archived card edit: %v", err)
	}
	if _, err := s.Edit(ctx, "nope", "1", false); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("unknown card edit: %v", err)
	}

	name, data, err := s.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "export-Estudio A-20240102-0304.csv" || len(data) == 0 {
		t.Fatalf("export = %q (%d bytes)", name, len(data))
	}

	_, rows, err := s.ExportRows()
	if err != nil || len(rows) != 3 || rows[0][0] != "Juicio" || rows[2][1] != "300,00" {
		t.Fatalf("rows = %v, %v", rows, err)
	}
}

func TestFailedImportKeepsPreviousBoard(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), Options{})
	if _, err := s.Import(ctx, []byte(boardA)); err != nil {
		t.Fatalf("import: %v", err)
	}

	_, err := s.Import(ctx, []byte("not json"))
	if !errors.Is(err, importer.ErrMalformedDocument) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	v, err := s.Views("")
	if err != nil || v.BoardID != "A" || s.State() != StateReady {
		t.Fatalf("previous board lost: %+v, %v", v, err)
	}

	empty := New(memory.New(), Options{})
	if _, err := empty.Import(ctx, []byte("[")); err == nil || empty.State() != StateEmpty {
		t.Fatalf("state after failed first import = %v", empty.State())
	}
}

func TestEditsSurviveReimport(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()

	s := New(backend, Options{})
	if _, err := s.Import(ctx, []byte(boardA)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := s.Edit(ctx, "c2", "42", true); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, err := s.Import(ctx, []byte(boardB)); err != nil {
		t.Fatalf("import B: %v", err)
	}

	fresh := New(backend, Options{})
	v, err := fresh.Import(ctx, []byte(boardA))
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	card := v.Lists[0].Cards[1]
	if card.ID != "c2" || !card.Amount.Equal(decimal.NewFromInt(42)) || !card.Paid {
		t.Fatalf("c2 = %+v", card)
	}
}

func TestEditPersistFailureKeepsSessionUsable(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := New(mem, Options{})
	if _, err := s.Import(ctx, []byte(boardA)); err != nil {
		t.Fatalf("import: %v", err)
	}
	s.backend = failingSet{mem}
	s.store = annotations.New(s.backend, "", "A")

	v, err := s.Edit(ctx, "c1", "5", true)
	if err == nil {
		t.Fatal("expected persist error")
	}
	if !v.PaidTotal.Equal(decimal.NewFromInt(5)) || s.State() != StateReady {
		t.Fatalf("in-memory edit lost: %s", v.PaidTotal)
	}
}

func TestNotifierFailureDoesNotFailEdit(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), Options{Notifier: &recorder{err: errors.New("broker down")}})
	if _, err := s.Import(ctx, []byte(boardA)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := s.Edit(ctx, "c1", "1", false); err != nil {
		t.Fatalf("edit: %v", err)
	}
}

// blockingNotifier holds every notification until release is closed.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) AnnotationChanged(ctx context.Context, _ annotations.Change) error {
	close(n.entered)
	select {
	case <-n.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSlowNotifierDoesNotBlockReads(t *testing.T) {
	ctx := context.Background()
	n := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(memory.New(), Options{Notifier: n})
	if _, err := s.Import(ctx, []byte(boardA)); err != nil {
		t.Fatalf("import: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Edit(ctx, "c1", "5", true)
		done <- err
	}()
	<-n.entered

	read := make(chan struct{})
	go func() {
		defer close(read)
		v, err := s.Views("")
		if err != nil || !v.PaidTotal.Equal(decimal.NewFromInt(5)) {
			t.Errorf("views during notification: total=%s err=%v", v.PaidTotal, err)
		}
		if _, _, err := s.Export(); err != nil {
			t.Errorf("export during notification: %v", err)
		}
	}()

	select {
	case <-read:
	case <-time.After(2 * time.Second):
		t.Fatal("reads blocked while a notification was in flight")
	}

	close(n.release)
	if err := <-done; err != nil {
		t.Fatalf("edit: %v", err)
	}
}

type staticSource struct {
	raw []byte
	err error
}

func (s staticSource) Fetch(context.Context) ([]byte, error) { return s.raw, s.err }

func TestAutoLoad(t *testing.T) {
	ctx := context.Background()

	if _, err := New(memory.New(), Options{}).AutoLoad(ctx); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}

	failing := New(memory.New(), Options{Source: staticSource{err: errors.New("404")}})
	if _, err := failing.AutoLoad(ctx); err == nil || failing.AutoLoadError() == nil {
		t.Fatal("failure should be remembered")
	}
	if failing.State() != StateEmpty {
		t.Fatalf("state = %v", failing.State())
	}

	ok := New(memory.New(), Options{Source: staticSource{raw: []byte(boardB)}})
	v, err := ok.AutoLoad(ctx)
	if err != nil || v.BoardID != "B" || ok.AutoLoadError() != nil {
		t.Fatalf("autoload = %+v, %v", v, err)
	}
}

// blockingStore holds the first Get until released so an import can be
// observed mid-flight.
type blockingStore struct {
	kv.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Get(ctx context.Context, key string) (string, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.Store.Get(ctx, key)
}

func TestLastCompletedImportWins(t *testing.T) {
	ctx := context.Background()
	backend := &blockingStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	s := New(backend, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Import(ctx, []byte(boardA))
		done <- err
	}()

	<-backend.entered
	if s.State() != StateImporting {
		t.Fatalf("state = %v, want importing", s.State())
	}

	// B starts after A but completes first.
	if _, err := s.Import(ctx, []byte(boardB)); err != nil {
		t.Fatalf("import B: %v", err)
	}
	if s.State() != StateImporting {
		t.Fatalf("A still in flight, state = %v", s.State())
	}

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("import A: %v", err)
	}
	v, _ := s.Views("")
	if v.BoardID != "A" || s.State() != StateReady {
		t.Fatalf("board = %s, state = %v", v.BoardID, s.State())
	}
}
