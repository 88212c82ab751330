// Package session owns the single board being annotated: the imported
// Board, its annotation store and the views derived from them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tablero/internal/annotations"
	"tablero/internal/core"
	"tablero/internal/export"
	"tablero/internal/importer"
	"tablero/internal/kv"
	applog "tablero/internal/log"
	"tablero/internal/views"
)

var (
	ErrNoBoard     = errors.New("no board imported")
	ErrUnknownCard = errors.New("unknown card")
	ErrNoSource    = errors.New("auto-load not configured")
)

type State int

const (
	StateEmpty State = iota
	StateImporting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateImporting:
		return "importing"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type (
	// Notifier is told about every persisted edit. Failures are logged and
	// never undo the edit.
	Notifier interface {
		AnnotationChanged(ctx context.Context, change annotations.Change) error
	}

	// Source provides the document for auto-loading.
	Source interface {
		Fetch(ctx context.Context) ([]byte, error)
	}

	Options struct {
		Namespace string
		Rules     core.Rules
		Notifier  Notifier
		Source    Source
		Logger    *applog.Logger
		Now       func() time.Time
	}
)

type Session struct {
	backend   kv.Store
	namespace string
	rules     core.Rules
	notifier  Notifier
	source    Source
	logger    *applog.Logger
	now       func() time.Time

	mu        sync.Mutex
	importing int
	board     *core.Board
	store     *annotations.Store
	views     views.Views
	autoErr   error
}

func New(backend kv.Store, opts Options) *Session {
	if opts.Namespace == "" {
		opts.Namespace = annotations.DefaultNamespace
	}
	if opts.Rules == nil {
		opts.Rules = core.DefaultRules()
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		backend:   backend,
		namespace: opts.Namespace,
		rules:     opts.Rules,
		notifier:  opts.Notifier,
		source:    opts.Source,
		logger:    opts.Logger.WithComponent(applog.ComponentSession),
		now:       opts.Now,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.importing > 0:
		return StateImporting
	case s.board != nil:
		return StateReady
	}
	return StateEmpty
}

func (s *Session) Rules() core.Rules { return s.rules }

// Import parses and merges raw outside the lock, then swaps it in. When two
// imports overlap the one that completes last wins. A failed import leaves
// the previous board in place. Last-writer-wins also holds for the durable
// record: an edit persisted while the import runs is overwritten by it.
func (s *Session) Import(ctx context.Context, raw []byte) (views.Views, error) {
	s.mu.Lock()
	s.importing++
	s.mu.Unlock()

	res, err := importer.Import(ctx, raw, s.backend, s.namespace)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.importing--
	if err != nil {
		s.logger.WarnContext(ctx, "Import failed", applog.FieldError, err, "state", s.stateLocked().String())
		return views.Views{}, err
	}

	s.board, s.store = res.Board, res.Store
	s.views = views.Derive(s.board, s.store, s.rules)
	s.logger.InfoContext(ctx, "Board ready",
		applog.FieldBoardID, s.board.ID,
		"lists", s.views.ListCount,
		"cards", s.views.CardCount,
		"prefilled", res.Prefilled)
	return s.views, nil
}

// AutoLoad fetches the configured document once and imports it. The
// failure is remembered so the UI can offer a retry.
func (s *Session) AutoLoad(ctx context.Context) (views.Views, error) {
	if s.source == nil {
		return views.Views{}, ErrNoSource
	}
	raw, err := s.source.Fetch(ctx)
	if err == nil {
		var v views.Views
		v, err = s.Import(ctx, raw)
		if err == nil {
			s.setAutoErr(nil)
			return v, nil
		}
	}
	s.setAutoErr(err)
	s.logger.WarnContext(ctx, "Auto-load failed", applog.FieldOperation, applog.OpAutoLoad, applog.FieldError, err)
	return views.Views{}, err
}

func (s *Session) setAutoErr(err error) {
	s.mu.Lock()
	s.autoErr = err
	s.mu.Unlock()
}

// AutoLoadError is the outcome of the last auto-load attempt.
func (s *Session) AutoLoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoErr
}

func (s *Session) HasSource() bool { return s.source != nil }

// Edit parses amountInput, stores the annotation, persists the whole store
// and recomputes the views. When persisting fails the in-memory edit is
// kept and the error returned. The change is published after the lock is
// released.
func (s *Session) Edit(ctx context.Context, cardID, amountInput string, paid bool) (views.Views, error) {
	s.mu.Lock()
	if s.board == nil {
		s.mu.Unlock()
		return views.Views{}, ErrNoBoard
	}
	if _, ok := s.board.ActiveCard(cardID); !ok {
		s.mu.Unlock()
		return views.Views{}, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}

	amount := core.ParseAmount(amountInput)
	s.store.Set(cardID, amount, paid)
	persistErr := s.store.Persist(ctx)
	s.views = views.Derive(s.board, s.store, s.rules)
	v := s.views
	change := annotations.Change{
		BoardID:    s.board.ID,
		CardID:     cardID,
		Annotation: annotations.Annotation{Amount: amount, Paid: paid},
		PaidTotal:  v.PaidTotal,
		At:         s.now(),
	}
	s.mu.Unlock()

	fields := applog.NewFields().WithAnnotation(change.BoardID, cardID, amount.String(), paid)
	if persistErr != nil {
		applog.LogError(ctx, "Persist annotation failed", persistErr, applog.ComponentSession, applog.OpEdit, fields)
		return v, persistErr
	}
	s.logger.DebugContext(ctx, "Card annotated", fields...)

	if s.notifier != nil {
		if err := s.notifier.AnnotationChanged(ctx, change); err != nil {
			s.logger.WarnContext(ctx, "Change notification failed",
				applog.FieldCardID, cardID, applog.FieldError, err)
		}
	}
	return v, nil
}

// Views returns the current views filtered by query.
func (s *Session) Views(query string) (views.Views, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return views.Views{}, ErrNoBoard
	}
	return s.views.Filter(query), nil
}

// Export renders the CSV for the current board and its download name.
func (s *Session) Export() (filename string, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return "", nil, ErrNoBoard
	}
	return export.Filename(s.board.Name, s.now()), export.CSV(s.board, s.store, s.rules), nil
}

// ExportRows returns the header followed by the export rows.
func (s *Session) ExportRows() (boardName string, rows [][]string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return "", nil, ErrNoBoard
	}
	rows = append([][]string{export.Header}, export.Rows(s.board, s.store, s.rules)...)
	return s.board.Name, rows, nil
}
