package annotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tablero/internal/kv"
)

// DefaultNamespace prefixes the durable key of every board.
const DefaultNamespace = "trelloBoardState"

// Store maps card ids to annotations for a single board and mirrors them to
// a kv.Store under "<namespace>:<boardId>". It is not safe for concurrent
// use; the owning session serializes access.
type Store struct {
	backend kv.Store
	key     string
	boardID string
	cards   map[string]Annotation
}

// record is the durable form: {"boardId": "...", "cards": {"id": {...}}}.
type record struct {
	BoardID string                `json:"boardId"`
	Cards   map[string]Annotation `json:"cards"`
}

// New returns an empty store for boardID.
func New(backend kv.Store, namespace, boardID string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{
		backend: backend,
		key:     kv.Key(namespace, boardID),
		boardID: boardID,
		cards:   map[string]Annotation{},
	}
}

// Load reads the durable record of boardID. A missing key, a failing backend
// or a malformed record all yield an empty store; Load never fails.
func Load(ctx context.Context, backend kv.Store, namespace, boardID string) *Store {
	s := New(backend, namespace, boardID)

	raw, err := backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			slog.WarnContext(ctx, "Board state read failed, starting empty", "key", s.key, "error", err)
		}
		return s
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.WarnContext(ctx, "Board state is malformed, starting empty", "key", s.key, "error", err)
		return s
	}
	for id, a := range rec.Cards {
		s.cards[id] = a
	}
	return s
}

func (s *Store) BoardID() string { return s.boardID }

// Key is the durable key the store persists under.
func (s *Store) Key() string { return s.key }

func (s *Store) Get(cardID string) (Annotation, bool) {
	a, ok := s.cards[cardID]
	return a, ok
}

// Set replaces the whole annotation of cardID.
func (s *Store) Set(cardID string, amount decimal.Decimal, paid bool) {
	s.cards[cardID] = Annotation{Amount: amount, Paid: paid}
}

func (s *Store) Len() int { return len(s.cards) }

// TotalPaid sums the amounts of every paid annotation.
func (s *Store) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.cards {
		if a.Paid {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// MarshalJSON renders the durable record.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{BoardID: s.boardID, Cards: s.cards})
}

// Persist writes the whole store back under its key.
func (s *Store) Persist(ctx context.Context) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode board state: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("persist board state %s: %w", s.key, err)
	}
	return nil
}
