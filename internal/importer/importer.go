// Package importer turns a raw board export into a Board and its merged
// annotation store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tablero/internal/annotations"
	"tablero/internal/core"
	"tablero/internal/kv"
)

// AmountField is matched case-insensitively against custom field names to
// find the field that pre-fills card amounts.
const AmountField = "importe a percibir"

var ErrMalformedDocument = errors.New("malformed board document")

// Result is an imported board with its store, already merged and persisted.
type Result struct {
	Board *core.Board
	Store *annotations.Store
	// Prefilled counts annotations created or completed from custom fields.
	Prefilled int
}

// Import parses raw, loads the board's stored annotations, fills the gaps
// from the amount custom field and persists the result once before
// returning it.
func Import(ctx context.Context, raw []byte, backend kv.Store, namespace string) (*Result, error) {
	board, err := core.ParseBoard(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	store := annotations.Load(ctx, backend, namespace, board.ID)
	filled := Merge(store, Prefill(board))

	if err := store.Persist(ctx); err != nil {
		return nil, fmt.Errorf("save imported board state: %w", err)
	}

	slog.InfoContext(ctx, "Board imported",
		"board_id", board.ID,
		"lists", len(board.ActiveLists()),
		"cards", len(board.ActiveCards()),
		"annotations", store.Len(),
		"prefilled", filled)

	return &Result{Board: board, Store: store, Prefilled: filled}, nil
}

// Prefill resolves card amounts from the amount custom field, keyed by
// card id. Items whose value has neither a number nor a text are skipped.
func Prefill(board *core.Board) map[string]decimal.Decimal {
	field, ok := board.FieldByName(AmountField)
	if !ok {
		return nil
	}
	out := map[string]decimal.Decimal{}
	for _, item := range board.CustomFieldItems {
		if item.FieldID != field.ID {
			continue
		}
		if amount, ok := item.Value.Amount(); ok {
			out[item.CardID] = amount
		}
	}
	return out
}

// Merge only fills gaps: a card without annotation gets the prefilled amount
// unpaid, a card with a zero amount gets the amount and keeps its paid flag.
// Non-zero amounts and paid flags are never overwritten. It returns the
// number of annotations it changed.
func Merge(store *annotations.Store, prefill map[string]decimal.Decimal) int {
	changed := 0
	for cardID, amount := range prefill {
		existing, ok := store.Get(cardID)
		switch {
		case !ok:
			store.Set(cardID, amount, false)
			changed++
		case existing.Amount.IsZero() && !amount.IsZero():
			store.Set(cardID, amount, existing.Paid)
			changed++
		}
	}
	return changed
}
