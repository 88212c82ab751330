// Package annotations holds the per-board amount/paid records the user
// attaches to cards, and their durable form.
package annotations

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"tablero/internal/core"
)

// Annotation is the user-entered state of one card.
type Annotation struct {
	Amount decimal.Decimal
	Paid   bool
}

// Change describes a persisted edit, for downstream notification.
type Change struct {
	BoardID    string
	CardID     string
	Annotation Annotation
	PaidTotal  decimal.Decimal
	At         time.Time
}

// MarshalJSON writes the amount as a JSON number.
func (a Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount json.Number `json:"amount"`
		Paid   bool        `json:"paid"`
	}{
		Amount: json.Number(a.Amount.String()),
		Paid:   a.Paid,
	})
}

// UnmarshalJSON accepts amounts written as numbers, numeric strings, empty
// strings or null, and any truthy paid value.
func (a *Annotation) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount any `json:"amount"`
		Paid   any `json:"paid"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	a.Amount = core.AmountFromValue(raw.Amount)
	a.Paid = truthy(raw.Paid)
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}
