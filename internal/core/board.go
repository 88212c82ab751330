package core

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/shopspring/decimal"
)

const (
	DefaultBoardID   = "board"
	DefaultBoardName = "Tablero"
)

type (
	// Position orders lists and cards. Non-numeric values decode as zero.
	Position float64

	Board struct {
		ID               string            `json:"id"`
		Name             string            `json:"name"`
		Lists            []List            `json:"lists"`
		Cards            []Card            `json:"cards"`
		CustomFields     []CustomField     `json:"customFields"`
		CustomFieldItems []CustomFieldItem `json:"customFieldItems"`
	}

	List struct {
		ID     string   `json:"id"`
		Name   string   `json:"name"`
		Closed bool     `json:"closed"` // archived
		Pos    Position `json:"pos"`
	}

	Card struct {
		ID     string   `json:"id"`
		Name   string   `json:"name"`
		Closed bool     `json:"closed"` // archived
		Pos    Position `json:"pos"`
		ListID string   `json:"idList"`
	}

	CustomField struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	CustomFieldItem struct {
		FieldID string           `json:"idCustomField"`
		CardID  string           `json:"idModel"`
		Value   CustomFieldValue `json:"value"`
	}

	// CustomFieldValue holds either a number or a text. Exports write
	// numbers as strings too, so both are kept as decoded JSON scalars.
	CustomFieldValue struct {
		Number any `json:"number"`
		Text   any `json:"text"`
	}
)

func (p *Position) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Position(f)
	return nil
}

// ParseBoard decodes a board export. Unknown fields are ignored and a
// missing id or name falls back to DefaultBoardID / DefaultBoardName.
func ParseBoard(raw []byte) (*Board, error) {
	var b Board
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	if b.ID == "" {
		b.ID = DefaultBoardID
	}
	if b.Name == "" {
		b.Name = DefaultBoardName
	}
	return &b, nil
}

// ActiveLists returns the non-archived lists ordered by position.
// Equal positions keep their document order.
func (b *Board) ActiveLists() []List {
	out := make([]List, 0, len(b.Lists))
	for _, l := range b.Lists {
		if !l.Closed {
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, func(x, y List) int { return cmp.Compare(x.Pos, y.Pos) })
	return out
}

// ActiveCards returns the non-archived cards ordered by position.
// Equal positions keep their document order.
func (b *Board) ActiveCards() []Card {
	out := make([]Card, 0, len(b.Cards))
	for _, c := range b.Cards {
		if !c.Closed {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(x, y Card) int { return cmp.Compare(x.Pos, y.Pos) })
	return out
}

// ActiveCard looks up a non-archived card by id.
func (b *Board) ActiveCard(id string) (Card, bool) {
	for _, c := range b.Cards {
		if c.ID == id && !c.Closed {
			return c, true
		}
	}
	return Card{}, false
}

// ListName returns the name of any list with the given id, archived or not.
func (b *Board) ListName(id string) string {
	for _, l := range b.Lists {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}

// FieldByName returns the first custom field whose lower-cased name
// contains fragment (which must already be lower case).
func (b *Board) FieldByName(fragment string) (CustomField, bool) {
	for _, f := range b.CustomFields {
		if containsFold(f.Name, fragment) {
			return f, true
		}
	}
	return CustomField{}, false
}

// Amount resolves the value, preferring the number over the text.
// ok is false when the item carries neither.
func (v CustomFieldValue) Amount() (amount decimal.Decimal, ok bool) {
	switch {
	case v.Number != nil:
		return ParseAmount(scalarString(v.Number)), true
	case v.Text != nil:
		return ParseAmount(scalarString(v.Text)), true
	}
	return decimal.Zero, false
}
