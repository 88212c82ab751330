// Package views derives everything the UI shows from a board and its
// annotation store. Views are recomputed in full after every change.
package views

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tablero/internal/annotations"
	"tablero/internal/core"
)

const (
	untitledCard = "—"
	untitledList = "Lista"
)

type (
	Views struct {
		BoardID    string
		BoardName  string
		ListCount  int
		CardCount  int
		Lists      []ListView
		Categories []CategoryView
		PaidTotal  decimal.Decimal
		Query      string
	}

	ListView struct {
		ID    string
		Name  string
		Cards []CardView
	}

	CategoryView struct {
		Category core.Category
		Label    string
		Cards    []CardView
	}

	CardView struct {
		ID     string
		Title  string
		Amount decimal.Decimal
		// HasAmount is false when the card has no annotation yet, so the
		// input renders empty instead of 0.
		HasAmount bool
		Paid      bool
		Hidden    bool
	}
)

// Derive builds the lists view, the category buckets, the counts and the
// paid total. Cards whose list is archived or missing appear in the buckets
// and counts but not in the lists view.
func Derive(board *core.Board, store *annotations.Store, rules core.Rules) Views {
	lists := board.ActiveLists()
	cards := board.ActiveCards()

	v := Views{
		BoardID:   board.ID,
		BoardName: board.Name,
		ListCount: len(lists),
		CardCount: len(cards),
		PaidTotal: store.TotalPaid(),
	}

	byList := make(map[string][]CardView, len(lists))
	buckets := make(map[core.Category][]CardView)
	for _, c := range cards {
		cv := cardView(c, store)
		byList[c.ListID] = append(byList[c.ListID], cv)
		if cat := rules.Classify(c.Name, cv.Paid); cat != core.CategoryOther {
			buckets[cat] = append(buckets[cat], cv)
		}
	}

	v.Lists = make([]ListView, 0, len(lists))
	for _, l := range lists {
		name := l.Name
		if name == "" {
			name = untitledList
		}
		v.Lists = append(v.Lists, ListView{ID: l.ID, Name: name, Cards: byList[l.ID]})
	}

	for _, cat := range rules.Categories() {
		v.Categories = append(v.Categories, CategoryView{
			Category: cat,
			Label:    rules.Label(cat),
			Cards:    buckets[cat],
		})
	}
	return v
}

func cardView(c core.Card, store *annotations.Store) CardView {
	title := c.Name
	if title == "" {
		title = untitledCard
	}
	cv := CardView{ID: c.ID, Title: title}
	if a, ok := store.Get(c.ID); ok {
		cv.Amount = a.Amount
		cv.HasAmount = true
		cv.Paid = a.Paid
	}
	return cv
}

// ShowCategories reports whether any bucket has a card. The category view
// is hidden otherwise.
func (v Views) ShowCategories() bool {
	for _, c := range v.Categories {
		if len(c.Cards) > 0 {
			return true
		}
	}
	return false
}

// Filter marks every card whose title does not contain query, ignoring
// case, as hidden in all views. An empty query shows every card.
func (v Views) Filter(query string) Views {
	q := strings.ToLower(query)
	v.Query = query

	lists := make([]ListView, len(v.Lists))
	for i, l := range v.Lists {
		l.Cards = filterCards(l.Cards, q)
		lists[i] = l
	}
	v.Lists = lists

	cats := make([]CategoryView, len(v.Categories))
	for i, c := range v.Categories {
		c.Cards = filterCards(c.Cards, q)
		cats[i] = c
	}
	v.Categories = cats
	return v
}

func filterCards(cards []CardView, lowerQuery string) []CardView {
	if cards == nil {
		return nil
	}
	out := make([]CardView, len(cards))
	for i, c := range cards {
		c.Hidden = lowerQuery != "" && !strings.Contains(strings.ToLower(c.Title), lowerQuery)
		out[i] = c
	}
	return out
}

func (v Views) ListsLabel() string { return plural(v.ListCount, "lista", "listas") }

func (v Views) CardsLabel() string { return plural(v.CardCount, "tarjeta", "tarjetas") }

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
