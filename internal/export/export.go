// Package export renders a board and its annotations as a spreadsheet
// friendly CSV: semicolon separated, decimal comma, UTF-8 BOM.
package export

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"tablero/internal/annotations"
	"tablero/internal/core"
)

const (
	Delimiter   = ';'
	ContentType = "text/csv; charset=utf-8"
	bom         = "\ufeff"
)

var Header = []string{"Juicio", "Importe a Percibir", "Cobrado", "Lista", "Categoría"}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N} _.-]`)

// Rows returns one row per active card in position order, without the
// header. Neither the board nor the store is modified.
func Rows(board *core.Board, store *annotations.Store, rules core.Rules) [][]string {
	cards := board.ActiveCards()
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		a, _ := store.Get(c.ID)
		rows = append(rows, []string{
			c.Name,
			FormatAmount(a),
			yesNo(a.Paid),
			board.ListName(c.ListID),
			rules.Label(rules.Classify(c.Name, a.Paid)),
		})
	}
	return rows
}

// WriteCSV writes the BOM, the header and every row. Lines are separated by
// a single "\n" with no trailing newline.
func WriteCSV(w io.Writer, board *core.Board, store *annotations.Store, rules core.Rules) error {
	var b strings.Builder
	b.WriteString(bom)
	writeLine(&b, Header)
	for _, row := range Rows(board, store, rules) {
		b.WriteByte('\n')
		writeLine(&b, row)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// CSV is WriteCSV into memory.
func CSV(board *core.Board, store *annotations.Store, rules core.Rules) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, board, store, rules)
	return buf.Bytes()
}

// FormatAmount renders the amount with two decimals and a decimal comma.
func FormatAmount(a annotations.Annotation) string {
	return strings.Replace(a.Amount.StringFixed(2), ".", ",", 1)
}

// Escape quotes a field when it contains the delimiter, a quote or a line
// break, doubling inner quotes.
func Escape(field string) string {
	if !strings.ContainsAny(field, "\";\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Filename builds "export-<board>-<YYYYMMDD-HHMM>.csv" from a sanitised
// board name, falling back to "tablero".
func Filename(boardName string, t time.Time) string {
	name := strings.TrimSpace(unsafeFilename.ReplaceAllString(boardName, ""))
	if name == "" {
		name = "tablero"
	}
	return fmt.Sprintf("export-%s-%s.csv", name, t.Format("20060102-1504"))
}

func writeLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(Delimiter)
		}
		b.WriteString(Escape(f))
	}
}

func yesNo(v bool) string {
	if v {
		return "SI"
	}
	return "NO"
}
