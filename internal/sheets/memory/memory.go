package memory

import (
	"context"
	"fmt"
	"sync"

	ports "tablero/internal/sheets"
)

// Writer keeps the last export in memory. Tests use it in place of the
// spreadsheet.
type Writer struct {
	mu   sync.Mutex
	rows [][]string
}

var _ ports.ExportWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) WriteExport(_ context.Context, rows [][]string) (string, error) {
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = copied
	return fmt.Sprintf("mem:%d", len(rows)), nil
}

// Rows returns the last written rows.
func (w *Writer) Rows() [][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
