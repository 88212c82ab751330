package sheets

import "context"

// Ports for outbound adapters.
type (
	// ExportWriter replaces the content of the export sheet with rows, the
	// first row being the header. It returns the range that was written.
	ExportWriter interface {
		WriteExport(ctx context.Context, rows [][]string) (writtenRange string, err error)
	}
)
