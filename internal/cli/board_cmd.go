package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tablero/internal/session"
	"tablero/internal/views"
)

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a board export and merge its amounts into the saved annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, err := loadBoard(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newSetCmd(app *App) *cobra.Command {
	var paid bool

	cmd := &cobra.Command{
		Use:   "set FILE CARD_ID AMOUNT",
		Short: "Set the amount and paid flag of one card",
		Long: "Set replaces the whole annotation of the card: omitting --paid " +
			"marks it as not paid.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := loadBoard(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			v, err := s.Edit(cmd.Context(), args[1], args[2], paid)
			if err != nil {
				return fmt.Errorf("set %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tarjeta %s actualizada.\n", args[1])
			printSummary(cmd.OutOrStdout(), v)
			return nil
		},
	}

	cmd.Flags().BoolVar(&paid, "paid", false, "Mark the card as paid")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the CSV export of a board",
		Long: "Export imports FILE, merges it with the saved annotations and " +
			"writes the CSV. Without -o the file is named after the board; " +
			"-o - writes to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := loadBoard(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			filename, data, err := s.Export()
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = filename
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exportado %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (- for stdout)")
	return cmd
}

// loadBoard imports path into a fresh session over the app's storage.
func loadBoard(ctx context.Context, app *App, path string) (*session.Session, views.Views, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, views.Views{}, fmt.Errorf("read board: %w", err)
	}
	s := app.NewSession()
	v, err := s.Import(ctx, raw)
	if err != nil {
		return nil, views.Views{}, fmt.Errorf("import %s: %w", path, err)
	}
	return s, v, nil
}

func printSummary(w io.Writer, v views.Views) {
	fmt.Fprintf(w, "%s: %s, %s\n", v.BoardName, v.ListsLabel(), v.CardsLabel())
	for _, c := range v.Categories {
		fmt.Fprintf(w, "  %-26s %d\n", c.Label, len(c.Cards))
	}
	fmt.Fprintf(w, "Cobrado: %s\n", views.FormatCurrency(v.PaidTotal))
}
