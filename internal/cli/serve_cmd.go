package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apphttp "tablero/internal/http"
	applog "tablero/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = ":" + app.Config.Port
			}
			return app.serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to :$PORT)")
	return cmd
}

// serve wires the optional integrations, attempts one auto-load and runs
// the server until ctx is cancelled.
func (a *App) serve(ctx context.Context, addr string) error {
	logger := a.Logger.WithComponent(applog.ComponentApp)

	if a.Notifier == nil {
		notifier, closeFn := InitNotifier(ctx, a.Logger, a.Config)
		a.Notifier = notifier
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}
	if a.Sheet == nil {
		w, err := InitSheetWriter(ctx, a.Logger, a.Config)
		if err != nil {
			return err
		}
		a.Sheet = w
	}
	if a.Source == nil {
		a.Source = InitSource(a.Config)
	}

	sess := a.NewSession()
	srv := apphttp.NewServer(addr, apphttp.Options{
		Session:        sess,
		SheetWriter:    a.Sheet,
		Ready:          a.Backend.Ping,
		CacheStats:     a.Backend.CacheStats,
		Logger:         a.Logger,
		MaxUploadBytes: a.Config.MaxUploadBytes,
		EditsPerMinute: a.Config.EditsPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting tablero server",
			"addr", addr,
			applog.FieldBackend, a.Config.DataBackend,
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	if sess.HasSource() {
		g.Go(func() error {
			// A failure is kept on the session and offered as a retry in the UI.
			_, _ = sess.AutoLoad(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
