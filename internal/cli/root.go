package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"tablero/internal/backend"
	"tablero/internal/config"
	"tablero/internal/core"
	applog "tablero/internal/log"
	"tablero/internal/session"
	ports "tablero/internal/sheets"
)

// App holds the collaborators shared by every command. Fields left nil are
// wired from the environment before the command runs.
type App struct {
	Config   *config.Config
	Logger   *applog.Logger
	Backend  *backend.BackendResult
	Rules    core.Rules
	Notifier session.Notifier
	Sheet    ports.ExportWriter
	Source   session.Source

	closers []func() error
}

// NewRootCmd creates the top-level "tablero" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "tablero",
		Short:         "Annotate board cards with amounts and paid flags",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.Close()
		},
	}

	root.AddCommand(
		newServeCmd(app),
		newImportCmd(app),
		newSetCmd(app),
		newExportCmd(app),
	)

	return root
}

// init fills in whatever the caller did not provide. The server logs to
// stdout, the file commands to stderr so their output stays clean.
func (a *App) init(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if a.Config == nil {
		LoadEnvFile()
		cfg, err := LoadAndValidateConfig()
		if err != nil {
			return err
		}
		a.Config = cfg
	}

	if a.Logger == nil {
		out := cmd.ErrOrStderr()
		if cmd.Name() == "serve" {
			out = cmd.OutOrStdout()
		}
		logger, err := SetupLogger(a.Config.LogLevel, out)
		if err != nil {
			return err
		}
		a.Logger = logger
	}

	if a.Rules == nil {
		rules, err := LoadRules(a.Config.CategoryRulesFile)
		if err != nil {
			return err
		}
		a.Rules = rules
	}

	if a.Backend == nil {
		res, err := InitBackend(ctx, a.Logger.WithComponent(applog.ComponentBackend), a.Config)
		if err != nil {
			return err
		}
		a.Backend = res
		if res.Cleanup != nil {
			a.closers = append(a.closers, res.Cleanup)
		}
	}
	return nil
}

// NewSession returns a session over the app's storage.
func (a *App) NewSession() *session.Session {
	namespace := ""
	if a.Config != nil {
		namespace = a.Config.StateNamespace
	}
	return session.New(a.Backend.Store, session.Options{
		Namespace: namespace,
		Rules:     a.Rules,
		Notifier:  a.Notifier,
		Source:    a.Source,
		Logger:    a.Logger,
	})
}

// Close releases everything init opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
