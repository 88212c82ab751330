// Package cli wires configuration, storage and integrations into the
// tablero commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/joho/godotenv"

	"tablero/internal/amqp"
	"tablero/internal/backend"
	"tablero/internal/config"
	"tablero/internal/core"
	"tablero/internal/fetch"
	applog "tablero/internal/log"
	"tablero/internal/session"
	ports "tablero/internal/sheets"
	gsheet "tablero/internal/sheets/google"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger at level and makes it the
// slog default.
func SetupLogger(level string, out io.Writer) (*applog.Logger, error) {
	cfg := applog.DefaultConfig()
	cfg.Output = out
	lvl, err := applog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadRules returns the keyword rules from path, or the built-in rules when
// path is empty.
func LoadRules(path string) (core.Rules, error) {
	if path == "" {
		return core.DefaultRules(), nil
	}
	rules, err := core.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("load category rules %s: %w", path, err)
	}
	return rules, nil
}

// InitBackend opens the configured storage, wrapped in the read-through
// cache when enabled.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", bcfg.Type, err)
	}
	logger.InfoContext(ctx, "Storage ready",
		applog.FieldBackend, bcfg.Type.String(),
		"cache_size", bcfg.CacheSize)
	return res, nil
}

// InitNotifier connects the change publisher when AMQP is configured. A
// broker that cannot be reached only disables notifications.
func InitNotifier(ctx context.Context, logger *applog.Logger, cfg *config.Config) (session.Notifier, func() error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		logger.WithComponent(applog.ComponentAMQP).WarnContext(ctx,
			"AMQP unavailable, change notifications disabled", applog.FieldError, err)
		return nil, nil
	}
	logger.WithComponent(applog.ComponentAMQP).InfoContext(ctx, "Publishing annotation changes",
		"exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	return client, client.Close
}

// InitSheetWriter returns the Google Sheets writer when a spreadsheet is
// configured. It returns nil otherwise and the sheet export stays disabled.
func InitSheetWriter(ctx context.Context, logger *applog.Logger, cfg *config.Config) (ports.ExportWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.WithComponent(applog.ComponentSheets).DebugContext(ctx, "Sheet export disabled")
		return nil, nil
	}
	w, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize sheets export: %w", err)
	}
	return w, nil
}

// InitSource returns the auto-load fetcher, or nil when no base URL is set.
func InitSource(cfg *config.Config) session.Source {
	if !cfg.AutoLoadEnabled() {
		return nil
	}
	return fetch.New(&http.Client{}, cfg.AutoLoadBaseURL, cfg.AutoLoadFile, cfg.FetchTimeout, cfg.MaxUploadBytes)
}
