package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"tablero/internal/cache"
	applog "tablero/internal/log"
	"tablero/internal/middleware/ratelimit"
	"tablero/internal/middleware/security"
	"tablero/internal/middleware/trace"
	"tablero/internal/session"
	ports "tablero/internal/sheets"
	"tablero/internal/views"
	appweb "tablero/web"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxFormBytes          = 64 << 10
	staticMaxAge          = 3600
)

// Server wraps http.Server with the board session and the rendering state.
type Server struct {
	http.Server

	session    *session.Session
	sheet      ports.ExportWriter
	ready      func(ctx context.Context) error
	cacheStats func() cache.Stats
	logger     *applog.Logger
	templates  *template.Template
	limiter    *ratelimit.Limiter
	maxUpload  int64
	started    time.Time

	shutdownOnce sync.Once
}

// Options carries the collaborators of the server. Session is required;
// SheetWriter, Ready and CacheStats may be nil.
type Options struct {
	Session        *session.Session
	SheetWriter    ports.ExportWriter
	Ready          func(ctx context.Context) error
	CacheStats     func() cache.Stats
	Logger         *applog.Logger
	MaxUploadBytes int64
	EditsPerMinute int
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		session:    opts.Session,
		sheet:      opts.SheetWriter,
		ready:      opts.Ready,
		cacheStats: opts.CacheStats,
		logger:     opts.Logger.WithComponent(applog.ComponentHTTP),
		maxUpload:  opts.MaxUploadBytes,
		started:    time.Now(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.EditsPerMinute,
		}),
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssets(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /board", s.handleImport)
	mux.HandleFunc("POST /board/autoload", s.handleAutoLoad)
	mux.HandleFunc("POST /cards/{id}", s.handleEdit)
	mux.HandleFunc("GET /ui/views", s.handleViews)
	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("POST /export/sheet", s.handleExportSheet)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(security.ClientIP, s.rateLimited)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = trace.Middleware(opts.Logger, security.ClientIP)(handler)

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currency":     views.FormatCurrency,
		"input":        views.FormatInput,
		"sheetEnabled": func() bool { return s.sheet != nil },
	}
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
