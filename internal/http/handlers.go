package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"tablero/internal/export"
	applog "tablero/internal/log"
	"tablero/internal/middleware/security"
	"tablero/internal/session"
	"tablero/internal/views"
)

const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and storage, and reports the session state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["storage"] = "not_checked"
	default:
		if err := s.ready(ctx); err != nil {
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	if s.cacheStats != nil {
		checks["cache"] = s.cacheStats()
	} else {
		checks["cache"] = "disabled"
	}
	checks["session"] = s.session.State().String()
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type indexData struct {
	Ready          bool
	Views          views.Views
	AutoLoadFailed bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		AutoLoadFailed: s.session.HasSource() && s.session.AutoLoadError() != nil,
	}
	if v, err := s.session.Views(r.URL.Query().Get("q")); err == nil {
		data.Ready, data.Views = true, v
	}
	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleImport accepts the board document either as the multipart field
// "file" or as the raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, applog.OpImport)
		return
	}

	v, err := s.session.Import(r.Context(), raw)
	if err != nil {
		s.respondError(w, r, err, applog.OpImport)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "board", v)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %w", errBadUpload, err)
		}
		return raw, nil
	}

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, fmt.Errorf("%w: parse upload: %w", errBadUpload, err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("upload field: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", errBadUpload, err)
	}
	return raw, nil
}

func (s *Server) handleAutoLoad(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.AutoLoad(r.Context())
	switch {
	case err == nil:
		s.render(w, r, http.StatusOK, "board", v)
	case errors.Is(err, session.ErrNoSource):
		s.respondError(w, r, err, applog.OpAutoLoad)
	default:
		s.render(w, r, http.StatusBadGateway, "autoload-notice", nil)
	}
}

// handleEdit stores {amount, paid} for one card and returns the views
// partial, filtered by the search box when it is included.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}

	cardID := r.PathValue("id")
	v, err := s.session.Edit(r.Context(), cardID, r.PostFormValue("amount"), formBool(r.PostFormValue("paid")))
	if err != nil {
		s.respondError(w, r, err, applog.OpEdit)
		return
	}
	s.render(w, r, http.StatusOK, "views", v.Filter(r.FormValue("q")))
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.Views(r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err, applog.OpRender)
		return
	}
	s.render(w, r, http.StatusOK, "views", v)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.session.Export()
	if err != nil {
		s.respondError(w, r, err, applog.OpExport)
		return
	}

	h := w.Header()
	h.Set("Content-Type", export.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExportSheet(w http.ResponseWriter, r *http.Request) {
	if s.sheet == nil {
		s.renderError(w, r, http.StatusNotFound, msgNoSheet)
		return
	}

	boardName, rows, err := s.session.ExportRows()
	if err != nil {
		s.respondError(w, r, err, applog.OpExport)
		return
	}
	written, err := s.sheet.WriteExport(r.Context(), rows)
	if err != nil {
		applog.LogError(r.Context(), "Sheet export failed", err, applog.ComponentSheets, applog.OpExport,
			applog.NewFields())
		s.renderError(w, r, http.StatusBadGateway, msgSheetFailed)
		return
	}

	s.logger.InfoContext(r.Context(), "Board exported to sheet",
		"board", boardName, "range", written, "rows", len(rows)-1)
	s.render(w, r, http.StatusOK, "sheet-status", written)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, security.ClientIP(r), applog.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests, msgRateLimited)
}

// respondError maps err to a status and a user-facing message. Server-side
// failures are logged with op.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, msg := errorResponse(err)
	if status >= http.StatusInternalServerError {
		applog.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
	} else {
		s.logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op, applog.FieldStatusCode, status, applog.FieldError, err)
	}
	s.renderError(w, r, status, msg)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if s.templates == nil {
		http.Error(w, msg, status)
		return
	}
	s.render(w, r, status, "error", msg)
}

// render executes name into a buffer so a template failure still yields a
// clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.LogError(r.Context(), "Template execution failed", err, applog.ComponentHTTP, applog.OpRender,
			append(applog.NewFields(), "template", name))
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
