package http

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tablero/internal/cache"
	"tablero/internal/kv/memory"
	"tablero/internal/session"
	mem "tablero/internal/sheets/memory"
)

const boardJSON = `{
  "id": "A",
  "name": "Estudio A",
  "lists": [{"id": "l1", "name": "Activos", "pos": 1}],
  "cards": [
    {"id": "c1", "name": "Pérez laboral", "pos": 1, "idList": "l1"},
    {"id": "c2", "name": "Gómez civil", "pos": 2, "idList": "l1"}
  ],
  "customFields": [{"id": "f1", "name": "Importe a percibir"}],
  "customFieldItems": [{"idCustomField": "f1", "idModel": "c2", "value": {"number": "300"}}]
}`

type fakeSource struct {
	raw []byte
	err error
}

func (f *fakeSource) Fetch(context.Context) ([]byte, error) { return f.raw, f.err }

func fixedNow() time.Time { return time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC) }

func newTestServer(t *testing.T, opts Options, src session.Source) *Server {
	t.Helper()
	opts.Session = session.New(memory.New(), session.Options{Source: src, Now: fixedNow})
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func importBoard(t *testing.T, srv *Server) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/board", strings.NewReader(boardJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HX-Request", "true")
	rr := do(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Carga el JSON exportado") {
		t.Fatalf("index body missing placeholder: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("missing security headers")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/nope", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyReportsStorageFailure(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db down") }}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("readyz body: %s", rr.Body.String())
	}
}

func TestReadyReportsCache(t *testing.T) {
	rr := do(newTestServer(t, Options{}, nil), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"cache":"disabled"`) {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}

	stats := func() cache.Stats { return cache.Stats{Hits: 7, Misses: 2, Size: 1} }
	rr = do(newTestServer(t, Options{CacheStats: stats}, nil), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if !strings.Contains(rr.Body.String(), `"cache":{"hits":7,"misses":2,"size":1}`) {
		t.Fatalf("readyz body: %s", rr.Body.String())
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("cache-control=%q", rr.Header().Get("Cache-Control"))
	}
}

func TestRequestsBeforeImport(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"edit", postForm("/cards/c1", url.Values{"amount": {"10"}})},
		{"views", httptest.NewRequest(http.MethodGet, "/ui/views", nil)},
		{"csv", httptest.NewRequest(http.MethodGet, "/export.csv", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, tt.req)
			if rr.Code != http.StatusConflict {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Primero carga el JSON.") {
				t.Fatalf("body=%s", rr.Body.String())
			}
		})
	}
}

func TestImportEditAndFilter(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	importBoard(t, srv)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "Estudio A") || !strings.Contains(body, "2 tarjetas") {
		t.Fatalf("index after import: %s", body)
	}
	// Prefilled amount from the custom field.
	if !strings.Contains(body, `value="300"`) {
		t.Fatalf("prefilled amount missing: %s", body)
	}

	rr = do(srv, postForm("/cards/c1", url.Values{"amount": {"1.500,5"}, "paid": {"on"}}))
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status=%d body=%s", rr.Code, rr.Body.String())
	}
	body = rr.Body.String()
	if !strings.Contains(body, "$ 1.500,50") {
		t.Fatalf("paid total missing: %s", body)
	}
	if !strings.Contains(body, `id="views"`) {
		t.Fatalf("expected views partial: %s", body)
	}

	rr = do(srv, postForm("/cards/missing", url.Values{"amount": {"1"}}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown card status=%d", rr.Code)
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/ui/views?q=g%C3%B3mez", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("views status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `class="card paid hidden"`) {
		t.Fatalf("filtered card should be hidden: %s", rr.Body.String())
	}
}

func TestImportMultipart(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "board.json")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte(boardJSON))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/board", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := do(srv, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("plain form import should redirect, got %d", rr.Code)
	}
	if srv.session.State() != session.StateReady {
		t.Fatalf("state=%v", srv.session.State())
	}
}

func TestImportErrors(t *testing.T) {
	srv := newTestServer(t, Options{MaxUploadBytes: 64}, nil)

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"malformed", `{"id": `, http.StatusBadRequest, "El archivo no es un JSON válido."},
		{"too large", strings.Repeat(" ", 128), http.StatusRequestEntityTooLarge, "tamaño máximo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/board", strings.NewReader(tt.body))
			req.Header.Set("HX-Request", "true")
			rr := do(srv, req)
			if rr.Code != tt.status {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Fatalf("body=%s", rr.Body.String())
			}
		})
	}
	if srv.session.State() != session.StateEmpty {
		t.Fatalf("failed imports changed state: %v", srv.session.State())
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	importBoard(t, srv)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/export.csv", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="export-Estudio A-20240102-0304.csv"` {
		t.Fatalf("content-disposition=%q", got)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("content-type=%q", rr.Header().Get("Content-Type"))
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "\ufeffJuicio;Importe a Percibir;Cobrado;Lista;Categoría\n") {
		t.Fatalf("csv header: %q", body)
	}
	if !strings.Contains(body, "Gómez civil;300,00;NO;Activos;CIVIL / CONTENCIOSO ADM.") {
		t.Fatalf("csv rows: %q", body)
	}
}

func TestExportSheet(t *testing.T) {
	w := mem.New()
	srv := newTestServer(t, Options{SheetWriter: w}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodPost, "/export/sheet", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("before import status=%d", rr.Code)
	}

	importBoard(t, srv)
	rr = do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), `hx-post="/export/sheet"`) {
		t.Fatalf("index should offer the sheet export: %s", rr.Body.String())
	}

	rr = do(srv, httptest.NewRequest(http.MethodPost, "/export/sheet", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "mem:3") {
		t.Fatalf("body=%s", rr.Body.String())
	}
	rows := w.Rows()
	if len(rows) != 3 || rows[0][0] != "Juicio" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestExportSheetNotConfigured(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	importBoard(t, srv)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Contains(rr.Body.String(), "/export/sheet") {
		t.Fatalf("index offers a sheet export that is not configured: %s", rr.Body.String())
	}

	rr = do(srv, httptest.NewRequest(http.MethodPost, "/export/sheet", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestAutoLoadRetry(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	srv := newTestServer(t, Options{}, src)

	rr := do(srv, httptest.NewRequest(http.MethodPost, "/board/autoload", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("failed autoload status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Auto-carga no disponible") {
		t.Fatalf("body=%s", rr.Body.String())
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), "Reintentar") {
		t.Fatalf("index should offer a retry: %s", rr.Body.String())
	}

	src.raw, src.err = []byte(boardJSON), nil
	rr = do(srv, httptest.NewRequest(http.MethodPost, "/board/autoload", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("retry status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Estudio A") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestAutoLoadNotConfigured(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodPost, "/board/autoload", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestEditsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{EditsPerMinute: 2}, nil)
	importBoard(t, srv)

	// The import consumed the first slot.
	if rr := do(srv, postForm("/cards/c1", url.Values{"amount": {"1"}})); rr.Code != http.StatusOK {
		t.Fatalf("first edit status=%d", rr.Code)
	}
	rr := do(srv, postForm("/cards/c1", url.Values{"amount": {"2"}}))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("retry-after=%q", rr.Header().Get("Retry-After"))
	}

	// Reads are never limited.
	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/ui/views", nil)); rr.Code != http.StatusOK {
		t.Fatalf("views status=%d", rr.Code)
	}
}

func TestFormBool(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "true": true, "Sí": true, "": false, "off": false, "0": false} {
		if got := formBool(in); got != want {
			t.Errorf("formBool(%q)=%v, want %v", in, got, want)
		}
	}
}
