package http

import (
	"errors"
	"net/http"
	"strings"

	"tablero/internal/importer"
	"tablero/internal/session"
)

var errBadUpload = errors.New("bad upload")

// User-facing messages.
const (
	msgMalformed   = "El archivo no es un JSON válido."
	msgNoBoard     = "Primero carga el JSON."
	msgUnknownCard = "La tarjeta no existe en el tablero."
	msgTooLarge    = "El archivo supera el tamaño máximo permitido."
	msgNoFile      = "Selecciona un archivo JSON."
	msgBadForm     = "Formato de solicitud no válido."
	msgNoSource    = "Auto-carga no configurada."
	msgNoSheet     = "Exportación a hoja no configurada."
	msgSheetFailed = "No se pudo exportar a la hoja."
	msgRateLimited = "Demasiadas solicitudes. Intenta de nuevo en un minuto."
	msgInternal    = "Error interno. Intenta de nuevo."
)

// errorResponse maps domain and transport errors to a status and message.
// Anything unrecognised, including a failed persist, is a 500.
func errorResponse(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, http.ErrMissingFile):
		return http.StatusBadRequest, msgNoFile
	case errors.Is(err, errBadUpload):
		return http.StatusBadRequest, msgBadForm
	case errors.Is(err, importer.ErrMalformedDocument):
		return http.StatusBadRequest, msgMalformed
	case errors.Is(err, session.ErrNoBoard):
		return http.StatusConflict, msgNoBoard
	case errors.Is(err, session.ErrUnknownCard):
		return http.StatusNotFound, msgUnknownCard
	case errors.Is(err, session.ErrNoSource):
		return http.StatusNotFound, msgNoSource
	}
	return http.StatusInternalServerError, msgInternal
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// formBool reads a checkbox or boolean form value.
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "si", "sí", "yes":
		return true
	}
	return false
}
