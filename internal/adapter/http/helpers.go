package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// readJSON decodes a JSON request body with a size limit. An oversize body
// has already been answered with 413 when ok is false. Any other decode
// failure yields the zero value and err.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (v T, ok bool, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return v, false, err
		}
		var zero T
		return zero, true, err
	}
	return v, true, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
