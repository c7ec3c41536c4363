package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// messageResponse is the error/confirmation body shape used by every
// endpoint: {"message": "..."}.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed encoding response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// maxBodyBytes caps request bodies; no endpoint carries more than a small
// JSON document.
const maxBodyBytes = 1 << 20 // 1MB

// decodeJSON parses a request body into an explicit per-endpoint struct.
// Unknown fields are rejected so malformed clients fail loudly instead of
// silently dropping data, and the body is size-capped before decoding.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
