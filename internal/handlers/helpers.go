package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    bool   `json:"error"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message"`
	Fallback bool   `json:"fallback,omitempty"`
}

// ScoringError builds the body returned when a URL could not be analyzed.
func ScoringError(rawURL string, err error) ErrorResponse {
	return ErrorResponse{
		Error:    true,
		URL:      rawURL,
		Message:  fmt.Sprintf("Error analyzing URL: %v", err),
		Fallback: true,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, ErrorResponse{Error: true, Message: msg})
}

// maxBodyBytes bounds request bodies; a batch of long URLs fits comfortably.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// rejectOversized answers 413 when err came from the body size cap.
func rejectOversized(w http.ResponseWriter, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
	return true
}
