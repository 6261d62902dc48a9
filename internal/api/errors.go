package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned by the status server.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// endpoints lists what the status server serves; 404 responses include it.
var endpoints = []string{"/healthz", "/metrics", "/api/v1/stats"}

// ErrorResponse is the JSON body of every non-2xx status server response.
// RequestID matches the request_id attribute of the server's log line.
type ErrorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	Endpoints []string `json:"endpoints,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	resp.RequestID = requestID(r)
	writeJSON(w, status, resp)
}

// handleNotFound points callers at the endpoints that do exist.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, ErrorResponse{
		Code:      ErrCodeNotFound,
		Message:   "no such endpoint: " + r.URL.Path,
		Endpoints: endpoints,
	})
}

// handleMethodNotAllowed rejects anything but GET; the server is read-only.
func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, r, http.StatusMethodNotAllowed, ErrorResponse{
		Code:    ErrCodeMethodNotAllow,
		Message: r.Method + " not allowed; the status server is read-only",
	})
}
