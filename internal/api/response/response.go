package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nkkko/textai/internal/api/errors"
)

// Response represents a standardized API response
type Response struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     any    `json:"error,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	requestID := middleware.GetReqID(r.Context())

	resp := Response{
		Success:   statusCode >= 200 && statusCode < 300,
		RequestID: requestID,
		Data:      data,
	}

	sendJSON(w, statusCode, resp)
}

// Error sends an error response
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	apiErr := errors.FromError(err)
	apiErr.WithRequestID(requestID)

	resp := Response{
		Success:   false,
		RequestID: requestID,
		Error:     apiErr,
	}

	sendJSON(w, apiErr.HTTPCode, resp)
}

// sendJSON is a helper function to send a JSON response
func sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"success":false,"error":{"type":"internal","code":"json_encode_error","message":"Failed to encode JSON response"}}`, http.StatusInternalServerError)
	}
}
