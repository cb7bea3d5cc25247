package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/beneficiary-import/internal/pkg/logger"
)

// ErrorResponse is the standard error envelope for all API errors. Detail
// carries the underlying error and is only filled outside production.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("json encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Message: message, Code: code})
}

// ErrorWithDetail writes a JSON error envelope including detail.
func ErrorWithDetail(w http.ResponseWriter, status int, code, message, detail string) {
	JSON(w, status, ErrorResponse{Message: message, Code: code, Detail: detail})
}

// BadRequest writes a 400 error with the "validation" code, the same code
// service validation failures carry.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "validation", message)
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal", "internal server error")
}
