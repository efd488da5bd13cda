package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError is an error with the status code it should be reported as.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func New(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// Wrap attaches a status and client-facing message to err.
func Wrap(code int, message string, err error) *HTTPError {
	return &HTTPError{Code: code, Message: message, Err: err}
}

// WriteJSON writes v as the JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message} with the error's status.
func WriteError(w http.ResponseWriter, e *HTTPError) {
	WriteJSON(w, e.Code, map[string]string{"error": e.Message})
}
