package util

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is an error with the HTTP status a caller should report.
type APIError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
}

func (r *APIError) Error() string {
	return fmt.Sprintf("%d: %s", r.Status, r.Detail)
}

func NewAPIError(status int, format string, args ...interface{}) *APIError {
	return &APIError{Status: status, Detail: fmt.Sprintf(format, args...)}
}

func WriteSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// WriteJSON marshals v as the success body.
func WriteJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "unable to marshal response")
		return
	}

	WriteSuccess(w, data)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	data, _ := json.Marshal(&APIError{Detail: msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func WriteErrorf(w http.ResponseWriter, status int, msg string, args ...interface{}) {
	WriteError(w, status, fmt.Sprintf(msg, args...))
}

// WriteAPIError writes err with its status, or a 500 for any other error.
func WriteAPIError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*APIError); ok {
		WriteError(w, apiErr.Status, apiErr.Detail)
		return
	}

	WriteError(w, http.StatusInternalServerError, err.Error())
}
