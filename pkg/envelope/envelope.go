// Package envelope writes and reads the {success, message, data} JSON body
// used by every DromeBoard API response.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ContentType is the media type of every envelope response.
const ContentType = "application/json; charset=utf-8"

// Response is the body written by handlers.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Raw is a decoded envelope whose data is kept undecoded.
type Raw struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Error is a failed envelope as seen by a client.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an envelope error with status 404.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// Write writes a response with the given status.
func Write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteData writes a successful response carrying data.
func WriteData(w http.ResponseWriter, status int, data any) {
	Write(w, status, Response{Success: true, Data: data})
}

// WriteMessage writes a successful response carrying a message and optional data.
func WriteMessage(w http.ResponseWriter, status int, message string, data any) {
	Write(w, status, Response{Success: true, Message: message, Data: data})
}

// WriteError writes a failed response.
func WriteError(w http.ResponseWriter, status int, message string) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	Write(w, status, Response{Success: false, Message: message})
}

// WriteBadRequest is a convenience for 400 errors.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteUnauthorized is a convenience for 401 errors.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// WriteForbidden is a convenience for 403 errors.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// WriteNotFound is a convenience for 404 errors.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// WriteConflict is a convenience for 409 errors.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

// WriteInternalError is a convenience for 500 errors.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// Decode parses an envelope body received with the given status.
// A body with success=false, or a non-2xx status, yields an *Error. When out
// is non-nil the data member is decoded into it.
func Decode(status int, body []byte, out any) error {
	var raw Raw
	if err := json.Unmarshal(body, &raw); err != nil {
		if status < 200 || status > 299 {
			return &Error{Status: status, Message: http.StatusText(status)}
		}
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !raw.Success || status < 200 || status > 299 {
		if status >= 200 && status <= 299 {
			status = http.StatusUnprocessableEntity
		}
		return &Error{Status: status, Message: raw.Message}
	}
	if out == nil || len(raw.Data) == 0 || string(raw.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
