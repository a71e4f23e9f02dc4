package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrUnsupportedDocument = errors.New("please upload a valid PDF file")

// BackendError is a non-2xx response. Message is the server supplied
// `error` field, or empty when the server gave none.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: backend error %d: %s", e.Op, e.Status, msg)
}

// NetworkError is a transport failure: DNS, connect, reset, timeout, or a
// body that could not be read.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseError builds a BackendError from a failed response body. Shared
// with the synthesis client, which speaks the same `{error}` convention.
func ResponseError(op string, status int, body []byte) *BackendError {
	return &BackendError{Op: op, Status: status, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return ""
}
