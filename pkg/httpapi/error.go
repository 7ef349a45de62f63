// Package httpapi renders JSON responses and maps the serrors taxonomy to HTTP statuses.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, requestID, code, message string) error {
	return WriteJSON(w, status, newEnvelope(requestID, code, message))
}

func newEnvelope(requestID, code, message string) *ErrorEnvelope {
	env := &ErrorEnvelope{Code: code, Message: message}
	if requestID != "" {
		env.Meta = map[string]string{"request_id": requestID}
	}
	return env
}

// StatusFor returns the HTTP status of err's taxonomy code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, serrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, serrors.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, serrors.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, serrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, serrors.ErrTransactionFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError renders err with its taxonomy status. Validation failures
// carry their field messages; unclassified errors hide their text.
func WriteServiceError(w http.ResponseWriter, requestID string, err error) error {
	status := StatusFor(err)
	code := serrors.Code(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		code, message = "INTERNAL", "internal error"
	}
	env := newEnvelope(requestID, code, message)

	var verrs serrors.ValidationErrors
	if errors.As(err, &verrs) {
		env.Code = serrors.ErrValidation.Code
		env.Fields = verrs
	}
	return WriteJSON(w, status, env)
}
