// Package shared holds the JSON response helpers used by every handler.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "complyd/pkg/domain-errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON serializes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Validator is implemented by request types that check their own fields.
type Validator interface {
	Validate() error
}

// Decode parses the JSON request body into T, runs its validation when T
// implements Validator, and writes the error response itself on failure.
// The second return is false when the caller should stop.
func Decode[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	defer func() { _ = r.Body.Close() }()

	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		return nil, false
	}
	if v, ok := any(&req).(Validator); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}

// WriteError maps a domain error to its HTTP status and writes the standard
// error envelope. Uncoded errors become 500s without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	message := "internal server error"
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) {
		message = de.Message
	}

	WriteJSON(w, statusFor(code), errorBody{Error: errorDetail{
		Code:    string(code),
		Message: message,
	}})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
