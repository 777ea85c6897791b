// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fmc-ops/opsdash/internal/result"
)

// ProblemDetail is an RFC7807 body, used for transport-level failures that
// happen before a domain call (bad JSON, oversized bodies).
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{Title: title, Status: status, Detail: detail})
}

// Envelope writes res as {success, data, error} with a status derived from
// the error kind.
func Envelope[T any](w http.ResponseWriter, res result.Result[T]) {
	JSON(w, StatusFor(res.Err()), res)
}

// EnvelopeCreated is Envelope with 201 on success.
func EnvelopeCreated[T any](w http.ResponseWriter, res result.Result[T]) {
	if res.IsOk() {
		JSON(w, http.StatusCreated, res)
		return
	}
	Envelope(w, res)
}

// Fail writes a failed envelope for err.
func Fail(w http.ResponseWriter, err *result.Error) {
	Envelope(w, result.Fail[any](err))
}

// StatusFor maps an error kind to an HTTP status. A nil error is 200.
func StatusFor(err *result.Error) int {
	if err == nil {
		return http.StatusOK
	}
	switch err.Kind {
	case result.KindValidation, result.KindForeignKey:
		return http.StatusBadRequest
	case result.KindNotFound:
		return http.StatusNotFound
	case result.KindConflict:
		return http.StatusConflict
	case result.KindPermission:
		return http.StatusForbidden
	case result.KindNetwork:
		return http.StatusBadGateway
	case result.KindConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into target and rejects unknown fields
// and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			return errors.New(strings.TrimPrefix(err.Error(), "json: "))
		default:
			return fmt.Errorf("malformed JSON: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
