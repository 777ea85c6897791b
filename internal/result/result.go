// Package result carries the outcome of every data-access call as either a
// value or a classified, user-presentable error.
package result

import (
	"encoding/json"
	"errors"
)

// Kind groups classified errors so transports can pick a status code.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindPermission Kind = "permission"
	KindConflict   Kind = "conflict"
	KindForeignKey Kind = "foreign_key"
	KindNetwork    Kind = "network"
	KindConfig     Kind = "config"
	KindUnknown    Kind = "unknown"
)

// Error is a classified failure. Message is safe to show to an operator.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Cause   error
}

// Sentinel declares a package level error with a fixed kind and message.
func Sentinel(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Invalid builds a validation error for op.
func Invalid(op, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Op: op}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors of the same kind and message so copies made during
// classification still compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// WithOp returns a copy of e tagged with op when it has none.
func (e *Error) WithOp(op string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	if cp.Op == "" {
		cp.Op = op
	}
	return &cp
}

// Result is either Ok(value) or Err(error). The zero value is Ok of the zero T.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail wraps a classified error. A nil error becomes a generic failure.
func Fail[T any](err *Error) Result[T] {
	if err == nil {
		err = &Error{Kind: KindUnknown, Message: MsgUnexpected}
	}
	return Result[T]{err: err}
}

// IsOk reports whether the result carries a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Value returns the carried value, or the zero T on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the classified error or nil.
func (r Result[T]) Err() *Error { return r.err }

// Unwrap returns both halves.
func (r Result[T]) Unwrap() (T, *Error) { return r.value, r.err }

// ErrorMessage returns the user message or the empty string on success.
func (r Result[T]) ErrorMessage() string {
	if r.err == nil {
		return ""
	}
	return r.err.Message
}

// Map transforms the value of a successful result.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return Ok(fn(r.value))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

// MarshalJSON renders the {success, data, error} envelope the dashboard UI consumes.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		msg := r.err.Message
		return json.Marshal(envelope{Success: false, Data: json.RawMessage("null"), Error: &msg})
	}
	data, err := json.Marshal(r.value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Success: true, Data: data})
}

// UnmarshalJSON reads an envelope back. Failures are restored as KindUnknown.
func (r *Result[T]) UnmarshalJSON(raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if !env.Success {
		msg := MsgUnexpected
		if env.Error != nil {
			msg = *env.Error
		}
		*r = Result[T]{err: &Error{Kind: KindUnknown, Message: msg}}
		return nil
	}
	var value T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &value); err != nil {
			return err
		}
	}
	*r = Result[T]{value: value}
	return nil
}
