package result

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Fixed operator-facing messages.
const (
	MsgPermission = "Permission denied. Check your Row Level Security (RLS) policies."
	MsgDuplicate  = "A record with this ID already exists"
	MsgForeignKey = "Cannot delete: related records exist"
	MsgNetwork    = "Network error. Please check your connection."
	MsgUnexpected = "An unexpected error occurred. Please try again."
)

// PostgreSQL SQLSTATE codes the classifier recognises.
const (
	codeUndefinedTable   = "42P01"
	codeUndefinedColumn  = "42703"
	codeInsufficientPriv = "42501"
	codeUniqueViolation  = "23505"
	codeForeignKey       = "23503"
)

var (
	// ErrRelationMissing marks an optional table that does not exist.
	ErrRelationMissing = errors.New("relation does not exist")
	// ErrPermission marks a policy rejection raised outside PostgreSQL.
	ErrPermission = errors.New("permission denied")
	// ErrNetwork marks a transport failure raised by a non-SQL client.
	ErrNetwork = errors.New("network unreachable")
)

// Outcome is the classifier verdict. Empty means the failure is an
// expected-empty condition and the call should succeed with no data.
type Outcome struct {
	Empty bool
	Err   *Error
}

// Label names the outcome for metrics.
func (o Outcome) Label() string {
	switch {
	case o.Empty:
		return "empty"
	case o.Err == nil:
		return "ok"
	default:
		return string(o.Err.Kind)
	}
}

// Observer is notified of every classified call.
type Observer func(op string, outcome Outcome)

var observer atomic.Pointer[Observer]

// SetObserver installs fn as the process observer. Passing nil removes it.
func SetObserver(fn Observer) {
	if fn == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&fn)
}

func notify(op string, out Outcome) {
	if fn := observer.Load(); fn != nil {
		(*fn)(op, out)
	}
}

// Classify maps err to an outcome. Rules are applied in priority order:
// no rows, missing relation, permission, unique violation, foreign key,
// network, then the error text itself.
func Classify(op string, err error) Outcome {
	if err == nil {
		return Outcome{}
	}

	var classified *Error
	if errors.As(err, &classified) {
		return Outcome{Err: classified.WithOp(op)}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return Outcome{Empty: true}
	}

	var pgErr *pgconn.PgError
	hasPG := errors.As(err, &pgErr)

	if errors.Is(err, ErrRelationMissing) || (hasPG && (pgErr.Code == codeUndefinedTable || pgErr.Code == codeUndefinedColumn)) {
		return Outcome{Empty: true}
	}
	if errors.Is(err, ErrPermission) || (hasPG && pgErr.Code == codeInsufficientPriv) {
		return Outcome{Err: &Error{Kind: KindPermission, Message: MsgPermission, Op: op, Cause: err}}
	}
	if hasPG && pgErr.Code == codeUniqueViolation {
		return Outcome{Err: &Error{Kind: KindConflict, Message: MsgDuplicate, Op: op, Cause: err}}
	}
	if hasPG && pgErr.Code == codeForeignKey {
		return Outcome{Err: &Error{Kind: KindForeignKey, Message: MsgForeignKey, Op: op, Cause: err}}
	}
	if IsNetwork(err) {
		return Outcome{Err: &Error{Kind: KindNetwork, Message: MsgNetwork, Op: op, Cause: err}}
	}

	msg := err.Error()
	if hasPG && pgErr.Message != "" {
		msg = pgErr.Message
	}
	if msg == "" {
		msg = MsgUnexpected
	}
	return Outcome{Err: &Error{Kind: KindUnknown, Message: msg, Op: op, Cause: err}}
}

// IsNetwork reports transport level failures.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// From turns a (value, error) pair into a Result. Expected-empty failures
// succeed with the zero T.
func From[T any](op string, value T, err error) Result[T] {
	var zero T
	return FromOr(op, value, zero, err)
}

// FromOr is From with an explicit value for expected-empty failures, such as
// an empty page that still carries its paging metadata.
func FromOr[T any](op string, value, empty T, err error) Result[T] {
	out := Classify(op, err)
	notify(op, out)
	switch {
	case out.Empty:
		return Ok(empty)
	case out.Err != nil:
		return Fail[T](out.Err)
	default:
		return Ok(value)
	}
}

// FromList is From for slices; the value is never nil on success so it
// encodes as [] rather than null.
func FromList[T any](op string, items []T, err error) Result[[]T] {
	res := From(op, items, err)
	if res.IsOk() && res.value == nil {
		res.value = []T{}
	}
	return res
}
