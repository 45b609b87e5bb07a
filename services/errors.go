package services

import (
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindValidation
	KindNotFound
	KindConflict
	KindConcurrency
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConcurrency:
		return "concurrency"
	default:
		return "internal"
	}
}

// Error is the engine's error type. Message is safe to show to callers for
// every kind except KindInternal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func UnauthorizedError(format string, args ...interface{}) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func InternalError(err error, message string) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Errors that are
// not *Error are classified: lock and serialization failures from Postgres are
// KindConcurrency, everything else KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if isConcurrencyFailure(err) {
		return KindConcurrency
	}
	return KindInternal
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Postgres SQLSTATEs that mean "another transaction got in the way".
var concurrencyCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

func isConcurrencyFailure(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return concurrencyCodes[pgErr.Code]
	}
	return false
}

// classifyDBError turns a raw persistence error into an *Error, keeping the
// cause for logs.
func classifyDBError(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return err
	}
	if isConcurrencyFailure(err) {
		return &Error{Kind: KindConcurrency, Message: message, Err: err}
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: message, Err: err}
	}
	return &Error{Kind: KindInternal, Message: message, Err: errors.WithStack(err)}
}
