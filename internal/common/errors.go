package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden access")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict") // e.g. duplicate code hash row
	ErrInternalServer     = errors.New("internal server error")
	ErrValidation         = errors.New("validation failed")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrServiceUnavailable = errors.New("service unavailable") // e.g. Judge0 down
)

// Error is an error whose message is safe to show to the caller. The debug cause is kept
// apart so it only reaches logs (and, outside production, 503 responses).
type Error struct {
	kind      error
	msgToUser string
	debug     error
}

// NewError returns a user facing error of the given kind (one of the sentinels above).
func NewError(kind error, msgToUser string) *Error {
	return &Error{kind: kind, msgToUser: msgToUser}
}

func (e *Error) Error() string {
	return e.msgToUser
}

// Unwrap exposes only the kind; the debug cause is reachable through DebugInfo.
func (e *Error) Unwrap() error {
	return e.kind
}

func (e *Error) DebugInfo() error {
	return e.debug
}

func (e *Error) WithDebug(err error) *Error {
	e.debug = err
	return e
}

// UserMessage returns the message of the first *Error in the chain, or "" if there is none.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msgToUser
	}
	return ""
}

// DebugInfo returns the debug cause of the first *Error in the chain, or err itself.
func DebugInfo(err error) error {
	var e *Error
	if errors.As(err, &e) && e.debug != nil {
		return e.debug
	}
	return err
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrTooManyRequests) {
		return http.StatusTooManyRequests
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrInternalServer) {
		return http.StatusInternalServerError
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// IsUniqueViolation reports whether err carries a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
