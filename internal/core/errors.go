package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrUnknownTable          = errors.New("unknown table")
	ErrSoftDeleteUnsupported = errors.New("table does not support soft delete")
	ErrCreateDisabled        = errors.New("records of this table cannot be created here")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrInactiveUser          = errors.New("user account is inactive")
	ErrDuplicateUser         = errors.New("username or email already registered")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInUse                 = errors.New("item is in use elsewhere and cannot be deleted")
	ErrForbidden             = errors.New("permission denied")
	ErrRateLimited           = errors.New("rate limit exceeded")
)

// SQLSTATE codes the service reacts to.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// ValidationError represents a single invalid field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every failure of a form.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// errOrNil returns nil for an empty collection so callers can return it
// directly.
func (v ValidationErrors) errOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool { return pgCode(err) == pgForeignKeyViolation }

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
