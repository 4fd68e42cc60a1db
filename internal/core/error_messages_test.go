package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "wrapped insufficient stock",
			err:      fmt.Errorf("create request: %w", &InsufficientStockError{ProductID: 3, Requested: 9}),
			wantCode: "INV001",
		},
		{
			name:     "invalid quantity",
			err:      ErrInvalidQuantity,
			wantCode: "INV002",
		},
		{
			name:     "not found",
			err:      fmt.Errorf("get product 9: %w", ErrNotFound),
			wantCode: "INV003",
		},
		{
			name:     "in use wins over its cause",
			err:      fmt.Errorf("delete marcas 1: %w: %w", ErrInUse, ErrNotFound),
			wantCode: "INV004",
		},
		{
			name:     "invalid credentials",
			err:      ErrInvalidCredentials,
			wantCode: "AUTH001",
		},
		{
			name:     "duplicate user",
			err:      ErrDuplicateUser,
			wantCode: "AUTH003",
		},
		{
			name:     "unknown table",
			err:      fmt.Errorf("%w: bodegas", ErrUnknownTable),
			wantCode: "TBL002",
		},
		{
			name:     "unique violation by sqlstate",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", Message: "whatever"}),
			wantCode: "DB001",
		},
		{
			name:     "check violation by sqlstate",
			err:      &pgconn.PgError{Code: "23514"},
			wantCode: "DB004",
		},
		{
			name:     "duplicate key by message",
			err:      errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode: "DB001",
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp: connection refused"),
			wantCode: "DB005",
		},
		{
			name:     "deadline",
			err:      errors.New("context deadline exceeded"),
			wantCode: "DB006",
		},
		{
			name:     "validation collection",
			err:      ValidationErrors{{Field: "nombre", Message: "required field is empty"}},
			wantCode: "VAL001",
		},
		{
			name:     "choice validation",
			err:      ValidationError{Field: "prioridad", Message: "must be one of Alta, Media, Baja"},
			wantCode: "VAL004",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("Rate Limit reached"),
			wantCode: "RATE001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrInsufficientStock)

	expected := "No hay stock suficiente para la cantidad solicitada (Code: INV001). Reduzca la cantidad o registre una entrada de stock"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", errors.New("duplicate key"), true},
		{"sentinel is user facing", ErrInactiveUser, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Usuario o contraseña incorrectos" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrInvalidCredentials) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
