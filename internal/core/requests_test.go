package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestParseProductIdentifier(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"12", 12, true},
		{" 12 ", 12, true},
		{"12 - Lápiz", 12, true},
		{"(12, 'Lápiz')", 12, true},
		{"Lápiz", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseProductIdentifier(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseProductIdentifier(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRequestInput_Validate(t *testing.T) {
	valid := RequestInput{
		DepartmentID: 1, RequesterID: 2, ResponsibleID: 3,
		Items: []RequestItem{{ProductID: 5, Quantity: 1}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := valid
	empty.Items = nil
	if err := empty.Validate(); err == nil {
		t.Error("expected error for a request without lines")
	}

	badLine := valid
	badLine.Items = []RequestItem{{ProductID: 5, Quantity: 0}, {Quantity: 1}}
	var verrs ValidationErrors
	if err := badLine.Validate(); !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Errorf("expected two line errors, got %v", err)
	}
}

func TestInsufficientStockError(t *testing.T) {
	err := fmt.Errorf("create request: %w", &InsufficientStockError{ProductID: 4, Requested: 10})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("InsufficientStockError should match ErrInsufficientStock")
	}
	var ise *InsufficientStockError
	if !errors.As(err, &ise) || ise.ProductID != 4 {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestBuildRequestQuery(t *testing.T) {
	query, args := buildRequestQuery(RequestFilter{Search: "urgente", Department: "Compras"})
	for _, frag := range []string{"s.comentario ILIKE $1", "d.nombre = $2", "LIMIT 100"} {
		if !strings.Contains(query, frag) {
			t.Errorf("query missing %q", frag)
		}
	}
	if len(args) != 2 || args[0] != "%urgente%" {
		t.Errorf("unexpected args %v", args)
	}

	_, args = buildRequestQuery(RequestFilter{Department: "Todos"})
	if len(args) != 0 {
		t.Errorf("Todos should not filter, got %v", args)
	}
}

var decrementStock = regexp.QuoteMeta(`UPDATE inventario SET stock = stock - $1`)

func TestCreateRequest_InsufficientStockWritesNothing(t *testing.T) {
	s, mock := newMockService(t)
	in := RequestInput{DepartmentID: 1, RequesterID: 2, ResponsibleID: 3, Items: []RequestItem{
		{ProductID: 7, Quantity: 2},
		{ProductID: 8, Quantity: 50},
	}}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO solicitudes").
		WithArgs(1, 2, 3, nil, fixedNow).
		WillReturnRows(mock.NewRows([]string{"id_solicitud"}).AddRow(41))

	// First line is served.
	mock.ExpectExec("INSERT INTO detalle_solicitud").WithArgs(41, 7, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(decrementStock).WithArgs(2, 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE inventario i SET estado_stock").WithArgs(7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM usuarios WHERE id = $1)`)).WithArgs(3).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO movimientos").
		WithArgs(7, MovementOut, 2, intArg{want: &in.ResponsibleID}, "Solicitud #41", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Second line exceeds stock: the guarded decrement matches no row.
	mock.ExpectExec("INSERT INTO detalle_solicitud").WithArgs(41, 8, 50).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(decrementStock).WithArgs(50, 8).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	id, err := s.CreateRequest(context.Background(), in)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != 8 || stockErr.Requested != 50 {
		t.Errorf("err = %#v, want product 8 requested 50", err)
	}
	if id != 0 {
		t.Errorf("id = %d, want 0", id)
	}
}

func TestCreateRequest_Commits(t *testing.T) {
	s, mock := newMockService(t)
	in := RequestInput{DepartmentID: 1, RequesterID: 2, ResponsibleID: 3, Comment: "urgente",
		Items: []RequestItem{{ProductID: 7, Quantity: 2}}}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO solicitudes").
		WithArgs(1, 2, 3, "urgente", fixedNow).
		WillReturnRows(mock.NewRows([]string{"id_solicitud"}).AddRow(42))
	mock.ExpectExec("INSERT INTO detalle_solicitud").WithArgs(42, 7, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(decrementStock).WithArgs(2, 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE inventario i SET estado_stock").WithArgs(7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(3).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	// An unknown responsible user is stored as NULL.
	mock.ExpectExec("INSERT INTO movimientos").
		WithArgs(7, MovementOut, 2, intArg{}, "Solicitud #42", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	expectAudit(mock)

	id, err := s.CreateRequest(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
}
