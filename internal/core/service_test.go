package core

import (
	"testing"
	"time"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// newMockService returns a Service over a pgxmock pool. Expectations are
// matched in order and must all be met by the end of the test.
func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet database expectations: %v", err)
		}
	})
	s := NewService(mock, &config.Config{Stock: config.StockConfig{DefaultMinimum: 5}})
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

// expectAudit expects one audit_log insert with any arguments.
func expectAudit(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

// expectHasColumn answers one information_schema lookup.
func expectHasColumn(mock pgxmock.PgxPoolIface, table, column string, exists bool) {
	mock.ExpectQuery("information_schema.columns").
		WithArgs(table, column).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(exists))
}

// intArg matches a *int argument; a nil want matches only a nil pointer.
type intArg struct{ want *int }

func (a intArg) Match(v interface{}) bool {
	p, ok := v.(*int)
	if !ok {
		return false
	}
	if a.want == nil || p == nil {
		return a.want == nil && p == nil
	}
	return *a.want == *p
}

// bcryptOf matches a bcrypt hash of password.
type bcryptOf string

func (pw bcryptOf) Match(v interface{}) bool {
	hash, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func TestNewService(t *testing.T) {
	s := NewService(nil, nil)
	if s.minStock != 0 || s.now == nil {
		t.Errorf("NewService(nil, nil) = %+v", s)
	}
	s = NewService(nil, &config.Config{Stock: config.StockConfig{DefaultMinimum: 3}})
	if s.minStock != 3 {
		t.Errorf("minStock = %d, want 3", s.minStock)
	}
}
