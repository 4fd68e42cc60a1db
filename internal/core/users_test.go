package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secreto1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}

	if ok, legacy := CheckPassword(hash, "secreto1"); !ok || legacy {
		t.Errorf("CheckPassword(correct) = (%v, %v), want (true, false)", ok, legacy)
	}
	if ok, _ := CheckPassword(hash, "otro"); ok {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestCheckPassword_Legacy(t *testing.T) {
	sum := sha256.Sum256([]byte("clave123"))
	stored := hex.EncodeToString(sum[:])

	if ok, legacy := CheckPassword(stored, "clave123"); !ok || !legacy {
		t.Errorf("CheckPassword(legacy) = (%v, %v), want (true, true)", ok, legacy)
	}
	if ok, legacy := CheckPassword(strings.ToUpper(stored), "clave123"); !ok || !legacy {
		t.Errorf("upper-case digest should match, got (%v, %v)", ok, legacy)
	}
	if ok, _ := CheckPassword(stored, "nope"); ok {
		t.Error("legacy check accepted a wrong password")
	}
}

func TestIsLegacyHash(t *testing.T) {
	if isLegacyHash("$2a$10$abcdefghijklmnopqrstuv") {
		t.Error("bcrypt hash reported as legacy")
	}
	if isLegacyHash(strings.Repeat("z", 64)) {
		t.Error("non-hex string reported as legacy")
	}
	if !isLegacyHash(strings.Repeat("a1", 32)) {
		t.Error("64 hex chars should be legacy")
	}
}

func TestUserInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      UserInput
		wantErr bool
	}{
		{"valid", UserInput{FullName: "Ana Pérez", Email: "ana@example.com", Username: "ana", Password: "secreto"}, false},
		{"admin role", UserInput{FullName: "A", Email: "a@b", Username: "a", Password: "secreto", Role: RoleAdmin}, false},
		{"short password", UserInput{FullName: "A", Email: "a@b", Username: "a", Password: "123"}, true},
		{"bad email", UserInput{FullName: "A", Email: "ab", Username: "a", Password: "secreto"}, true},
		{"missing name", UserInput{Email: "a@b", Username: "a", Password: "secreto"}, true},
		{"bad role", UserInput{FullName: "A", Email: "a@b", Username: "a", Password: "secreto", Role: "root"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUser_Actor(t *testing.T) {
	u := User{ID: 3, FullName: "Ana", Username: "ana", Role: RoleAdmin}
	a := u.Actor()
	if a.ID != 3 || a.Username != "ana" || !a.IsAdmin() {
		t.Errorf("Actor() = %+v", a)
	}
}

func legacyDigest(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

func userRow(mock pgxmock.PgxPoolIface, stored string, active bool) *pgxmock.Rows {
	return mock.NewRows([]string{"id", "nombre_completo", "email", "usuario", "password", "rol", "activo"}).
		AddRow(4, "Ana Pérez", "ana@example.com", "ana", stored, RoleUser, active)
}

func TestAuthenticate_UpgradesLegacyHash(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectQuery("FROM usuarios WHERE usuario = \\$1").WithArgs("ana").
		WillReturnRows(userRow(mock, legacyDigest("secreto"), true))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE usuarios SET password = $1 WHERE id = $2`)).
		WithArgs(bcryptOf("secreto"), 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAudit(mock)

	u, err := s.Authenticate(context.Background(), " ana ", "secreto")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != 4 || u.Username != "ana" {
		t.Errorf("user = %+v", u)
	}
}

func TestAuthenticate_UpgradeFailureFailsLogin(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectQuery("FROM usuarios").WithArgs("ana").
		WillReturnRows(userRow(mock, legacyDigest("secreto"), true))
	mock.ExpectExec("UPDATE usuarios SET password").
		WithArgs(pgxmock.AnyArg(), 4).
		WillReturnError(errors.New("connection reset"))

	if _, err := s.Authenticate(context.Background(), "ana", "secreto"); err == nil {
		t.Fatal("Authenticate succeeded although the hash could not be stored")
	}
}

func TestAuthenticate_UnhashablePasswordSkipsUpgrade(t *testing.T) {
	// bcrypt rejects passwords over 72 bytes; the legacy match still logs in.
	long := strings.Repeat("x", 80)
	s, mock := newMockService(t)
	mock.ExpectQuery("FROM usuarios").WithArgs("ana").
		WillReturnRows(userRow(mock, legacyDigest(long), true))
	expectAudit(mock)

	if _, err := s.Authenticate(context.Background(), "ana", long); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestAuthenticate_BcryptHashIsKept(t *testing.T) {
	hash, err := HashPassword("secreto")
	if err != nil {
		t.Fatal(err)
	}
	s, mock := newMockService(t)
	mock.ExpectQuery("FROM usuarios").WithArgs("ana").
		WillReturnRows(userRow(mock, hash, true))
	expectAudit(mock)

	if _, err := s.Authenticate(context.Background(), "ana", "secreto"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		rows     func(mock pgxmock.PgxPoolIface) *pgxmock.Rows
		password string
		want     error
	}{
		{"unknown user", func(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
			return mock.NewRows([]string{"id"})
		}, "secreto", ErrInvalidCredentials},
		{"wrong password", func(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
			return userRow(mock, legacyDigest("secreto"), true)
		}, "otra", ErrInvalidCredentials},
		{"inactive user", func(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
			return userRow(mock, legacyDigest("secreto"), false)
		}, "secreto", ErrInactiveUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockService(t)
			mock.ExpectQuery("FROM usuarios").WithArgs("ana").WillReturnRows(tt.rows(mock))

			if _, err := s.Authenticate(context.Background(), "ana", tt.password); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
