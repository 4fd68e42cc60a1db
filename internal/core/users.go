package core

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength is enforced on registration and password changes.
const minPasswordLength = 6

// bcryptCost is a variable so tests can lower it.
var bcryptCost = bcrypt.DefaultCost

// User is an application account. The password hash never leaves core.
type User struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

// Actor returns the user as the context actor.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.FullName, Username: u.Username, Role: u.Role}
}

// UserInput is the payload for Register and CreateUser.
type UserInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate checks every required field and the password length.
func (in UserInput) Validate() error {
	var errs ValidationErrors
	for _, f := range []struct{ name, value string }{
		{"nombre_completo", in.FullName},
		{"email", in.Email},
		{"usuario", in.Username},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, ValidationError{Field: f.name, Message: "required field is empty"})
		}
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		errs = append(errs, ValidationError{Field: "email", Value: in.Email, Message: "invalid email address"})
	}
	if err := validatePassword(in.Password); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if in.Role != "" && in.Role != RoleAdmin && in.Role != RoleUser {
		errs = append(errs, ValidationError{Field: "rol", Value: in.Role, Message: "must be admin or usuario"})
	}
	return errs.errOrNil()
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	return nil
}

// HashPassword returns a bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// isLegacyHash reports whether stored is an unsalted SHA-256 hex digest.
func isLegacyHash(stored string) bool {
	if len(stored) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(stored)
	return err == nil
}

// CheckPassword compares pw against a stored hash. legacy is true when the
// match was against an unsalted SHA-256 digest that should be rehashed.
func CheckPassword(stored, pw string) (ok, legacy bool) {
	if isLegacyHash(stored) {
		sum := sha256.Sum256([]byte(pw))
		digest := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(digest)) == 1, true
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pw)) == nil, false
}

// Authenticate verifies credentials and returns the user.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials.
// A deactivated account with a correct password returns ErrInactiveUser.
// A password stored as a legacy unsalted sha256 hash is rehashed with
// bcrypt after a successful login. If hashing fails the login still
// succeeds and the upgrade is retried next time. A login is audited
// with the user as actor.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	var stored string
	err := s.pool.QueryRow(ctx, `
		SELECT id, nombre_completo, email, usuario, password, rol, activo
		FROM usuarios WHERE usuario = $1`, strings.TrimSpace(username)).
		Scan(&u.ID, &u.FullName, &u.Email, &u.Username, &stored, &u.Role, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, legacy := CheckPassword(stored, password)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}

	if legacy {
		hash, err := HashPassword(password)
		if err != nil {
			// The login itself is valid; the upgrade is retried next time.
			slog.Warn("legacy password hash not upgraded", "user_id", u.ID, "error", err)
		} else if _, err := s.pool.Exec(ctx, `UPDATE usuarios SET password = $1 WHERE id = $2`, hash, u.ID); err != nil {
			return nil, fmt.Errorf("upgrade password hash: %w", err)
		}
	}

	s.LogAudit(ContextWithActor(ctx, u.Actor()), AuditLogParams{Action: ActionLogin, TableKey: "usuarios", RowKey: u.ID})
	return &u, nil
}

// Register creates an account with the usuario role, whatever role the
// input carries. It backs the public sign-up form.
func (s *Service) Register(ctx context.Context, in UserInput) (int, error) {
	in.Role = RoleUser
	return s.CreateUser(ctx, in)
}

// CreateUser creates an account with the given role (usuario when empty).
func (s *Service) CreateUser(ctx context.Context, in UserInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	username, email := strings.TrimSpace(in.Username), strings.TrimSpace(in.Email)

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM usuarios WHERE usuario = $1 OR email = $2)`,
		username, email).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return 0, ErrDuplicateUser
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return 0, err
	}

	var id int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO usuarios (nombre_completo, email, usuario, password, rol)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		strings.TrimSpace(in.FullName), email, username, hash, in.Role).Scan(&id)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "usuarios", RowKey: id,
		Details: map[string]interface{}{"usuario": username, "rol": in.Role}})
	return id, nil
}

// UpdatePassword sets a new password for the account with this email.
// The password is validated and bcrypt-hashed first. Returns ErrNotFound
// when no account has the email.
func (s *Service) UpdatePassword(ctx context.Context, email, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, s.pool, `UPDATE usuarios SET password = $1 WHERE email = $2`, hash, strings.TrimSpace(email))
	if err := requireAffected(n, err, "user "+email); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionPasswordChange, TableKey: "usuarios", RowKey: email})
	return nil
}

// UserByID returns an account by id.
func (s *Service) UserByID(ctx context.Context, id int) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, nombre_completo, email, usuario, rol, activo FROM usuarios WHERE id = $1`, id).
		Scan(&u.ID, &u.FullName, &u.Email, &u.Username, &u.Role, &u.Active)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, notFound(err))
	}
	return &u, nil
}

// ActiveUsers returns active accounts as options, for responsible pickers.
func (s *Service) ActiveUsers(ctx context.Context) ([]Option, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, nombre_completo FROM usuarios WHERE activo = TRUE ORDER BY nombre_completo`)
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	return collectOptions(rows)
}
