package core

// error_messages.go turns technical errors into messages an operator can
// act on. Each message carries a code that can be quoted to support.
//
// # Error Codes Reference
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate value (SQLSTATE 23505)
//	DB002 - Referenced record missing or still referenced (23503)
//	DB003 - Required column left empty (23502)
//	DB004 - Value outside the allowed range (23514)
//	DB005 - Connection refused or reset
//	DB006 - Timeout
//	DB007 - Deadlock or serialization failure (40P01, 40001)
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Required field empty ("required field")
//	VAL002 - Invalid number ("invalid number")
//	VAL003 - Invalid email ("invalid email")
//	VAL004 - Value not in the allowed list ("must be one of")
//	VAL005 - Password too short ("must be at least")
//	VAL006 - Any other validation failure
//
// # Inventory Errors (INV001-INV099)
//
//	INV001 - Insufficient stock
//	INV002 - Quantity must be positive
//	INV003 - Record not found
//	INV004 - Item in use, could not be deleted
//	INV005 - Table has no active flag
//
// # Authentication Errors (AUTH001-AUTH099)
//
//	AUTH001 - Invalid username or password
//	AUTH002 - Inactive account
//	AUTH003 - Username or email already registered
//	AUTH004 - Permission denied
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found in the database ("does not exist")
//	TBL002 - Unknown settings table
//	TBL003 - Records cannot be created from settings
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Lookup order: sentinel errors (errors.Is), then the SQLSTATE of a
// *pgconn.PgError, then case-insensitive substrings of the error text.
// The first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked first. ErrInUse comes before ErrNotFound and
// ErrSoftDeleteUnsupported because it wraps them.
var sentinelMessages = []sentinelMessage{
	{ErrInsufficientStock, UserMessage{"No hay stock suficiente para la cantidad solicitada", "Reduzca la cantidad o registre una entrada de stock", "INV001"}},
	{ErrInvalidQuantity, UserMessage{"La cantidad debe ser mayor que cero", "Ingrese una cantidad positiva", "INV002"}},
	{ErrInUse, UserMessage{"El elemento está en uso y no se puede eliminar", "Desactívelo en lugar de eliminarlo", "INV004"}},
	{ErrNotFound, UserMessage{"El registro no existe", "Actualice la lista e inténtelo de nuevo", "INV003"}},
	{ErrSoftDeleteUnsupported, UserMessage{"Esta tabla no admite desactivación", "Elimine el registro en su lugar", "INV005"}},
	{ErrInvalidCredentials, UserMessage{"Usuario o contraseña incorrectos", "Verifique sus credenciales", "AUTH001"}},
	{ErrInactiveUser, UserMessage{"La cuenta está inactiva", "Contacte a un administrador", "AUTH002"}},
	{ErrDuplicateUser, UserMessage{"El usuario o correo ya está registrado", "Use otro nombre de usuario o correo", "AUTH003"}},
	{ErrForbidden, UserMessage{"No tiene permiso para esta operación", "Solicite acceso a un administrador", "AUTH004"}},
	{ErrUnknownTable, UserMessage{"Tabla desconocida", "Seleccione una tabla de la lista", "TBL002"}},
	{ErrCreateDisabled, UserMessage{"Los registros de esta tabla no se crean desde configuración", "Use el formulario de registro", "TBL003"}},
	{ErrRateLimited, UserMessage{"Demasiadas solicitudes", "Espere un momento antes de intentarlo de nuevo", "RATE001"}},
}

// pgCodeMessages maps SQLSTATE codes.
var pgCodeMessages = map[string]UserMessage{
	pgUniqueViolation:     {"Ya existe un registro con ese valor", "Revise los valores duplicados", "DB001"},
	pgForeignKeyViolation: {"El registro relacionado no existe o sigue en uso", "Verifique las referencias seleccionadas", "DB002"},
	pgNotNullViolation:    {"Falta un valor obligatorio", "Complete todos los campos requeridos", "DB003"},
	pgCheckViolation:      {"Un valor está fuera del rango permitido", "Revise cantidades y valoraciones", "DB004"},
	"40P01":               {"La base de datos estaba ocupada", "Inténtelo de nuevo", "DB007"},
	"40001":               {"La base de datos estaba ocupada", "Inténtelo de nuevo", "DB007"},
	"42P01":               {"La tabla no existe en la base de datos", "Ejecute las migraciones", "TBL001"},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is the last resort. Specific patterns come before general
// ones.
var errorPatterns = []errorPattern{
	{"duplicate key", pgCodeMessages[pgUniqueViolation]},
	{"violates foreign key", pgCodeMessages[pgForeignKeyViolation]},
	{"connection refused", UserMessage{"No se pudo conectar a la base de datos", "Inténtelo de nuevo en unos momentos", "DB005"}},
	{"connection reset", UserMessage{"Se interrumpió la conexión con la base de datos", "Inténtelo de nuevo", "DB005"}},
	{"context deadline exceeded", UserMessage{"La operación tardó demasiado", "Inténtelo de nuevo más tarde", "DB006"}},
	{"timeout", UserMessage{"La operación tardó demasiado", "Inténtelo de nuevo más tarde", "DB006"}},
	{"deadlock", pgCodeMessages["40P01"]},
	{"does not exist", pgCodeMessages["42P01"]},

	{"required field", UserMessage{"Hay campos obligatorios vacíos", "Complete todos los campos requeridos", "VAL001"}},
	{"invalid number", UserMessage{"Número no válido", "Ingrese un número entero no negativo", "VAL002"}},
	{"invalid email", UserMessage{"Correo electrónico no válido", "Revise el formato del correo", "VAL003"}},
	{"must be one of", UserMessage{"El valor no está en la lista permitida", "Seleccione un valor de la lista", "VAL004"}},
	{"must be at least", UserMessage{"La contraseña es demasiado corta", "Use al menos 6 caracteres", "VAL005"}},
	{"validation failed", UserMessage{"Los datos del formulario no son válidos", "Revise los campos marcados", "VAL006"}},
	{"rate limit", UserMessage{"Demasiadas solicitudes", "Espere un momento antes de intentarlo de nuevo", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Inténtelo de nuevo o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("create request: %w", ErrInsufficientStock))
//	// msg.Code == "INV001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	if msg, ok := pgCodeMessages[pgCode(err)]; ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
