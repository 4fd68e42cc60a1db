package core

// settings.go is the generic CRUD engine behind the settings screens.
//
// Every registered lookup table supports the same lifecycle:
//
//	Insert -> Update* -> SoftDelete (activo = FALSE) -> Activate -> ...
//
// Physical Delete is attempted only on request and falls back to a soft
// delete when the row is still referenced (SQLSTATE 23503). Tables are
// introspected through information_schema to learn whether they carry the
// activo flag, so definitions never have to state it twice.

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// TableRow is one displayed row.
type TableRow struct {
	ID     int      `json:"id"`
	Values []string `json:"values"`
	Active *bool    `json:"active,omitempty"`
}

// TableData is a rendered table: column headers plus rows. Columns holds
// the display labels; Fields the underlying column names in the same
// order.
type TableData struct {
	Table   string     `json:"table"`
	Label   string     `json:"label"`
	Columns []string   `json:"columns"`
	Fields  []string   `json:"fields"`
	Rows    []TableRow `json:"rows"`
}

// Item is a single raw row keyed by column name.
type Item map[string]interface{}

// DeleteOutcome reports what Delete actually did.
type DeleteOutcome string

const (
	OutcomeDeleted     DeleteOutcome = "deleted"
	OutcomeDeactivated DeleteOutcome = "deactivated"
)

// relatedIDColumns maps singular relation names to their key column.
var relatedIDColumns = map[string]string{
	"categoria":    "id_categoria",
	"marca":        "id_marca",
	"departamento": "id_departamento",
	"ubicacion":    "id_ubicacion",
	"proveedor":    "id_proveedor",
	"solicitante":  "id_solicitante",
}

// resolveIDColumn returns the primary key column for a table name.
// Registered tables answer directly; otherwise the singular map is
// consulted, then a trailing "s" is stripped, and finally "id" is assumed.
func resolveIDColumn(table string) string {
	if def, ok := Get(table); ok {
		return def.IDColumn
	}
	if col, ok := relatedIDColumns[table]; ok {
		return col
	}
	if strings.HasSuffix(table, "s") {
		return "id_" + strings.TrimSuffix(table, "s")
	}
	return "id"
}

// relatedTable resolves a relation given as a field ("id_marca"), a
// singular name ("marca") or a registered table ("marcas").
func relatedTable(name string) (TableDefinition, error) {
	if def, ok := Get(name); ok {
		return def, nil
	}
	col := name
	if !strings.HasPrefix(col, "id_") {
		col = resolveIDColumn(name)
	}
	// The bare "id" fallback says nothing about which table is meant.
	if col != "id" {
		if def, ok := ByIDColumn(col); ok {
			return def, nil
		}
	}
	return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
}

// hasColumn reports whether table has the given column in the current
// schema.
func (s *Service) hasColumn(ctx context.Context, db DBTX, table, column string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)`, table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return exists, nil
}

// ListAll returns every row of a settings table, inactive rows included.
func (s *Service) ListAll(ctx context.Context, table string) (*TableData, error) {
	def, err := lookupTable(table)
	if err != nil {
		return nil, err
	}

	query := def.ListAllQuery
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
			quoteIdentifier(def.Key), quoteIdentifier(def.IDColumn))
	}

	data, err := s.queryTable(ctx, def, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return data, nil
}

// ListActive returns only active rows, as offered in selection lists.
func (s *Service) ListActive(ctx context.Context, table string) (*TableData, error) {
	def, err := lookupTable(table)
	if err != nil {
		return nil, err
	}

	query := def.ListActiveQuery
	if query == "" {
		hasActive, err := s.hasColumn(ctx, s.pool, def.Key, activeColumn)
		if err != nil {
			return nil, err
		}
		query = "SELECT * FROM " + quoteIdentifier(def.Key)
		if hasActive {
			query += " WHERE " + activeColumn + " = TRUE"
		}
		query += " ORDER BY " + quoteIdentifier(def.IDColumn)
	}

	data, err := s.queryTable(ctx, def, query)
	if err != nil {
		return nil, fmt.Errorf("list active %s: %w", table, err)
	}
	return data, nil
}

func (s *Service) queryTable(ctx context.Context, def TableDefinition, query string) (*TableData, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	data := &TableData{
		Table:  def.Key,
		Label:  def.Label,
		Fields: make([]string, len(fields)),
		Rows:   []TableRow{},
	}
	activeIdx := -1
	for i, fd := range fields {
		data.Fields[i] = fd.Name
		if fd.Name == activeColumn {
			activeIdx = i
		}
	}
	data.Columns = def.Headers(data.Fields)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := TableRow{Values: make([]string, len(values))}
		if len(values) > 0 {
			row.ID = toInt(values[0])
		}
		for i, v := range values {
			row.Values[i] = FormatValue(v)
		}
		if activeIdx >= 0 {
			if b, ok := values[activeIdx].(bool); ok {
				row.Active = &b
			}
		}
		data.Rows = append(data.Rows, row)
	}
	return data, rows.Err()
}

// GetItem returns one raw row by id.
func (s *Service) GetItem(ctx context.Context, table string, id int) (Item, error) {
	def, err := lookupTable(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1",
		quoteIdentifier(def.Key), quoteIdentifier(def.IDColumn))
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", table, id, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", table, id, notFound(err))
	}
	// Password hashes never leave the service.
	delete(item, "password")
	return Item(item), nil
}

// RelatedOptions returns active (id, nombre) pairs of a related table,
// ordered by name.
func (s *Service) RelatedOptions(ctx context.Context, related string) ([]Option, error) {
	def, err := relatedTable(related)
	if err != nil {
		return nil, err
	}

	hasActive, err := s.hasColumn(ctx, s.pool, def.Key, activeColumn)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s, nombre FROM %s",
		quoteIdentifier(def.IDColumn), quoteIdentifier(def.Key))
	if hasActive {
		query += " WHERE " + activeColumn + " = TRUE"
	}
	query += " ORDER BY nombre"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("options for %s: %w", related, err)
	}
	opts, err := collectOptions(rows)
	if err != nil {
		return nil, fmt.Errorf("options for %s: %w", related, err)
	}
	return opts, nil
}

// Insert creates a row from form values and returns its id.
//
// Only the columns the table definition declares are written, in field
// order. Every invalid field is collected into ValidationErrors. Tables
// with CreateDisabled return ErrCreateDisabled.
func (s *Service) Insert(ctx context.Context, table string, form map[string]string) (int, error) {
	def, err := lookupTable(table)
	if err != nil {
		return 0, err
	}
	if def.CreateDisabled {
		return 0, fmt.Errorf("%s: %w", table, ErrCreateDisabled)
	}

	cols, vals, err := def.BuildValues(form)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdentifier(def.Key),
		strings.Join(quoteColumns(cols), ", "),
		placeholders(len(vals)),
		quoteIdentifier(def.IDColumn),
	)

	var id int
	if err := s.pool.QueryRow(ctx, query, vals...).Scan(&id); err != nil {
		return 0, fmt.Errorf("could not add %s item: %w", table, err)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionCreate,
		TableKey: table,
		RowKey:   id,
		Details:  formDetails(cols, vals),
	})
	return id, nil
}

// Update rewrites the editable columns of a row.
func (s *Service) Update(ctx context.Context, table string, id int, form map[string]string) error {
	def, err := lookupTable(table)
	if err != nil {
		return err
	}

	cols, vals, err := def.BuildValues(form)
	if err != nil {
		return err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(c), i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quoteIdentifier(def.Key), strings.Join(sets, ", "),
		quoteIdentifier(def.IDColumn), len(vals)+1)

	n, err := s.exec(ctx, s.pool, query, append(vals, id)...)
	if err := requireAffected(n, err, fmt.Sprintf("update %s %d", table, id)); err != nil {
		return fmt.Errorf("could not update %s item: %w", table, err)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionUpdate,
		TableKey: table,
		RowKey:   id,
		Details:  formDetails(cols, vals),
	})
	return nil
}

// SoftDelete marks a row inactive. Tables without an activo column
// cannot be soft deleted.
func (s *Service) SoftDelete(ctx context.Context, table string, id int) error {
	def, err := lookupTable(table)
	if err != nil {
		return err
	}
	if err := s.setActive(ctx, def, id, false); err != nil {
		return fmt.Errorf("could not deactivate %s item: %w", table, err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDeactivate, TableKey: table, RowKey: id})
	return nil
}

// Activate marks a row active again. It returns false when the table has
// no activo column.
func (s *Service) Activate(ctx context.Context, table string, id int) (bool, error) {
	def, err := lookupTable(table)
	if err != nil {
		return false, err
	}
	err = s.setActive(ctx, def, id, true)
	if errors.Is(err, ErrSoftDeleteUnsupported) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not activate %s item: %w", table, err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionActivate, TableKey: table, RowKey: id})
	return true, nil
}

func (s *Service) setActive(ctx context.Context, def TableDefinition, id int, active bool) error {
	hasActive, err := s.hasColumn(ctx, s.pool, def.Key, activeColumn)
	if err != nil {
		return err
	}
	if !hasActive {
		return ErrSoftDeleteUnsupported
	}

	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2",
		quoteIdentifier(def.Key), activeColumn, quoteIdentifier(def.IDColumn))
	n, err := s.exec(ctx, s.pool, query, active, id)
	return requireAffected(n, err, fmt.Sprintf("%s %d", def.Key, id))
}

// Delete removes a row physically.
//
// When other rows still reference it (SQLSTATE 23503) the row is
// deactivated instead and OutcomeDeactivated is returned. If the table has
// no activo column the fallback fails too, and the error wraps ErrInUse.
// Returns ErrNotFound when the id does not exist.
func (s *Service) Delete(ctx context.Context, table string, id int) (DeleteOutcome, error) {
	def, err := lookupTable(table)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteIdentifier(def.Key), quoteIdentifier(def.IDColumn))
	n, err := s.exec(ctx, s.pool, query, id)
	switch {
	case err == nil:
		if n == 0 {
			return "", fmt.Errorf("delete %s %d: %w", table, id, ErrNotFound)
		}
		s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, TableKey: table, RowKey: id})
		return OutcomeDeleted, nil

	case isForeignKeyViolation(err):
		if softErr := s.SoftDelete(ctx, table, id); softErr != nil {
			return "", fmt.Errorf("delete %s %d: %w: %w", table, id, ErrInUse, softErr)
		}
		return OutcomeDeactivated, nil

	default:
		return "", fmt.Errorf("could not delete %s item: %w", table, err)
	}
}

// BuildValues converts submitted form values into column/value lists in
// field order. Every invalid field is reported. A checkbox that was not
// submitted at all is left out so the column keeps its current (or
// default) value.
func (t TableDefinition) BuildValues(form map[string]string) ([]string, []interface{}, error) {
	var (
		cols []string
		vals []interface{}
		errs ValidationErrors
	)

	for _, f := range t.Fields {
		raw, present := form[f.Column]
		if f.Kind == FieldCheckbox && !present {
			continue
		}
		v, err := f.Convert(raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: f.Column, Value: raw, Message: err.Error()})
			continue
		}
		cols = append(cols, f.Column)
		vals = append(vals, v)
	}

	if err := errs.errOrNil(); err != nil {
		return nil, nil, err
	}
	return cols, vals, nil
}

// Convert turns one submitted string into the value stored for the field.
func (f FieldSpec) Convert(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)

	if f.Kind == FieldCheckbox {
		return parseCheckbox(raw)
	}
	if raw == "" {
		if f.Optional {
			return nil, nil
		}
		return nil, errors.New("required field is empty")
	}

	switch f.Kind {
	case FieldInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("invalid number: must be a whole number")
		}
		if n < 0 {
			return nil, errors.New("invalid number: must not be negative")
		}
		return n, nil

	case FieldRelation:
		id, ok := ParseOptionID(raw)
		if !ok {
			return nil, errors.New("invalid selection")
		}
		return id, nil

	case FieldChoice:
		if !contains(f.Options, raw) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
		}
		return raw, nil
	}
	return raw, nil
}

func parseCheckbox(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "true", "1", "sí", "si", "yes":
		return true, nil
	case "", "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

// ParseOptionID extracts the id from a selection value, accepting both
// "7" and the list label "7 - Ferretería".
func ParseOptionID(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, " - "); i >= 0 {
		raw = raw[:i]
	}
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func formDetails(cols []string, vals []interface{}) map[string]interface{} {
	d := make(map[string]interface{}, len(cols))
	for i, c := range cols {
		d[c] = vals[i]
	}
	return d
}

func toInt(v interface{}) int {
	switch x := v.(type) {
	case int:
		return x
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	}
	return 0
}
