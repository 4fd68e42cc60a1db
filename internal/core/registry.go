package core

import (
	"fmt"
	"sort"
	"sync"
)

// FieldKind selects how a settings field is edited and converted.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldInteger
	FieldCheckbox
	FieldRelation // id_<x> column referencing another settings table
	FieldChoice   // fixed list of Options
)

// FieldSpec describes one editable column of a settings table.
type FieldSpec struct {
	Column   string    // Database column
	Label    string    // Form label
	Kind     FieldKind // Editor and conversion
	Options  []string  // Allowed values for FieldChoice
	Optional bool      // May be left empty
}

// TableDefinition describes a lookup table managed by the settings engine.
type TableDefinition struct {
	Key            string // Table name, also the URL key: "marcas"
	Label          string // Display name: "Marcas"
	IDColumn       string
	Fields         []FieldSpec
	DisplayColumns []string // Column headers of ListAll, id first

	// CreateDisabled blocks Insert for tables whose rows need more than
	// the generic form can supply.
	CreateDisabled bool

	// ListAllQuery and ListActiveQuery override the generic projection.
	// Both must return the id as first column.
	ListAllQuery    string
	ListActiveQuery string
}

// Headers labels the columns of a listing result. A result that lines up
// with DisplayColumns takes those labels; the active-only projections
// leave out the trailing activo column, so a shorter result takes a
// prefix. Anything else is labeled column by column from the fields.
func (t TableDefinition) Headers(columns []string) []string {
	if n := len(columns); n > 0 && n <= len(t.DisplayColumns) {
		return append([]string(nil), t.DisplayColumns[:n]...)
	}
	out := make([]string, len(columns))
	for i, c := range columns {
		f, ok := t.Field(c)
		switch {
		case c == t.IDColumn:
			out[i] = "ID"
		case ok:
			out[i] = f.Label
		default:
			out[i] = c
		}
	}
	return out
}

// Field returns the field definition for a column.
func (t TableDefinition) Field(column string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldSpec{}, false
}

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if a table with the same key is already registered.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Key))
	}
	if def.IDColumn == "" {
		panic(fmt.Sprintf("table %s has no id column", def.Key))
	}
	registry[def.Key] = def
}

// Get returns a table definition by key.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// lookupTable is Get with an error suitable for returning to callers.
func lookupTable(key string) (TableDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, key)
	}
	return def, nil
}

// ByIDColumn finds the table whose primary key is column.
func ByIDColumn(column string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, def := range registry {
		if def.IDColumn == column {
			return def, true
		}
	}
	return TableDefinition{}, false
}

// All returns every registered definition sorted by label.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Label < result[j].Label
	})
	return result
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
