package core

import (
	"reflect"
	"testing"
	"time"
)

// ============================================================================
// WhereBuilder Tests
// ============================================================================

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb == nil {
		t.Fatal("NewWhereBuilder returned nil")
	}
	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 || len(wb.args) != 0 {
		t.Errorf("expected empty builder, got %d conditions and %d args", len(wb.conditions), len(wb.args))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add_SkipsZeroValues(t *testing.T) {
	var nilInt *int
	wb := NewWhereBuilder()
	wb.Add("a", "")
	wb.Add("b", 0)
	wb.Add("c", nilInt)
	wb.Add("d", time.Time{})
	wb.Add("e", nil)

	if whereClause, _ := wb.Build(); whereClause != "" {
		t.Errorf("expected zero values to be skipped, got %q", whereClause)
	}
}

func TestWhereBuilder_Combined(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddRaw("p.activo = TRUE")
	wb.Add("p.id_marca", 4)
	wb.AddExpr("(p.codigo ILIKE ? OR p.nombre ILIKE ?)", "%a%", "%a%")

	whereClause, args := wb.Build()

	want := " WHERE p.activo = TRUE AND p.id_marca = $1 AND (p.codigo ILIKE $2 OR p.nombre ILIKE $3)"
	if whereClause != want {
		t.Errorf("Build() = %q, want %q", whereClause, want)
	}
	if !reflect.DeepEqual(args, []interface{}{4, "%a%", "%a%"}) {
		t.Errorf("args = %v", args)
	}
}

func TestWhereBuilder_ArgAfterBuild(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("estado", "Pendiente")
	wb.Build()

	if ph := wb.Arg(50); ph != "$2" {
		t.Errorf("Arg() = %q, want $2", ph)
	}
	if len(wb.Args()) != 2 {
		t.Errorf("expected 2 args, got %d", len(wb.Args()))
	}
}

// ============================================================================
// Identifier and Placeholder Tests
// ============================================================================

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"marcas", `"marcas"`},
		{"id_marca", `"id_marca"`},
		{`bad"name`, `"bad""name"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "$1, $2, $3" {
		t.Errorf("placeholders(3) = %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Errorf("placeholders(0) = %q", got)
	}
}

// ============================================================================
// Display Helpers
// ============================================================================

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"true", true, "Sí"},
		{"false", false, "No"},
		{"time", ts, "09/03/2024 14:05"},
		{"bytes", []byte("abc"), "abc"},
		{"int", int32(42), "42"},
		{"string", "Lápiz", "Lápiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lapiz", "%lapiz%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.in); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("  ") != nil {
		t.Error("blank string should become nil")
	}
	if nullIfEmpty("x") != "x" {
		t.Error("non-empty string should pass through")
	}
}

func TestAllFilter(t *testing.T) {
	for _, v := range []string{"", "Todos", "Todas"} {
		if !allFilter(v) {
			t.Errorf("allFilter(%q) = false, want true", v)
		}
	}
	if allFilter("Alta") {
		t.Error("allFilter(Alta) = true, want false")
	}
}

func TestOptionLabel(t *testing.T) {
	if got := (Option{ID: 3, Name: "Papelería"}).Label(); got != "3 - Papelería" {
		t.Errorf("Label() = %q", got)
	}
}
