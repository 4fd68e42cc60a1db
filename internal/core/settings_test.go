package core

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

// ============================================================================
// Registry Tests
// ============================================================================

func TestRegistry_BuiltinTables(t *testing.T) {
	for _, key := range []string{"categorias", "departamentos", "ubicaciones", "marcas",
		"solicitantes", "proveedores", "usuarios", "productos"} {
		def, ok := Get(key)
		if !ok {
			t.Errorf("table %q not registered", key)
			continue
		}
		if def.IDColumn == "" {
			t.Errorf("table %q has no id column", key)
		}
		if _, ok := def.Field(activeColumn); !ok {
			t.Errorf("table %q should edit the activo flag", key)
		}
	}
	if TableCount() != 8 {
		t.Errorf("TableCount() = %d, want 8", TableCount())
	}
}

func TestTableDefinition_Headers(t *testing.T) {
	solicitantes, _ := Get("solicitantes")
	marcas, _ := Get("marcas")

	tests := []struct {
		name    string
		def     TableDefinition
		columns []string
		want    []string
	}{
		{"list all", solicitantes,
			[]string{"id_solicitante", "cedula", "nombre", "departamento", "activo"},
			[]string{"ID", "Cédula", "Nombre", "Departamento", "Activo"}},
		{"active projection drops activo", solicitantes,
			[]string{"id_solicitante", "cedula", "nombre", "departamento"},
			[]string{"ID", "Cédula", "Nombre", "Departamento"}},
		{"wider result falls back to field labels", marcas,
			[]string{"id_marca", "nombre", "activo", "creado"},
			[]string{"ID", "Nombre", "Activo", "creado"}},
		{"no columns", marcas, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.def.Headers(tt.columns)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Headers(%v) = %v, want %v", tt.columns, got, tt.want)
			}
		})
	}
}

func TestRegistry_AllSortedByLabel(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Label > all[i].Label {
			t.Errorf("All() not sorted: %q before %q", all[i-1].Label, all[i].Label)
		}
	}
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(nameOnly("marcas", "Marcas", "id_marca"))
}

func TestLookupTable_Unknown(t *testing.T) {
	_, err := lookupTable("bodegas")
	if !errors.Is(err, ErrUnknownTable) {
		t.Errorf("expected ErrUnknownTable, got %v", err)
	}
}

func TestUsuariosCreateDisabled(t *testing.T) {
	def, _ := Get("usuarios")
	if !def.CreateDisabled {
		t.Error("usuarios must not be creatable from settings")
	}
	for _, f := range def.Fields {
		if f.Column == "password" {
			t.Error("usuarios must not expose the password column")
		}
	}
}

// ============================================================================
// Relation Resolution Tests
// ============================================================================

func TestResolveIDColumn(t *testing.T) {
	tests := []struct {
		table string
		want  string
	}{
		{"marcas", "id_marca"},
		{"ubicaciones", "id_ubicacion"},
		{"usuarios", "id"},
		{"categoria", "id_categoria"},
		{"proveedor", "id_proveedor"},
		{"bodegas", "id_bodega"},
		{"stock", "id"},
	}
	for _, tt := range tests {
		if got := resolveIDColumn(tt.table); got != tt.want {
			t.Errorf("resolveIDColumn(%q) = %q, want %q", tt.table, got, tt.want)
		}
	}
}

func TestRelatedTable(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"marcas", "marcas", false},
		{"id_marca", "marcas", false},
		{"departamento", "departamentos", false},
		{"ubicacion", "ubicaciones", false},
		{"id_departamento", "departamentos", false},
		{"bodega", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := relatedTable(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTable) {
					t.Errorf("expected ErrUnknownTable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if def.Key != tt.want {
				t.Errorf("relatedTable(%q) = %q, want %q", tt.name, def.Key, tt.want)
			}
		})
	}
}

// ============================================================================
// Form Conversion Tests
// ============================================================================

func TestFieldSpec_Convert(t *testing.T) {
	tests := []struct {
		name    string
		field   FieldSpec
		raw     string
		want    interface{}
		wantErr bool
	}{
		{"text trimmed", FieldSpec{Kind: FieldText}, "  Papel  ", "Papel", false},
		{"required empty", FieldSpec{Kind: FieldText}, "  ", nil, true},
		{"optional empty", FieldSpec{Kind: FieldText, Optional: true}, "", nil, false},
		{"integer", FieldSpec{Kind: FieldInteger}, "12", 12, false},
		{"integer negative", FieldSpec{Kind: FieldInteger}, "-1", nil, true},
		{"integer junk", FieldSpec{Kind: FieldInteger}, "doce", nil, true},
		{"relation label", FieldSpec{Kind: FieldRelation}, "7 - Ferretería", 7, false},
		{"relation bare id", FieldSpec{Kind: FieldRelation}, "7", 7, false},
		{"relation invalid", FieldSpec{Kind: FieldRelation}, "Ferretería", nil, true},
		{"choice ok", FieldSpec{Kind: FieldChoice, Options: []string{"admin", "usuario"}}, "admin", "admin", false},
		{"choice bad", FieldSpec{Kind: FieldChoice, Options: []string{"admin", "usuario"}}, "root", nil, true},
		{"checkbox on", FieldSpec{Kind: FieldCheckbox}, "on", true, false},
		{"checkbox empty", FieldSpec{Kind: FieldCheckbox}, "", false, false},
		{"checkbox si", FieldSpec{Kind: FieldCheckbox}, "Sí", true, false},
		{"checkbox junk", FieldSpec{Kind: FieldCheckbox}, "maybe", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Convert(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Convert(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Convert(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBuildValues(t *testing.T) {
	def, _ := Get("solicitantes")

	cols, vals, err := def.BuildValues(map[string]string{
		"cedula":          "V-123",
		"nombre":          "Ana",
		"id_departamento": "2 - Compras",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCols := []string{"cedula", "nombre", "id_departamento"}
	if len(cols) != len(wantCols) {
		t.Fatalf("cols = %v, want %v (absent checkbox skipped)", cols, wantCols)
	}
	for i := range wantCols {
		if cols[i] != wantCols[i] {
			t.Errorf("cols[%d] = %q, want %q", i, cols[i], wantCols[i])
		}
	}
	if vals[2] != 2 {
		t.Errorf("relation value = %v, want 2", vals[2])
	}
}

func TestBuildValues_CollectsEveryError(t *testing.T) {
	def, _ := Get("productos")

	_, _, err := def.BuildValues(map[string]string{
		"codigo":       "",
		"nombre":       "",
		"id_marca":     "x",
		"id_categoria": "1",
		"stock_minimo": "-3",
	})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 4 {
		t.Errorf("expected 4 field errors, got %d: %v", len(verrs), verrs)
	}
}

func TestBuildValues_OptionalSupplierFields(t *testing.T) {
	def, _ := Get("proveedores")

	cols, vals, err := def.BuildValues(map[string]string{"nombre": "Acme", "activo": "on"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols) != 6 {
		t.Fatalf("expected every field, got %v", cols)
	}
	for i, c := range cols {
		switch c {
		case "contacto", "telefono", "email", "direccion":
			if vals[i] != nil {
				t.Errorf("%s = %v, want nil", c, vals[i])
			}
		}
	}
}

func TestParseOptionID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"7", 7, true},
		{"7 - Ferretería", 7, true},
		{" 12 - A - B ", 12, true},
		{"0", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseOptionID(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseOptionID(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

// ============================================================================
// Lifecycle Tests (database paths)
// ============================================================================

var deleteMarca = regexp.QuoteMeta(`DELETE FROM "marcas" WHERE "id_marca" = $1`)

func TestDelete_Removes(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec(deleteMarca).WithArgs(3).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	expectAudit(mock)

	got, err := s.Delete(context.Background(), "marcas", 3)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got != OutcomeDeleted {
		t.Errorf("outcome = %q, want %q", got, OutcomeDeleted)
	}
}

func TestDelete_MissingRow(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec(deleteMarca).WithArgs(3).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if _, err := s.Delete(context.Background(), "marcas", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_ReferencedRowIsDeactivated(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec(deleteMarca).WithArgs(3).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, Message: "still referenced"})
	expectHasColumn(mock, "marcas", activeColumn, true)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "marcas" SET activo = $1 WHERE "id_marca" = $2`)).
		WithArgs(false, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAudit(mock)

	got, err := s.Delete(context.Background(), "marcas", 3)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got != OutcomeDeactivated {
		t.Errorf("outcome = %q, want %q", got, OutcomeDeactivated)
	}
}

func TestDelete_ReferencedRowWithoutActiveFlag(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec(deleteMarca).WithArgs(3).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})
	expectHasColumn(mock, "marcas", activeColumn, false)

	got, err := s.Delete(context.Background(), "marcas", 3)
	if !errors.Is(err, ErrInUse) {
		t.Fatalf("err = %v, want ErrInUse", err)
	}
	if !errors.Is(err, ErrSoftDeleteUnsupported) {
		t.Errorf("err = %v, want the soft delete cause kept", err)
	}
	if got != "" {
		t.Errorf("outcome = %q, want none", got)
	}
}

func TestDelete_OtherErrorIsNotSoftened(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec(deleteMarca).WithArgs(3).
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement"})

	_, err := s.Delete(context.Background(), "marcas", 3)
	if err == nil || errors.Is(err, ErrInUse) {
		t.Fatalf("err = %v, want a plain failure", err)
	}
}

func TestActivate_WithoutActiveColumn(t *testing.T) {
	s, mock := newMockService(t)
	expectHasColumn(mock, "departamentos", activeColumn, false)

	ok, err := s.Activate(context.Background(), "departamentos", 2)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if ok {
		t.Error("Activate reported success on a table without activo")
	}
}

func TestActivate(t *testing.T) {
	s, mock := newMockService(t)
	expectHasColumn(mock, "departamentos", activeColumn, true)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "departamentos" SET activo = $1 WHERE "id_departamento" = $2`)).
		WithArgs(true, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAudit(mock)

	ok, err := s.Activate(context.Background(), "departamentos", 2)
	if err != nil || !ok {
		t.Fatalf("Activate = %v, %v; want true", ok, err)
	}
}

func TestSoftDelete_WithoutActiveColumn(t *testing.T) {
	s, mock := newMockService(t)
	expectHasColumn(mock, "departamentos", activeColumn, false)

	err := s.SoftDelete(context.Background(), "departamentos", 2)
	if !errors.Is(err, ErrSoftDeleteUnsupported) {
		t.Fatalf("err = %v, want ErrSoftDeleteUnsupported", err)
	}
}

func TestSoftDelete_MissingRow(t *testing.T) {
	s, mock := newMockService(t)
	expectHasColumn(mock, "departamentos", activeColumn, true)
	mock.ExpectExec(`UPDATE "departamentos" SET activo`).
		WithArgs(false, 9).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := s.SoftDelete(context.Background(), "departamentos", 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListAll_UsesDisplayColumns(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectQuery("FROM solicitantes s").
		WillReturnRows(mock.NewRows([]string{"id_solicitante", "cedula", "nombre", "departamento", "activo"}).
			AddRow(int32(4), "1-234", "Marta", "Compras", true))

	data, err := s.ListAll(context.Background(), "solicitantes")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if got := strings.Join(data.Columns, ","); got != "ID,Cédula,Nombre,Departamento,Activo" {
		t.Errorf("Columns = %s", got)
	}
	if got := strings.Join(data.Fields, ","); got != "id_solicitante,cedula,nombre,departamento,activo" {
		t.Errorf("Fields = %s", got)
	}
	if len(data.Rows) != 1 || data.Rows[0].ID != 4 || data.Rows[0].Active == nil || !*data.Rows[0].Active {
		t.Errorf("Rows = %+v", data.Rows)
	}
}
