package core

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		stock, min int
		want       string
	}{
		{0, 5, StockOut},
		{-2, 5, StockOut},
		{5, 5, StockLow},
		{1, 5, StockLow},
		{6, 5, StockAvailable},
		{1, 0, StockAvailable},
		{0, 0, StockOut},
	}
	for _, tt := range tests {
		if got := ClassifyStock(tt.stock, tt.min); got != tt.want {
			t.Errorf("ClassifyStock(%d, %d) = %q, want %q", tt.stock, tt.min, got, tt.want)
		}
	}
}

func TestProductInput_Validate(t *testing.T) {
	neg, three := -1, 3
	tests := []struct {
		name       string
		in         ProductInput
		wantFields []string
	}{
		{"valid", ProductInput{Code: "P-1", Name: "Lápiz", Stock: &three}, nil},
		{"stock omitted", ProductInput{Code: "P-1", Name: "Lápiz"}, nil},
		{"missing code and name", ProductInput{Stock: &three}, []string{"codigo", "nombre"}},
		{"negative stock", ProductInput{Code: "P", Name: "N", Stock: &neg}, []string{"stock"}},
		{"negative minimum", ProductInput{Code: "P", Name: "N", MinStock: &neg}, []string{"stock_minimo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if len(verrs) != len(tt.wantFields) {
				t.Fatalf("got %d errors, want %d: %v", len(verrs), len(tt.wantFields), verrs)
			}
			for i, f := range tt.wantFields {
				if verrs[i].Field != f {
					t.Errorf("error %d field = %q, want %q", i, verrs[i].Field, f)
				}
			}
		})
	}
}

func TestBuildProductQuery(t *testing.T) {
	t.Run("no filters", func(t *testing.T) {
		query, args := buildProductQuery(ProductFilter{Status: "Todos"})
		if !strings.Contains(query, "WHERE p.activo = TRUE ORDER BY p.nombre") {
			t.Errorf("unexpected query: %s", query)
		}
		if len(args) != 0 {
			t.Errorf("expected no args, got %v", args)
		}
	})

	t.Run("all filters", func(t *testing.T) {
		query, args := buildProductQuery(ProductFilter{
			Search: "lap", CategoryID: 2, BrandID: 3, LocationID: 4, Status: StockLow,
		})
		for _, frag := range []string{
			"(p.codigo ILIKE $1 OR p.nombre ILIKE $2)",
			"p.id_categoria = $3",
			"p.id_marca = $4",
			"i.id_ubicacion = $5",
			"i.estado_stock = $6",
		} {
			if !strings.Contains(query, frag) {
				t.Errorf("query missing %q", frag)
			}
		}
		if len(args) != 6 || args[0] != "%lap%" || args[5] != StockLow {
			t.Errorf("unexpected args %v", args)
		}
	})
}

func TestProductLookup(t *testing.T) {
	for _, table := range []string{"ubicaciones", "categorias", "marcas"} {
		if _, err := productLookup(table); err != nil {
			t.Errorf("productLookup(%q) error = %v", table, err)
		}
	}
	if _, err := productLookup("usuarios"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("usuarios should not be a product lookup, got %v", err)
	}
}

func TestStockStatusSQLMatchesClassify(t *testing.T) {
	for _, status := range []string{StockOut, StockLow, StockAvailable} {
		if !strings.Contains(stockStatusSQL, "'"+status+"'") {
			t.Errorf("stockStatusSQL does not produce %q", status)
		}
	}
}

func TestRefreshStockStatus(t *testing.T) {
	s, mock := newMockService(t)
	// Only active products whose stored status differs are touched.
	mock.ExpectExec(`(?s)UPDATE inventario i SET estado_stock = CASE.*` +
		regexp.QuoteMeta(`AND p.activo = TRUE`) + `\s+` +
		regexp.QuoteMeta(`AND i.estado_stock IS DISTINCT FROM CASE`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.RefreshStockStatus(context.Background())
	if err != nil {
		t.Fatalf("RefreshStockStatus: %v", err)
	}
	if n != 3 {
		t.Errorf("changed = %d, want 3", n)
	}
}

func TestRefreshStockStatus_Error(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec("UPDATE inventario i SET estado_stock").WillReturnError(errors.New("deadlock"))

	if _, err := s.RefreshStockStatus(context.Background()); err == nil || !strings.Contains(err.Error(), "refresh stock status") {
		t.Fatalf("err = %v", err)
	}
}

var upsertInventory = regexp.QuoteMeta(`stock = COALESCE($3, inventario.stock)`)

func TestSaveProduct_UpdateKeepsOmittedStock(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`stock_minimo = COALESCE($5, stock_minimo)`)).
		WithArgs("P-1", "Lápiz", pgxmock.AnyArg(), pgxmock.AnyArg(), intArg{}, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(upsertInventory).
		WithArgs(5, pgxmock.AnyArg(), intArg{}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE inventario i SET estado_stock").WithArgs(5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	expectAudit(mock)

	id, err := s.SaveProduct(context.Background(), 5, ProductInput{Code: " P-1 ", Name: "Lápiz"})
	if err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	if id != 5 {
		t.Errorf("id = %d, want 5", id)
	}
}

func TestSaveProduct_UpdateWritesSubmittedStock(t *testing.T) {
	stock, minimum := 12, 4
	s, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE productos").
		WithArgs("P-1", "Lápiz", pgxmock.AnyArg(), pgxmock.AnyArg(), intArg{want: &minimum}, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(upsertInventory).
		WithArgs(5, pgxmock.AnyArg(), intArg{want: &stock}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE inventario i SET estado_stock").WithArgs(5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	expectAudit(mock)

	if _, err := s.SaveProduct(context.Background(), 5, ProductInput{Code: "P-1", Name: "Lápiz",
		Stock: &stock, MinStock: &minimum}); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
}

func TestSaveProduct_CreateUsesDefaults(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO productos").
		WithArgs("P-2", "Clip", pgxmock.AnyArg(), pgxmock.AnyArg(), 5).
		WillReturnRows(mock.NewRows([]string{"id_producto"}).AddRow(9))
	mock.ExpectExec(upsertInventory).
		WithArgs(9, pgxmock.AnyArg(), intArg{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE inventario i SET estado_stock").WithArgs(9).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	expectAudit(mock)

	id, err := s.SaveProduct(context.Background(), 0, ProductInput{Code: "P-2", Name: "Clip"})
	if err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	if id != 9 {
		t.Errorf("id = %d, want 9", id)
	}
}

func TestSaveProduct_MissingProductRollsBack(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE productos").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	if _, err := s.SaveProduct(context.Background(), 77, ProductInput{Code: "P", Name: "N"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
