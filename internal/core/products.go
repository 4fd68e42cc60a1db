package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Product is a row of the inventory list.
type Product struct {
	ID       int    `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
	Stock    int    `json:"stock"`
	Location string `json:"location"`
	Status   string `json:"status"`
	MinStock int    `json:"minStock"`
}

// ProductDetail holds the editable fields of one product.
type ProductDetail struct {
	ID         int    `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	BrandID    *int   `json:"brandId"`
	CategoryID *int   `json:"categoryId"`
	Stock      int    `json:"stock"`
	LocationID *int   `json:"locationId"`
	Status     string `json:"status"`
	MinStock   int    `json:"minStock"`
}

// ProductFilter narrows ListProducts. Zero values mean "any".
type ProductFilter struct {
	Search     string
	CategoryID int
	BrandID    int
	LocationID int
	Status     string
}

// ProductInput is the payload for SaveProduct. A nil Stock or MinStock
// means the field was not submitted.
type ProductInput struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	BrandID    *int   `json:"brandId"`
	CategoryID *int   `json:"categoryId"`
	LocationID *int   `json:"locationId"`
	Stock      *int   `json:"stock"`
	MinStock   *int   `json:"minStock"`
}

// Validate checks required fields and ranges.
func (in ProductInput) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Code) == "" {
		errs = append(errs, ValidationError{Field: "codigo", Message: "required field is empty"})
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, ValidationError{Field: "nombre", Message: "required field is empty"})
	}
	if in.Stock != nil && *in.Stock < 0 {
		errs = append(errs, ValidationError{Field: "stock", Value: fmt.Sprint(*in.Stock), Message: "invalid number: must not be negative"})
	}
	if in.MinStock != nil && *in.MinStock < 0 {
		errs = append(errs, ValidationError{Field: "stock_minimo", Value: fmt.Sprint(*in.MinStock), Message: "invalid number: must not be negative"})
	}
	return errs.errOrNil()
}

// ClassifyStock derives estado_stock from the on-hand quantity and the
// product minimum.
func ClassifyStock(stock, minimum int) string {
	switch {
	case stock <= 0:
		return StockOut
	case stock <= minimum:
		return StockLow
	default:
		return StockAvailable
	}
}

// stockStatusSQL is ClassifyStock expressed over inventario i / productos p.
const stockStatusSQL = `CASE
		WHEN i.stock <= 0 THEN '` + StockOut + `'
		WHEN i.stock <= p.stock_minimo THEN '` + StockLow + `'
		ELSE '` + StockAvailable + `'
	END`

const productListSelect = `
	SELECT p.id_producto, p.codigo, p.nombre,
		COALESCE(m.nombre, ''), COALESCE(c.nombre, ''),
		COALESCE(i.stock, 0), COALESCE(u.nombre, ''),
		COALESCE(i.estado_stock, '` + StockAvailable + `'), p.stock_minimo
	FROM productos p
	LEFT JOIN marcas m ON p.id_marca = m.id_marca
	LEFT JOIN categorias c ON p.id_categoria = c.id_categoria
	LEFT JOIN inventario i ON p.id_producto = i.id_producto
	LEFT JOIN ubicaciones u ON i.id_ubicacion = u.id_ubicacion`

func buildProductQuery(f ProductFilter) (string, []interface{}) {
	wb := NewWhereBuilder()
	wb.AddRaw("p.activo = TRUE")
	if f.Search != "" {
		pat := likePattern(f.Search)
		wb.AddExpr("(p.codigo ILIKE ? OR p.nombre ILIKE ?)", pat, pat)
	}
	wb.Add("p.id_categoria", f.CategoryID)
	wb.Add("p.id_marca", f.BrandID)
	wb.Add("i.id_ubicacion", f.LocationID)
	if !allFilter(f.Status) {
		wb.Add("i.estado_stock", f.Status)
	}
	where, args := wb.Build()
	return productListSelect + where + " ORDER BY p.nombre ASC", args
}

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Brand, &p.Category,
		&p.Stock, &p.Location, &p.Status, &p.MinStock)
	return p, err
}

// ListProducts returns active products with their inventory data.
func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	query, args := buildProductQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// LowStock returns active products that are low or out of stock.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, productListSelect+`
		WHERE p.activo = TRUE AND i.id_inventario IS NOT NULL AND (i.stock <= 0 OR i.stock <= p.stock_minimo)
		ORDER BY i.stock ASC, p.nombre ASC`)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	for i := range products {
		products[i].Status = ClassifyStock(products[i].Stock, products[i].MinStock)
	}
	return products, nil
}

// RefreshStockStatus recomputes estado_stock for active products and
// returns how many rows changed.
//
// Rows whose stored status already matches are not rewritten, so the
// count reflects real transitions. Inactive products are left alone.
func (s *Service) RefreshStockStatus(ctx context.Context) (int64, error) {
	n, err := s.exec(ctx, s.pool, `
		UPDATE inventario i SET estado_stock = `+stockStatusSQL+`
		FROM productos p
		WHERE p.id_producto = i.id_producto
		  AND p.activo = TRUE
		  AND i.estado_stock IS DISTINCT FROM `+stockStatusSQL)
	if err != nil {
		return 0, fmt.Errorf("refresh stock status: %w", err)
	}
	return n, nil
}

// GetProduct returns the editable fields of a product.
func (s *Service) GetProduct(ctx context.Context, id int) (*ProductDetail, error) {
	var d ProductDetail
	err := s.pool.QueryRow(ctx, `
		SELECT p.id_producto, p.codigo, p.nombre, p.id_marca, p.id_categoria,
			COALESCE(i.stock, 0), i.id_ubicacion, COALESCE(i.estado_stock, '`+StockAvailable+`'), p.stock_minimo
		FROM productos p
		LEFT JOIN inventario i ON p.id_producto = i.id_producto
		WHERE p.id_producto = $1`, id).
		Scan(&d.ID, &d.Code, &d.Name, &d.BrandID, &d.CategoryID,
			&d.Stock, &d.LocationID, &d.Status, &d.MinStock)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, notFound(err))
	}
	return &d, nil
}

// SaveProduct creates a product (id == 0) or updates an existing one,
// keeping its inventory row in step, and returns the product id.
//
// Stock and MinStock are optional. On create an absent stock is zero and
// an absent minimum is the configured default; on update an absent field
// keeps the stored value, so a partial edit never resets inventory. The
// stock status is recomputed from the stored values before the
// transaction commits.
func (s *Service) SaveProduct(ctx context.Context, id int, in ProductInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	created := id == 0
	minStock := in.MinStock
	if created && minStock == nil {
		minStock = &s.minStock
	}
	code, name := strings.TrimSpace(in.Code), strings.TrimSpace(in.Name)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if created {
			err := tx.QueryRow(ctx, `
				INSERT INTO productos (codigo, nombre, id_marca, id_categoria, stock_minimo)
				VALUES ($1, $2, $3, $4, $5) RETURNING id_producto`,
				code, name, in.BrandID, in.CategoryID, *minStock).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
		} else {
			n, err := s.exec(ctx, tx, `
				UPDATE productos
				SET codigo = $1, nombre = $2, id_marca = $3, id_categoria = $4,
					stock_minimo = COALESCE($5, stock_minimo)
				WHERE id_producto = $6`,
				code, name, in.BrandID, in.CategoryID, minStock, id)
			if err := requireAffected(n, err, fmt.Sprintf("update product %d", id)); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO inventario (id_producto, id_ubicacion, stock, estado_stock)
			VALUES ($1, $2, COALESCE($3, 0), '`+StockAvailable+`')
			ON CONFLICT (id_producto) DO UPDATE
			SET id_ubicacion = EXCLUDED.id_ubicacion, stock = COALESCE($3, inventario.stock)`,
			id, in.LocationID, in.Stock)
		if err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
		return refreshOne(ctx, tx, id)
	})
	if err != nil {
		return 0, err
	}

	action := ActionUpdate
	if created {
		action = ActionCreate
	}
	details := map[string]interface{}{"codigo": code, "nombre": name}
	if in.Stock != nil {
		details["stock"] = *in.Stock
	}
	if minStock != nil {
		details["stock_minimo"] = *minStock
	}
	s.LogAudit(ctx, AuditLogParams{Action: action, TableKey: "productos", RowKey: id, Details: details})
	return id, nil
}

// DeleteProduct marks a product inactive.
func (s *Service) DeleteProduct(ctx context.Context, id int) error {
	n, err := s.exec(ctx, s.pool, `UPDATE productos SET activo = FALSE WHERE id_producto = $1`, id)
	if err := requireAffected(n, err, fmt.Sprintf("delete product %d", id)); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDeactivate, TableKey: "productos", RowKey: id})
	return nil
}

// AddStock increases on-hand stock, refreshes the status and records an
// Entrada movement in the same transaction.
func (s *Service) AddStock(ctx context.Context, productID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		n, err := s.exec(ctx, tx, `
			UPDATE inventario i SET stock = i.stock + $1
			FROM productos p
			WHERE p.id_producto = i.id_producto AND i.id_producto = $2`, quantity, productID)
		if err := requireAffected(n, err, fmt.Sprintf("inventory for product %d", productID)); err != nil {
			return err
		}
		if err := refreshOne(ctx, tx, productID); err != nil {
			return err
		}
		return s.insertMovement(ctx, tx, productID, MovementIn, quantity, actorID(ctx), "")
	})
	if err != nil {
		return fmt.Errorf("add stock: %w", err)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionStockAdjust,
		TableKey: "inventario",
		RowKey:   productID,
		Details:  map[string]interface{}{"added": quantity},
	})
	return nil
}

// refreshOne recomputes estado_stock for a single product.
func refreshOne(ctx context.Context, db DBTX, productID int) error {
	_, err := db.Exec(ctx, `
		UPDATE inventario i SET estado_stock = `+stockStatusSQL+`
		FROM productos p
		WHERE p.id_producto = i.id_producto AND i.id_producto = $1`, productID)
	if err != nil {
		return fmt.Errorf("refresh stock status for %d: %w", productID, err)
	}
	return nil
}

// lookupTables are the tables whose values can be picked (and added
// inline) from the product form.
var lookupTables = []string{"ubicaciones", "categorias", "marcas"}

func productLookup(table string) (TableDefinition, error) {
	if !contains(lookupTables, table) {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return lookupTable(table)
}

// ComboOptions returns active (id, nombre) pairs of a product lookup table.
func (s *Service) ComboOptions(ctx context.Context, table string) ([]Option, error) {
	if _, err := productLookup(table); err != nil {
		return nil, err
	}
	return s.RelatedOptions(ctx, table)
}

// AddLookupValue inserts a new name into a product lookup table and
// returns it as an option.
func (s *Service) AddLookupValue(ctx context.Context, table, name string) (Option, error) {
	def, err := productLookup(table)
	if err != nil {
		return Option{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Option{}, ValidationError{Field: "nombre", Message: "required field is empty"}
	}

	var o Option
	query := fmt.Sprintf("INSERT INTO %s (nombre) VALUES ($1) RETURNING %s, nombre",
		quoteIdentifier(def.Key), quoteIdentifier(def.IDColumn))
	if err := s.pool.QueryRow(ctx, query, name).Scan(&o.ID, &o.Name); err != nil {
		return Option{}, fmt.Errorf("add %s value: %w", table, err)
	}

	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: table, RowKey: o.ID,
		Details: map[string]interface{}{"nombre": o.Name}})
	return o, nil
}

// IDByName returns the id of an active lookup row with exactly this name.
func (s *Service) IDByName(ctx context.Context, table, name string) (int, error) {
	def, err := productLookup(table)
	if err != nil {
		return 0, err
	}
	var id int
	query := fmt.Sprintf("SELECT %s FROM %s WHERE nombre = $1 AND activo = TRUE",
		quoteIdentifier(def.IDColumn), quoteIdentifier(def.Key))
	if err := s.pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s %q: %w", table, name, notFound(err))
	}
	return id, nil
}

func actorID(ctx context.Context) *int {
	if a, ok := ActorFromContext(ctx); ok && a.ID > 0 {
		id := a.ID
		return &id
	}
	return nil
}
