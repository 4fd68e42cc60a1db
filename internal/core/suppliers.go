package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// SupplierRow is a row of the supplier list.
type SupplierRow struct {
	Number     int    `json:"number"`
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Contact    string `json:"contact"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Rating     string `json:"rating"`
	Pricing    string `json:"pricing"`
	Categories string `json:"categories"`
}

// Supplier holds every editable field of a supplier.
type Supplier struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Social   string `json:"social"`
	Rating   *int   `json:"rating"`
	Pricing  string `json:"pricing"`
	Comments string `json:"comments"`
}

// Validate checks the name and rating range.
func (sp Supplier) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(sp.Name) == "" {
		errs = append(errs, ValidationError{Field: "nombre", Message: "required field is empty"})
	}
	if sp.Rating != nil && (*sp.Rating < 1 || *sp.Rating > 5) {
		errs = append(errs, ValidationError{Field: "valoracion", Value: strconv.Itoa(*sp.Rating), Message: "must be between 1 and 5"})
	}
	return errs.errOrNil()
}

// SupplierFilter narrows ListSuppliers. Rating accepts "3" or "3 Estrellas".
type SupplierFilter struct {
	Category string
	Rating   string
	Pricing  string
}

// SupplierProduct is a product linked to a supplier.
type SupplierProduct struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// noCategories is shown for suppliers without any category.
const noCategories = "Ninguna"

// RatingText renders a 1-5 star rating.
func RatingText(rating *int) string {
	switch {
	case rating == nil:
		return "Sin valoración"
	case *rating == 1:
		return "1 Estrella"
	default:
		return strconv.Itoa(*rating) + " Estrellas"
	}
}

// parseRating reads the leading number of "4 Estrellas".
func parseRating(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty rating")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > 5 {
		return 0, ValidationError{Field: "valoracion", Value: s, Message: "must be between 1 and 5"}
	}
	return n, nil
}

// supplierCategoryIDs selects every category id a supplier p is linked to,
// directly or through its products.
const supplierCategoryIDs = `
	SELECT pc.id_categoria FROM proveedor_categoria pc WHERE pc.id_proveedor = p.id_proveedor
	UNION
	SELECT pr.id_categoria FROM proveedor_producto pp
	JOIN productos pr ON pp.id_producto = pr.id_producto
	WHERE pp.id_proveedor = p.id_proveedor`

func buildSupplierQuery(f SupplierFilter) (string, []interface{}, error) {
	wb := NewWhereBuilder()
	if !allFilter(f.Category) {
		wb.AddExpr(`EXISTS (
			SELECT 1 FROM (`+supplierCategoryIDs+`) ids
			JOIN categorias c ON c.id_categoria = ids.id_categoria
			WHERE c.nombre = ?)`, f.Category)
	}
	if !allFilter(f.Rating) {
		n, err := parseRating(f.Rating)
		if err != nil {
			return "", nil, err
		}
		wb.Add("p.valoracion", n)
	}
	if !allFilter(f.Pricing) {
		wb.Add("p.manejo_precios", f.Pricing)
	}
	where, args := wb.Build()
	return `
		SELECT ROW_NUMBER() OVER (ORDER BY p.nombre), p.id_proveedor, p.nombre,
			COALESCE(p.contacto, '` + notAvailable + `'),
			COALESCE(p.telefono, '` + notAvailable + `'),
			COALESCE(p.email, '` + notAvailable + `'),
			p.valoracion,
			COALESCE(p.manejo_precios, '` + notAvailable + `'),
			COALESCE((
				SELECT STRING_AGG(DISTINCT c.nombre, ', ')
				FROM (` + supplierCategoryIDs + `) ids
				JOIN categorias c ON c.id_categoria = ids.id_categoria
			), '` + notAvailable + `')
		FROM proveedores p` + where + `
		ORDER BY p.nombre`, args, nil
}

// ListSuppliers returns suppliers with their aggregated categories.
func (s *Service) ListSuppliers(ctx context.Context, f SupplierFilter) ([]SupplierRow, error) {
	query, args, err := buildSupplierQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierRow, error) {
		var r SupplierRow
		var rating *int
		err := row.Scan(&r.Number, &r.ID, &r.Name, &r.Contact, &r.Phone, &r.Email,
			&rating, &r.Pricing, &r.Categories)
		r.Rating = RatingText(rating)
		return r, err
	})
}

const supplierSelect = `
	SELECT id_proveedor, nombre, COALESCE(contacto, ''), COALESCE(telefono, ''), COALESCE(email, ''),
		COALESCE(direccion, ''), COALESCE(redes_sociales, ''), valoracion,
		COALESCE(manejo_precios, ''), COALESCE(comentarios, '')
	FROM proveedores`

func (s *Service) getSupplier(ctx context.Context, where string, arg interface{}) (*Supplier, error) {
	var sp Supplier
	err := s.pool.QueryRow(ctx, supplierSelect+" WHERE "+where+" = $1", arg).Scan(
		&sp.ID, &sp.Name, &sp.Contact, &sp.Phone, &sp.Email,
		&sp.Address, &sp.Social, &sp.Rating, &sp.Pricing, &sp.Comments)
	if err != nil {
		return nil, fmt.Errorf("supplier %v: %w", arg, notFound(err))
	}
	return &sp, nil
}

// SupplierByName returns a supplier by exact name.
func (s *Service) SupplierByName(ctx context.Context, name string) (*Supplier, error) {
	return s.getSupplier(ctx, "nombre", name)
}

// SupplierByID returns a supplier by id.
func (s *Service) SupplierByID(ctx context.Context, id int) (*Supplier, error) {
	return s.getSupplier(ctx, "id_proveedor", id)
}

func supplierArgs(sp Supplier) []interface{} {
	return []interface{}{
		strings.TrimSpace(sp.Name), nullIfEmpty(sp.Contact), nullIfEmpty(sp.Phone), nullIfEmpty(sp.Email),
		nullIfEmpty(sp.Address), nullIfEmpty(sp.Social), sp.Rating, nullIfEmpty(sp.Pricing), nullIfEmpty(sp.Comments),
	}
}

// CreateSupplier inserts a supplier and returns its id.
func (s *Service) CreateSupplier(ctx context.Context, sp Supplier) (int, error) {
	if err := sp.Validate(); err != nil {
		return 0, err
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO proveedores (nombre, contacto, telefono, email, direccion,
			redes_sociales, valoracion, manejo_precios, comentarios)
		VALUES (`+placeholders(9)+`) RETURNING id_proveedor`, supplierArgs(sp)...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create supplier: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "proveedores", RowKey: id,
		Details: map[string]interface{}{"nombre": sp.Name}})
	return id, nil
}

// UpdateSupplier replaces every field of a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, id int, sp Supplier) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	args := append(supplierArgs(sp), id)
	n, err := s.exec(ctx, s.pool, `
		UPDATE proveedores SET
			nombre = $1, contacto = $2, telefono = $3, email = $4, direccion = $5,
			redes_sociales = $6, valoracion = $7, manejo_precios = $8, comentarios = $9
		WHERE id_proveedor = $10`, args...)
	if err := requireAffected(n, err, fmt.Sprintf("supplier %d", id)); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionUpdate, TableKey: "proveedores", RowKey: id,
		Details: map[string]interface{}{"nombre": sp.Name}})
	return nil
}

// DeleteSupplier removes a supplier through the settings lifecycle: a
// supplier still referenced elsewhere is deactivated instead.
func (s *Service) DeleteSupplier(ctx context.Context, id int) (DeleteOutcome, error) {
	return s.Delete(ctx, "proveedores", id)
}

// SupplierCategories returns the category names of a supplier, or
// ["Ninguna"] when it has none.
func (s *Service) SupplierCategories(ctx context.Context, id int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT c.nombre
		FROM (
			SELECT id_categoria FROM proveedor_categoria WHERE id_proveedor = $1
			UNION
			SELECT p.id_categoria FROM proveedor_producto pp
			JOIN productos p ON pp.id_producto = p.id_producto
			WHERE pp.id_proveedor = $1
		) ids
		JOIN categorias c ON ids.id_categoria = c.id_categoria
		ORDER BY c.nombre`, id)
	if err != nil {
		return nil, fmt.Errorf("supplier categories: %w", err)
	}
	names, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("supplier categories: %w", err)
	}
	if len(names) == 0 {
		return []string{noCategories}, nil
	}
	return names, nil
}

func collectSupplierProducts(rows pgx.Rows) ([]SupplierProduct, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierProduct, error) {
		var p SupplierProduct
		err := row.Scan(&p.ID, &p.Name, &p.Category)
		return p, err
	})
}

// SupplierProducts returns the products linked to a supplier.
func (s *Service) SupplierProducts(ctx context.Context, id int) ([]SupplierProduct, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id_producto, p.nombre, COALESCE(c.nombre, '`+noCategory+`')
		FROM proveedor_producto pp
		JOIN productos p ON pp.id_producto = p.id_producto
		LEFT JOIN categorias c ON p.id_categoria = c.id_categoria
		WHERE pp.id_proveedor = $1
		ORDER BY p.nombre`, id)
	if err != nil {
		return nil, fmt.Errorf("supplier products: %w", err)
	}
	return collectSupplierProducts(rows)
}

// AvailableProducts returns active products not yet linked to a supplier.
func (s *Service) AvailableProducts(ctx context.Context, id int) ([]SupplierProduct, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id_producto, p.nombre, COALESCE(c.nombre, '`+noCategory+`')
		FROM productos p
		LEFT JOIN categorias c ON p.id_categoria = c.id_categoria
		WHERE p.activo = TRUE
		  AND NOT EXISTS (
			SELECT 1 FROM proveedor_producto pp
			WHERE pp.id_proveedor = $1 AND pp.id_producto = p.id_producto)
		ORDER BY p.nombre`, id)
	if err != nil {
		return nil, fmt.Errorf("available products: %w", err)
	}
	return collectSupplierProducts(rows)
}

// AddSupplierProduct links a product to a supplier. Linking twice is a no-op.
func (s *Service) AddSupplierProduct(ctx context.Context, supplierID, productID int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO proveedor_producto (id_proveedor, id_producto) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, supplierID, productID)
	if err != nil {
		return fmt.Errorf("add supplier product: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "proveedor_producto",
		RowKey: fmt.Sprintf("%d/%d", supplierID, productID)})
	return nil
}

// RemoveSupplierProduct unlinks a product from a supplier.
func (s *Service) RemoveSupplierProduct(ctx context.Context, supplierID, productID int) error {
	n, err := s.exec(ctx, s.pool, `
		DELETE FROM proveedor_producto WHERE id_proveedor = $1 AND id_producto = $2`, supplierID, productID)
	if err := requireAffected(n, err, "supplier product link"); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, TableKey: "proveedor_producto",
		RowKey: fmt.Sprintf("%d/%d", supplierID, productID)})
	return nil
}

// SetCategory replaces the primary category of a supplier. An empty name,
// "N/A" or "Todas" clears it; an unknown name leaves it untouched.
func (s *Service) SetCategory(ctx context.Context, supplierID int, category string) error {
	category = strings.TrimSpace(category)
	reset := allFilter(category) || category == notAvailable

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var categoryID int
		if !reset {
			err := tx.QueryRow(ctx, `SELECT id_categoria FROM categorias WHERE nombre = $1`, category).Scan(&categoryID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil
				}
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM proveedor_categoria WHERE id_proveedor = $1`, supplierID); err != nil {
			return err
		}
		if reset {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO proveedor_categoria (id_proveedor, id_categoria) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, supplierID, categoryID)
		return err
	})
	if err != nil {
		return fmt.Errorf("set supplier category: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionUpdate, TableKey: "proveedor_categoria", RowKey: supplierID,
		Details: map[string]interface{}{"categoria": category}})
	return nil
}

// ProductIDByName returns the id of a product by exact name.
func (s *Service) ProductIDByName(ctx context.Context, name string) (int, error) {
	var id int
	if err := s.pool.QueryRow(ctx, `SELECT id_producto FROM productos WHERE nombre = $1`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("product %q: %w", name, notFound(err))
	}
	return id, nil
}
