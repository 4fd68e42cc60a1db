package core

const activeColumn = "activo"

var activeField = FieldSpec{Column: activeColumn, Label: "Activo", Kind: FieldCheckbox, Optional: true}

func nameOnly(key, label, idColumn string) TableDefinition {
	return TableDefinition{
		Key:      key,
		Label:    label,
		IDColumn: idColumn,
		Fields: []FieldSpec{
			{Column: "nombre", Label: "Nombre", Kind: FieldText},
			activeField,
		},
		DisplayColumns: []string{"ID", "Nombre", "Activo"},
	}
}

func init() {
	Register(nameOnly("categorias", "Categorías", "id_categoria"))
	Register(nameOnly("departamentos", "Departamentos", "id_departamento"))
	Register(nameOnly("ubicaciones", "Ubicaciones", "id_ubicacion"))
	Register(nameOnly("marcas", "Marcas", "id_marca"))

	Register(TableDefinition{
		Key:      "solicitantes",
		Label:    "Solicitantes",
		IDColumn: "id_solicitante",
		Fields: []FieldSpec{
			{Column: "cedula", Label: "Cédula", Kind: FieldText},
			{Column: "nombre", Label: "Nombre", Kind: FieldText},
			{Column: "id_departamento", Label: "Departamento", Kind: FieldRelation},
			activeField,
		},
		DisplayColumns: []string{"ID", "Cédula", "Nombre", "Departamento", "Activo"},
		ListAllQuery: `
			SELECT s.id_solicitante, s.cedula, s.nombre, d.nombre AS departamento, s.activo
			FROM solicitantes s
			LEFT JOIN departamentos d ON s.id_departamento = d.id_departamento
			ORDER BY s.id_solicitante`,
		ListActiveQuery: `
			SELECT s.id_solicitante, s.cedula, s.nombre, d.nombre AS departamento
			FROM solicitantes s
			LEFT JOIN departamentos d ON s.id_departamento = d.id_departamento
			WHERE s.activo = TRUE AND d.activo = TRUE
			ORDER BY s.nombre`,
	})

	Register(TableDefinition{
		Key:      "proveedores",
		Label:    "Proveedores",
		IDColumn: "id_proveedor",
		Fields: []FieldSpec{
			{Column: "nombre", Label: "Nombre", Kind: FieldText},
			{Column: "contacto", Label: "Contacto", Kind: FieldText, Optional: true},
			{Column: "telefono", Label: "Teléfono", Kind: FieldText, Optional: true},
			{Column: "email", Label: "Email", Kind: FieldText, Optional: true},
			{Column: "direccion", Label: "Dirección", Kind: FieldText, Optional: true},
			activeField,
		},
		DisplayColumns: []string{"ID", "Nombre", "Contacto", "Teléfono", "Email", "Activo"},
		ListAllQuery: `
			SELECT id_proveedor, nombre, contacto, telefono, email, activo
			FROM proveedores ORDER BY id_proveedor`,
		ListActiveQuery: `
			SELECT id_proveedor, nombre, contacto, telefono, email
			FROM proveedores WHERE activo = TRUE ORDER BY nombre`,
	})

	Register(TableDefinition{
		Key:      "usuarios",
		Label:    "Usuarios",
		IDColumn: "id",
		Fields: []FieldSpec{
			{Column: "nombre_completo", Label: "Nombre", Kind: FieldText},
			{Column: "email", Label: "Email", Kind: FieldText},
			{Column: "usuario", Label: "Usuario", Kind: FieldText},
			{Column: "rol", Label: "Rol", Kind: FieldChoice, Options: []string{RoleAdmin, RoleUser}},
			activeField,
		},
		DisplayColumns: []string{"ID", "Nombre", "Email", "Usuario", "Rol", "Activo"},
		// Accounts need a password hash; they are created through registration.
		CreateDisabled: true,
		ListAllQuery: `
			SELECT id, nombre_completo, email, usuario, rol, activo
			FROM usuarios ORDER BY id`,
		ListActiveQuery: `
			SELECT id, nombre_completo, email, usuario, rol
			FROM usuarios WHERE activo = TRUE ORDER BY nombre_completo`,
	})

	Register(TableDefinition{
		Key:      "productos",
		Label:    "Productos",
		IDColumn: "id_producto",
		Fields: []FieldSpec{
			{Column: "codigo", Label: "Código", Kind: FieldText},
			{Column: "nombre", Label: "Nombre", Kind: FieldText},
			{Column: "id_marca", Label: "Marca", Kind: FieldRelation},
			{Column: "id_categoria", Label: "Categoría", Kind: FieldRelation},
			{Column: "stock_minimo", Label: "Stock mínimo", Kind: FieldInteger},
			activeField,
		},
		DisplayColumns: []string{"ID", "Código", "Nombre", "Marca", "Categoría", "Stock (m)", "Activo"},
		ListAllQuery: `
			SELECT p.id_producto, p.codigo, p.nombre,
				COALESCE(m.nombre, '` + noBrand + `') AS marca,
				COALESCE(c.nombre, '` + noCategory + `') AS categoria,
				p.stock_minimo, p.activo
			FROM productos p
			LEFT JOIN marcas m ON p.id_marca = m.id_marca AND m.activo = TRUE
			LEFT JOIN categorias c ON p.id_categoria = c.id_categoria AND c.activo = TRUE
			ORDER BY p.id_producto`,
		ListActiveQuery: `
			SELECT p.id_producto, p.codigo, p.nombre,
				COALESCE(m.nombre, '` + noBrand + `') AS marca,
				COALESCE(c.nombre, '` + noCategory + `') AS categoria
			FROM productos p
			LEFT JOIN marcas m ON p.id_marca = m.id_marca AND m.activo = TRUE
			LEFT JOIN categorias c ON p.id_categoria = c.id_categoria AND c.activo = TRUE
			WHERE p.activo = TRUE
			ORDER BY p.nombre`,
	})
}
