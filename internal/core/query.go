package core

// query.go holds the small SQL assembly helpers shared by every module.
// Values always travel as bind parameters; only identifiers taken from
// registered table definitions are ever formatted into statement text.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WhereBuilder accumulates AND-ed conditions with positional parameters.
type WhereBuilder struct {
	conditions []string
	args       []interface{}
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first parameter is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n" unless value is a zero value.
func (wb *WhereBuilder) Add(column string, value interface{}) {
	if isZero(value) {
		return
	}
	wb.AddExpr(column+" = ?", value)
}

// AddExpr appends an expression whose "?" markers are replaced, in order,
// by positional parameters bound to values.
func (wb *WhereBuilder) AddExpr(expr string, values ...interface{}) {
	var b strings.Builder
	next := 0
	for _, r := range expr {
		if r == '?' && next < len(values) {
			b.WriteString(wb.Arg(values[next]))
			next++
			continue
		}
		b.WriteRune(r)
	}
	wb.conditions = append(wb.conditions, b.String())
}

// AddRaw appends a condition without parameters.
func (wb *WhereBuilder) AddRaw(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// Arg binds v and returns its placeholder. Useful for LIMIT/OFFSET after
// the WHERE clause.
func (wb *WhereBuilder) Arg(v interface{}) string {
	wb.args = append(wb.args, v)
	ph := "$" + strconv.Itoa(wb.argIndex)
	wb.argIndex++
	return ph
}

// Build returns " WHERE a AND b" (or "" when empty) and the bound args.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.conditions) == 0 {
		return "", wb.args
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// Args returns the bound arguments in placeholder order.
func (wb *WhereBuilder) Args() []interface{} {
	return wb.args
}

func isZero(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case *int:
		return x == nil
	case time.Time:
		return x.IsZero()
	}
	return false
}

// quoteIdentifier quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdentifier(c)
	}
	return out
}

// placeholders returns "$1, $2, ... $n".
func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(ph, ", ")
}

// DisplayDate is the date layout used by every list view.
const DisplayDate = "02/01/2006 15:04"

// FormatValue renders a scanned column value for tabular display.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return activeLabel(x)
	case time.Time:
		return x.Format(DisplayDate)
	case []byte:
		return string(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func activeLabel(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

// likePattern wraps s for a substring ILIKE match, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
