package sql

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// whereWriter renders filters and numbers the placeholders of bound values
type whereWriter struct {
	d      Dialect
	params []interface{}
	err    error
}

func (w *whereWriter) bind(v interface{}) string {
	w.params = append(w.params, v)
	return w.d.Placeholder(len(w.params))
}

// and renders filters joined with AND; empty filters are skipped
func (w *whereWriter) and(filters []domain.Filter) string {
	return w.join(filters, "AND")
}

func (w *whereWriter) join(filters []domain.Filter, logic string) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if clause := w.filter(f); clause != "" {
			parts = append(parts, clause)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " "+logic+" ") + ")"
}

func (w *whereWriter) filter(f domain.Filter) string {
	switch logic := strings.ToUpper(f.LogicOp); {
	case logic == "NOT":
		inner := w.and(f.SubFilters)
		if inner == "" {
			return "1=0"
		}
		return "NOT " + parenthesize(inner)
	case len(f.SubFilters) > 0:
		if logic == "" {
			logic = "AND"
		}
		return w.join(f.SubFilters, logic)
	case f.Field == "":
		return ""
	}

	col := w.d.QuoteIdentifier(f.Field)
	op := strings.ToUpper(strings.TrimSpace(f.Operator))
	switch op {
	case "IS NULL", "IS NOT NULL":
		return col + " " + op
	case "IN":
		values, err := inValues(f.Value)
		if err != nil {
			if w.err == nil {
				w.err = fmt.Errorf("filter on %s: %w", f.Field, err)
			}
			return "1=0"
		}
		if len(values) == 0 {
			return "1=0"
		}
		phs := make([]string, len(values))
		for i, v := range values {
			phs[i] = w.bind(v)
		}
		return col + " IN (" + strings.Join(phs, ", ") + ")"
	}

	// null 只满足 eq null 和 ne 非空值
	if f.Value == nil {
		switch op {
		case "", "=":
			return col + " IS NULL"
		case "!=", "<>":
			return col + " IS NOT NULL"
		}
		return "1=0"
	}

	switch op {
	case "!=", "<>":
		return "(" + col + " <> " + w.bind(f.Value) + " OR " + col + " IS NULL)"
	case ">", "<", ">=", "<=":
		return col + " " + op + " " + w.bind(f.Value)
	case "LIKE":
		return col + " LIKE " + w.bind(f.Value) + w.d.LikeEscapeClause()
	}
	return col + " = " + w.bind(f.Value)
}

// inValues returns the elements of any slice or array
func inValues(v interface{}) ([]interface{}, error) {
	if list, ok := v.([]interface{}); ok {
		return list, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("IN needs a list value, got %T", v)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func parenthesize(s string) string {
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s
	}
	return "(" + s + ")"
}

// BuildWhereClause renders filters as an AND-joined condition with its bound values
func BuildWhereClause(d Dialect, filters []domain.Filter) (string, []interface{}, error) {
	w := &whereWriter{d: d}
	clause := w.and(filters)
	if w.err != nil {
		return "", nil, w.err
	}
	return clause, w.params, nil
}

func where(d Dialect, filters []domain.Filter) (string, []interface{}, error) {
	clause, params, err := BuildWhereClause(d, filters)
	if err != nil || clause == "" {
		return "", nil, err
	}
	return " WHERE " + clause, params, nil
}

// BuildSelectSQL builds a SELECT query from QueryOptions
func BuildSelectSQL(d Dialect, tableName string, options *domain.QueryOptions) (string, []interface{}, error) {
	if options == nil {
		options = &domain.QueryOptions{}
	}

	cols := "*"
	if len(options.SelectColumns) > 0 {
		quoted := make([]string, len(options.SelectColumns))
		for i, c := range options.SelectColumns {
			quoted[i] = d.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + d.QuoteIdentifier(tableName))
	clause, params, err := where(d, options.Filters)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(clause)

	if options.OrderBy != "" {
		dir := " ASC"
		if strings.EqualFold(options.Order, "DESC") {
			dir = " DESC"
		}
		sb.WriteString(" ORDER BY " + d.QuoteIdentifier(options.OrderBy) + dir)
	}
	switch {
	case options.Limit > 0:
		sb.WriteString(" LIMIT " + strconv.Itoa(options.Limit))
	case options.Offset > 0:
		// MySQL and SQLite need a LIMIT before OFFSET
		sb.WriteString(" LIMIT " + noLimit(d))
	}
	if options.Offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(options.Offset))
	}
	return sb.String(), params, nil
}

func noLimit(d Dialect) string {
	switch d.DriverName() {
	case "mysql":
		return "18446744073709551615"
	case "postgres":
		return "ALL"
	}
	return "-1"
}

// BuildCountSQL builds a SELECT COUNT(*) query for the filters
func BuildCountSQL(d Dialect, tableName string, filters []domain.Filter) (string, []interface{}, error) {
	clause, params, err := where(d, filters)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + d.QuoteIdentifier(tableName) + clause, params, nil
}

// BuildDeleteSQL builds a DELETE statement; no filters deletes every row
func BuildDeleteSQL(d Dialect, tableName string, filters []domain.Filter) (string, []interface{}, error) {
	clause, params, err := where(d, filters)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + d.QuoteIdentifier(tableName) + clause, params, nil
}

// BuildInsertSQL builds a multi-row INSERT.
// Columns are the sorted union of the row keys; missing values bind NULL.
func BuildInsertSQL(d Dialect, tableName string, rows []domain.Row) (string, []interface{}, []string) {
	if len(rows) == 0 {
		return "", nil, nil
	}

	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.QuoteIdentifier(col)
	}

	w := &whereWriter{d: d}
	tuples := make([]string, len(rows))
	for r, row := range rows {
		phs := make([]string, len(columns))
		for i, col := range columns {
			phs[i] = w.bind(row[col])
		}
		tuples[r] = "(" + strings.Join(phs, ", ") + ")"
	}

	sql := "INSERT INTO " + d.QuoteIdentifier(tableName) +
		" (" + strings.Join(quoted, ", ") + ") VALUES " + strings.Join(tuples, ", ")
	return sql, w.params, columns
}

// BuildCreateTableSQL generates CREATE TABLE from the declared columns
func BuildCreateTableSQL(d Dialect, info *domain.TableInfo) string {
	defs := make([]string, 0, len(info.Columns)+1)
	var pk []string
	for _, col := range info.Columns {
		def := "  " + d.QuoteIdentifier(col.Name) + " " + d.ColumnDefinition(col)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
		if col.Primary {
			pk = append(pk, d.QuoteIdentifier(col.Name))
		}
	}
	if len(pk) > 0 {
		defs = append(defs, "  PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return "CREATE TABLE " + d.QuoteIdentifier(info.Name) + " (\n" + strings.Join(defs, ",\n") + "\n)"
}
