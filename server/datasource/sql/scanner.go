package sql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// ScanRows reads all rows from *sql.Rows into domain types.
// When info is known, values are coerced to the declared column types
// and json columns are decoded.
func ScanRows(rows *sql.Rows, dialect Dialect, info *domain.TableInfo) ([]domain.Row, []domain.ColumnInfo, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("get column types: %w", err)
	}

	columns := make([]domain.ColumnInfo, len(colTypes))
	colNames := make([]string, len(colTypes))
	for i, ct := range colTypes {
		colNames[i] = ct.Name()
		nullable, _ := ct.Nullable()
		columns[i] = domain.ColumnInfo{
			Name:     ct.Name(),
			Type:     dialect.MapColumnType(ct.DatabaseTypeName(), ct),
			Nullable: nullable,
		}
		if info != nil {
			if declared, ok := info.GetColumn(ct.Name()); ok {
				columns[i] = declared
			}
		}
	}

	var result []domain.Row
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, columns, nil
}

func scanRow(rows *sql.Rows, columns []domain.ColumnInfo) (domain.Row, error) {
	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	if err := rows.Scan(scanTargets...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	row := make(domain.Row, len(columns))
	for i, col := range columns {
		v, err := coerceValue(normalizeValue(values[i]), col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if v == nil && col.Name == domain.RowTypeKey {
			continue
		}
		row[col.Name] = v
	}

	return row, nil
}

// normalizeValue converts database/sql scanned values to standard Go types.
func normalizeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case int64, float64, bool, string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// coerceValue maps a normalized value onto the declared domain column type
func coerceValue(v interface{}, columnType string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch columnType {
	case domain.ColumnTypeJSON:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		var out interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return out, nil
	case domain.ColumnTypeBool:
		switch b := v.(type) {
		case int64:
			return b != 0, nil
		case string:
			return strconv.ParseBool(b)
		}
	case domain.ColumnTypeInt:
		switch n := v.(type) {
		case float64:
			return int64(n), nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case domain.ColumnTypeFloat:
		switch n := v.(type) {
		case int64:
			return float64(n), nil
		case string:
			return strconv.ParseFloat(n, 64)
		}
	}
	return v, nil
}

// encodeValue prepares a row value for binding; collections and complex values become JSON text
func encodeValue(v interface{}, columnType string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if columnType == domain.ColumnTypeJSON {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return v, nil
}
