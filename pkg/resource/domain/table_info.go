package domain

import (
	"fmt"
	"math"
	"strconv"
)

// HasColumn checks if a column exists
func (t *TableInfo) HasColumn(columnName string) bool {
	_, ok := t.GetColumn(columnName)
	return ok
}

// GetColumn retrieves a column by name
func (t *TableInfo) GetColumn(columnName string) (ColumnInfo, bool) {
	for _, col := range t.Columns {
		if col.Name == columnName {
			return col, true
		}
	}
	return ColumnInfo{}, false
}

// GetPrimaryKey returns the primary key columns
func (t *TableInfo) GetPrimaryKey() []ColumnInfo {
	var pk []ColumnInfo
	for _, col := range t.Columns {
		if col.Primary {
			pk = append(pk, col)
		}
	}
	return pk
}

// PrimaryKeyValue renders the primary key of row as a string.
// Composite keys are joined with '|'.
func (t *TableInfo) PrimaryKeyValue(row Row) (string, bool) {
	pk := t.GetPrimaryKey()
	if len(pk) == 0 {
		return "", false
	}
	out := ""
	for i, col := range pk {
		v, ok := row[col.Name]
		if !ok || v == nil {
			return "", false
		}
		if i > 0 {
			out += "|"
		}
		out += KeyString(v)
	}
	return out, true
}

// KeyString renders a key value; integral floats render without a fraction so that keys
// decoded from JSON (float64) match keys written as ints.
func KeyString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return KeyString(float64(val))
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
