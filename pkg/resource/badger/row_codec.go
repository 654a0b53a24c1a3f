package badger

import (
	"bytes"
	"encoding/json"
	"fmt"

	domain "github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// Rows and table metadata are stored as JSON.

func encodeRow(row domain.Row) ([]byte, error) {
	return json.Marshal(row)
}

// decodeRow restores the declared column types: int columns come back as
// int64, every other number as float64.
func decodeRow(data []byte, info *domain.TableInfo) (domain.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}

	row := make(domain.Row, len(raw))
	for name, v := range raw {
		var colType string
		if col, ok := info.GetColumn(name); ok {
			colType = col.Type
		}
		restored, err := restoreNumbers(v, colType)
		if err != nil {
			return nil, fmt.Errorf("decode row column %s: %w", name, err)
		}
		row[name] = restored
	}
	return row, nil
}

func restoreNumbers(v interface{}, colType string) (interface{}, error) {
	switch x := v.(type) {
	case json.Number:
		if colType == domain.ColumnTypeInt {
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
		}
		return x.Float64()
	case []interface{}:
		for i := range x {
			item, err := restoreNumbers(x[i], "")
			if err != nil {
				return nil, err
			}
			x[i] = item
		}
	case map[string]interface{}:
		for k := range x {
			item, err := restoreNumbers(x[k], "")
			if err != nil {
				return nil, err
			}
			x[k] = item
		}
	}
	return v, nil
}

func encodeTableInfo(info *domain.TableInfo) ([]byte, error) {
	return json.Marshal(info)
}

func decodeTableInfo(data []byte) (*domain.TableInfo, error) {
	var info domain.TableInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode table info: %w", err)
	}
	return &info, nil
}
