package seed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// LoadXLSX 读取 Excel 种子文件
// 每个工作表对应一个实体集, 第一行是列头; 集合与复杂类型的单元格为 JSON 文本
func LoadXLSX(m *edm.Model, path string) (Data, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	data := make(Data)
	for _, sheet := range file.GetSheetList() {
		set, ok := m.EntitySet(sheet)
		if !ok {
			return nil, fmt.Errorf("sheet %s does not name an entity set", sheet)
		}

		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		types := make(map[string]string)
		for _, col := range TableFor(m, set).Columns {
			types[col.Name] = col.Type
		}

		headers := rows[0]
		out := make([]domain.Row, 0, len(rows)-1)
		for i, cells := range rows[1:] {
			row := make(domain.Row, len(headers))
			for j, cell := range cells {
				if j >= len(headers) || headers[j] == "" || cell == "" {
					continue
				}
				v, err := parseCell(cell, types[headers[j]])
				if err != nil {
					// 行号从 1 开始, 加上列头行
					return nil, fmt.Errorf("sheet %s row %d column %s: %w", sheet, i+2, headers[j], err)
				}
				row[headers[j]] = v
			}
			if len(row) > 0 {
				out = append(out, row)
			}
		}
		data[sheet] = out
	}
	return data, nil
}

// parseCell 按列类型解析单元格
func parseCell(cell, colType string) (interface{}, error) {
	cell = strings.TrimSpace(cell)
	switch colType {
	case domain.ColumnTypeJSON:
		var v interface{}
		if err := json.Unmarshal([]byte(cell), &v); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return v, nil
	case domain.ColumnTypeInt:
		return strconv.ParseInt(cell, 10, 64)
	case domain.ColumnTypeFloat:
		return strconv.ParseFloat(cell, 64)
	case domain.ColumnTypeBool:
		return strconv.ParseBool(strings.ToLower(cell))
	}
	return cell, nil
}

// WriteXLSX 将数据写成 Excel 种子文件, 列顺序与存储表一致
func WriteXLSX(m *edm.Model, data Data, path string) error {
	file := excelize.NewFile()
	defer file.Close()

	const defaultSheet = "Sheet1"
	for _, name := range data.Sets() {
		set, ok := m.EntitySet(name)
		if !ok {
			return fmt.Errorf("unknown entity set %s", name)
		}
		if _, err := file.NewSheet(name); err != nil {
			return err
		}

		var headers []string
		var types []string
		for _, col := range TableFor(m, set).Columns {
			h := col.Name
			if h == domain.RowTypeKey {
				h = TypeAnnotation
			}
			headers = append(headers, h)
			types = append(types, col.Type)
		}
		for j, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(j+1, 1)
			if err := file.SetCellValue(name, cell, h); err != nil {
				return err
			}
		}

		for i, row := range data[name] {
			for j, h := range headers {
				v, ok := row[h]
				if h == TypeAnnotation && !ok {
					v, ok = row[domain.RowTypeKey]
				}
				if !ok || v == nil {
					continue
				}
				if types[j] == domain.ColumnTypeJSON {
					b, err := json.Marshal(v)
					if err != nil {
						return err
					}
					v = string(b)
				}
				cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
				if err := file.SetCellValue(name, cell, v); err != nil {
					return err
				}
			}
		}
	}
	if _, ok := data[defaultSheet]; !ok && len(data) > 0 {
		if err := file.DeleteSheet(defaultSheet); err != nil {
			return err
		}
	}
	return file.SaveAs(path)
}
