package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// TypeAnnotation names the row field that carries a derived entity type in seed files
const TypeAnnotation = "@odata.type"

// Data rows per entity set, in storage representation
type Data map[string][]domain.Row

// Sets returns the entity set names in a stable order
func (d Data) Sets() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a seed file, choosing the format by extension (.json or .xlsx)
func LoadFile(m *edm.Model, path string) (Data, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadXLSX(m, path)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		return LoadJSON(f)
	}
	return nil, fmt.Errorf("unsupported seed file format: %s", path)
}

// LoadJSON reads {"EntitySet": [{...}, ...], ...}
func LoadJSON(r io.Reader) (Data, error) {
	var raw map[string][]map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode seed json: %w", err)
	}
	data := make(Data, len(raw))
	for set, rows := range raw {
		out := make([]domain.Row, len(rows))
		for i, row := range rows {
			out[i] = domain.Row(row)
		}
		data[set] = out
	}
	return data, nil
}

// Apply creates missing tables and inserts data, replacing rows with equal keys.
// With reset the tables of the seeded sets are emptied first; a table whose
// columns no longer match the model is dropped and created again.
func Apply(ctx context.Context, m *edm.Model, r Router, data Data, reset bool) (int64, error) {
	if reset {
		for _, name := range data.Sets() {
			if err := resetTable(ctx, m, r, name); err != nil {
				return 0, err
			}
		}
	}
	if err := EnsureTables(ctx, m, r); err != nil {
		return 0, err
	}

	var total int64
	for _, name := range data.Sets() {
		set, ok := m.EntitySet(name)
		if !ok {
			return total, fmt.Errorf("seed: unknown entity set %s", name)
		}
		rows := make([]domain.Row, 0, len(data[name]))
		for i, raw := range data[name] {
			row, err := PrepareRow(m, set, raw)
			if err != nil {
				return total, fmt.Errorf("seed: %s[%d]: %w", name, i, err)
			}
			rows = append(rows, row)
		}

		ds, err := r.Route(name)
		if err != nil {
			return total, err
		}
		n, err := ds.Insert(ctx, name, rows, &domain.InsertOptions{Replace: true})
		total += n
		if err != nil {
			return total, fmt.Errorf("seed: insert into %s: %w", name, err)
		}
	}
	return total, nil
}

func resetTable(ctx context.Context, m *edm.Model, r Router, name string) error {
	set, ok := m.EntitySet(name)
	if !ok {
		return fmt.Errorf("seed: unknown entity set %s", name)
	}
	ds, err := r.Route(name)
	if err != nil {
		return err
	}
	info, err := ds.GetTableInfo(ctx, name)
	if err != nil {
		var notFound *domain.ErrTableNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("seed: %s: %w", name, err)
	}

	if sameColumns(info, TableFor(m, set)) {
		if err := ds.TruncateTable(ctx, name); err != nil {
			return fmt.Errorf("seed: truncate %s: %w", name, err)
		}
		return nil
	}
	// 表结构已过期, 由 EnsureTables 按模型重建
	if err := ds.DropTable(ctx, name); err != nil {
		return fmt.Errorf("seed: drop %s: %w", name, err)
	}
	return nil
}

// sameColumns compares column names only; backends map column types differently
func sameColumns(a, b *domain.TableInfo) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	names := make(map[string]bool, len(a.Columns))
	for _, c := range a.Columns {
		names[c.Name] = true
	}
	for _, c := range b.Columns {
		if !names[c.Name] {
			return false
		}
	}
	return true
}

// PrepareRow validates a seed row against the entity set and returns the row to store.
// Integral, floating point and boolean properties are stored in their runtime form;
// everything else keeps its storage representation.
func PrepareRow(m *edm.Model, set *edm.EntitySet, raw domain.Row) (domain.Row, error) {
	et := set.EntityType
	typeName := ""
	if v, ok := raw[TypeAnnotation].(string); ok {
		typeName = strings.TrimPrefix(v, "#")
	} else if v, ok := raw[domain.RowTypeKey].(string); ok {
		typeName = v
	}
	if typeName != "" {
		derived, ok := m.EntityType(typeName)
		if !ok {
			return nil, fmt.Errorf("unknown entity type %s", typeName)
		}
		if !derived.IsDerivedFrom(set.EntityType) {
			return nil, fmt.Errorf("type %s is not derived from %s", typeName, set.EntityType.QualifiedName())
		}
		et = derived
	}

	columns := make(map[string]bool)
	for _, col := range TableFor(m, set).Columns {
		columns[col.Name] = true
	}

	row := make(domain.Row, len(raw))
	if et != set.EntityType {
		row[domain.RowTypeKey] = et.QualifiedName()
	}
	for k, v := range raw {
		if k == TypeAnnotation || k == domain.RowTypeKey {
			continue
		}
		p, ok := et.Property(k)
		if !ok {
			if !columns[k] {
				return nil, fmt.Errorf("unknown property %s on %s", k, et.QualifiedName())
			}
			row[k] = v
			continue
		}
		nv, err := m.Normalize(p.Type, v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", k, err)
		}
		if !p.Type.Collection && p.Type.Kind == edm.KindPrimitive {
			switch p.Type.PrimitiveKind() {
			case edm.Int32, edm.Int64, edm.Double, edm.Decimal, edm.Boolean:
				v = nv
			}
		}
		if v == nil && !p.Nullable {
			return nil, fmt.Errorf("property %s is not nullable", k)
		}
		row[k] = v
	}

	for _, k := range et.KeyProperties() {
		if row[k.Name] == nil {
			return nil, fmt.Errorf("missing key property %s", k.Name)
		}
	}
	return row, nil
}
