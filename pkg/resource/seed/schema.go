// Package seed maps entity sets onto storage tables and loads rows into them
// from JSON or XLSX files.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// Router resolves the datasource that stores an entity set
type Router interface {
	Route(entitySet string) (domain.CountableDataSource, error)
}

// TableFor derives the storage table of an entity set. It holds the key, the
// properties of the set's type and of every derived type, the type
// discriminator, key-list columns of collection navigations and foreign key
// columns that other types point at this set with.
func TableFor(m *edm.Model, set *edm.EntitySet) *domain.TableInfo {
	info := &domain.TableInfo{Name: set.Name}
	seen := make(map[string]bool)
	add := func(col domain.ColumnInfo) {
		if seen[col.Name] {
			return
		}
		seen[col.Name] = true
		info.Columns = append(info.Columns, col)
	}

	root := set.EntityType.Root()
	keys := make(map[string]bool, len(root.Key))
	for _, k := range root.Key {
		keys[k] = true
	}

	for _, et := range m.DerivedTypes(set.EntityType) {
		for _, p := range et.AllProperties() {
			add(domain.ColumnInfo{
				Name:     p.Name,
				Type:     ColumnType(p.Type),
				Nullable: !keys[p.Name] && (p.Nullable || et != set.EntityType),
				Primary:  keys[p.Name],
			})
		}
		for _, n := range et.AllNavigationProperties() {
			if n.KeysField != "" {
				add(domain.ColumnInfo{Name: n.KeysField, Type: domain.ColumnTypeJSON, Nullable: true})
			}
		}
	}
	add(domain.ColumnInfo{Name: domain.RowTypeKey, Type: domain.ColumnTypeString, Nullable: true})

	for _, et := range m.EntityTypes() {
		for _, n := range et.NavigationProperties {
			if n.ForeignKey == "" || n.TargetSet != set.Name {
				continue
			}
			colType := domain.ColumnTypeString
			if kp := et.KeyProperties(); len(kp) == 1 {
				colType = ColumnType(kp[0].Type)
			}
			add(domain.ColumnInfo{Name: n.ForeignKey, Type: colType, Nullable: true})
		}
	}
	return info
}

// ColumnType maps a property type onto a storage column type
func ColumnType(t edm.TypeRef) string {
	if t.Collection || t.Kind == edm.KindComplex || t.Kind == edm.KindEntity {
		return domain.ColumnTypeJSON
	}
	switch t.PrimitiveKind() {
	case edm.Int32, edm.Int64:
		return domain.ColumnTypeInt
	case edm.Double, edm.Decimal:
		return domain.ColumnTypeFloat
	case edm.Boolean:
		return domain.ColumnTypeBool
	}
	return domain.ColumnTypeString
}

// EnsureTables creates the table of every entity set that does not exist yet
func EnsureTables(ctx context.Context, m *edm.Model, r Router) error {
	for _, set := range m.EntitySets() {
		ds, err := r.Route(set.Name)
		if err != nil {
			return err
		}
		if _, err := ds.GetTableInfo(ctx, set.Name); err == nil {
			continue
		} else {
			var notFound *domain.ErrTableNotFound
			if !errors.As(err, &notFound) {
				return fmt.Errorf("entity set %s: %w", set.Name, err)
			}
		}
		if err := ds.CreateTable(ctx, TableFor(m, set)); err != nil {
			return fmt.Errorf("create table for %s: %w", set.Name, err)
		}
	}
	return nil
}
