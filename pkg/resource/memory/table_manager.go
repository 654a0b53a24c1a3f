package memory

import (
	"context"
	"sort"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// GetTables lists table names in sorted order
func (m *MemoryDataSource) GetTables(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return nil, domain.NewErrNotConnected(string(domain.DataSourceTypeMemory))
	}

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetTableInfo returns a copy of the table metadata
func (m *MemoryDataSource) GetTableInfo(ctx context.Context, tableName string) (*domain.TableInfo, error) {
	t, err := m.getTable(tableName)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	info := &domain.TableInfo{
		Name:    t.info.Name,
		Columns: make([]domain.ColumnInfo, len(t.info.Columns)),
	}
	copy(info.Columns, t.info.Columns)
	return info, nil
}

// CreateTable creates an empty table
func (m *MemoryDataSource) CreateTable(ctx context.Context, tableInfo *domain.TableInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return domain.NewErrNotConnected(string(domain.DataSourceTypeMemory))
	}
	if !m.config.Writable {
		return domain.NewErrReadOnly(string(domain.DataSourceTypeMemory), "create table")
	}
	if _, ok := m.tables[tableInfo.Name]; ok {
		return domain.NewErrTableAlreadyExists(tableInfo.Name)
	}

	m.tables[tableInfo.Name] = &table{
		info:  tableInfo,
		index: make(map[string]int),
	}
	return nil
}

// DropTable removes a table
func (m *MemoryDataSource) DropTable(ctx context.Context, tableName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return domain.NewErrNotConnected(string(domain.DataSourceTypeMemory))
	}
	if _, ok := m.tables[tableName]; !ok {
		return domain.NewErrTableNotFound(tableName)
	}
	delete(m.tables, tableName)
	return nil
}

// TruncateTable removes every row
func (m *MemoryDataSource) TruncateTable(ctx context.Context, tableName string) error {
	t, err := m.getTable(tableName)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.index = make(map[string]int)
	return nil
}

// Insert appends rows. A row whose primary key already exists is rejected
// unless options.Replace is set, in which case it overwrites the stored row.
func (m *MemoryDataSource) Insert(ctx context.Context, tableName string, rows []domain.Row, options *domain.InsertOptions) (int64, error) {
	if !m.config.Writable {
		return 0, domain.NewErrReadOnly(string(domain.DataSourceTypeMemory), "insert")
	}
	t, err := m.getTable(tableName)
	if err != nil {
		return 0, err
	}

	replace := options != nil && options.Replace

	t.mu.Lock()
	defer t.mu.Unlock()

	var inserted int64
	for _, row := range rows {
		stored := row.Clone()
		key, hasKey := t.info.PrimaryKeyValue(stored)
		if hasKey {
			if pos, exists := t.index[key]; exists {
				if !replace {
					return inserted, &domain.ErrDuplicateKey{TableName: t.info.Name, Key: key}
				}
				t.rows[pos] = stored
				inserted++
				continue
			}
			t.index[key] = len(t.rows)
		}
		t.rows = append(t.rows, stored)
		inserted++
	}
	return inserted, nil
}
