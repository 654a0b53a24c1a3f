package memory

import (
	"context"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/resource/util"
)

// SupportsFiltering reports whether the table exists
func (m *MemoryDataSource) SupportsFiltering(tableName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tables[tableName]
	return ok
}

// Filter returns the matching rows (paginated) and the total match count
func (m *MemoryDataSource) Filter(ctx context.Context, tableName string, filter domain.Filter, offset, limit int) ([]domain.Row, int64, error) {
	t, err := m.getTable(tableName)
	if err != nil {
		return nil, 0, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	matched := make([]domain.Row, 0, len(t.rows))
	for i, row := range t.rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		if util.MatchFilter(row, filter) {
			matched = append(matched, row.Clone())
		}
	}

	total := int64(len(matched))
	return util.ApplyPagination(matched, offset, limit), total, nil
}

// Count counts matching rows without copying them
func (m *MemoryDataSource) Count(ctx context.Context, tableName string, filter domain.Filter) (int64, error) {
	t, err := m.getTable(tableName)
	if err != nil {
		return 0, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if filter.IsEmpty() {
		return int64(len(t.rows)), nil
	}

	var n int64
	for _, row := range t.rows {
		if util.MatchFilter(row, filter) {
			n++
		}
	}
	return n, ctx.Err()
}

// Query reads rows with filtering, ordering, pagination and column pruning
func (m *MemoryDataSource) Query(ctx context.Context, tableName string, options *domain.QueryOptions) (*domain.QueryResult, error) {
	t, err := m.getTable(tableName)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	rows := make([]domain.Row, len(t.rows))
	for i, row := range t.rows {
		rows[i] = row.Clone()
	}
	columns := make([]domain.ColumnInfo, len(t.info.Columns))
	copy(columns, t.info.Columns)
	t.mu.RUnlock()

	var total int64
	if options != nil {
		filtered := util.ApplyFilters(rows, options)
		total = int64(len(filtered))
		rows = util.ApplyQueryOperations(filtered, &domain.QueryOptions{
			OrderBy:       options.OrderBy,
			Order:         options.Order,
			Limit:         options.Limit,
			Offset:        options.Offset,
			SelectColumns: options.SelectColumns,
		})
	} else {
		total = int64(len(rows))
	}

	return &domain.QueryResult{
		Columns: columns,
		Rows:    rows,
		Total:   total,
	}, nil
}
