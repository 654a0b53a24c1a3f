package util

import (
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// ApplyPagination returns the window rows[offset:offset+limit]; limit <= 0 means no limit.
// The result shares rows' backing array but cannot grow into it.
func ApplyPagination(rows []domain.Row, offset, limit int) []domain.Row {
	start := max(offset, 0)
	if start >= len(rows) {
		return []domain.Row{}
	}
	end := len(rows)
	if limit > 0 {
		end = min(end, start+limit)
	}
	return rows[start:end:end]
}

// PruneRows projects rows to the given columns. The type discriminator
// survives so derived rows can still be told apart after $select.
func PruneRows(rows []domain.Row, columns []string) []domain.Row {
	if len(columns) == 0 {
		return rows
	}
	keep := append(columns[:len(columns):len(columns)], domain.RowTypeKey)

	result := make([]domain.Row, len(rows))
	for i, row := range rows {
		pruned := make(domain.Row, len(keep))
		for _, col := range keep {
			if v, ok := row[col]; ok {
				pruned[col] = v
			}
		}
		result[i] = pruned
	}
	return result
}

// ApplyQueryOperations runs filter, order, paginate and prune in that order
func ApplyQueryOperations(rows []domain.Row, options *domain.QueryOptions) []domain.Row {
	if options == nil {
		return rows
	}
	rows = ApplyFilters(rows, options)
	rows = ApplyOrder(rows, options)
	rows = ApplyPagination(rows, options.Offset, options.Limit)
	return PruneRows(rows, options.SelectColumns)
}
