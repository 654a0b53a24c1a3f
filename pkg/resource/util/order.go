package util

import (
	"slices"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// ApplyOrder returns a copy of rows stably sorted by options.OrderBy.
// NULLs and missing columns sort first ascending, last descending.
func ApplyOrder(rows []domain.Row, options *domain.QueryOptions) []domain.Row {
	if options == nil || options.OrderBy == "" {
		return rows
	}
	column := options.OrderBy
	sign := 1
	if strings.EqualFold(options.Order, "DESC") {
		sign = -1
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b domain.Row) int {
		return sign * CompareValues(a[column], b[column])
	})
	return sorted
}
