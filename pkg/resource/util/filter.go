package util

import (
	"strings"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// comparison 非 NULL 操作数之间的比较
type comparison func(value, want interface{}) bool

var comparisons = map[string]comparison{
	"=":    CompareEqual,
	"":     CompareEqual,
	"!=":   func(v, w interface{}) bool { return !CompareEqual(v, w) },
	"<>":   func(v, w interface{}) bool { return !CompareEqual(v, w) },
	">":    func(v, w interface{}) bool { return CompareValues(v, w) > 0 },
	">=":   func(v, w interface{}) bool { return CompareValues(v, w) >= 0 },
	"<":    func(v, w interface{}) bool { return CompareValues(v, w) < 0 },
	"<=":   func(v, w interface{}) bool { return CompareValues(v, w) <= 0 },
	"LIKE": CompareLike,
	"IN":   CompareIn,
}

// ApplyFilters keeps the rows matching every filter of options
func ApplyFilters(rows []domain.Row, options *domain.QueryOptions) []domain.Row {
	if options == nil || len(options.Filters) == 0 {
		return rows
	}
	result := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		if matchAll(row, options.Filters) {
			result = append(result, row)
		}
	}
	return result
}

// MatchFilter matches a single, possibly nested, filter.
//
// NULL handling follows the SQL builder: a comparison with NULL is false,
// except "=" between two NULLs and "!=" (rendered as "<> OR IS NULL").
func MatchFilter(row domain.Row, filter domain.Filter) bool {
	switch strings.ToUpper(filter.LogicOp) {
	case "AND":
		return matchAll(row, filter.SubFilters)
	case "OR":
		return matchAny(row, filter.SubFilters)
	case "NOT":
		return !matchAll(row, filter.SubFilters)
	}
	if filter.Field == "" {
		return true
	}

	op := strings.ToUpper(strings.TrimSpace(filter.Operator))
	value := row[filter.Field] // missing columns read as NULL

	switch op {
	case "IS NULL", "ISNULL":
		return value == nil
	case "IS NOT NULL", "ISNOTNULL":
		return value != nil
	}

	cmp, ok := comparisons[op]
	if !ok {
		return false
	}
	isNe := op == "!=" || op == "<>"
	switch {
	case value == nil && filter.Value == nil:
		return op == "=" || op == ""
	case value == nil, filter.Value == nil && op != "IN":
		return isNe
	}
	return cmp(value, filter.Value)
}

// matchAll AND; an empty list matches
func matchAll(row domain.Row, filters []domain.Filter) bool {
	for _, f := range filters {
		if !MatchFilter(row, f) {
			return false
		}
	}
	return true
}

// matchAny OR; an empty list matches
func matchAny(row domain.Row, filters []domain.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if MatchFilter(row, f) {
			return true
		}
	}
	return false
}
