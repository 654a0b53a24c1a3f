package util

import (
	"encoding/json"
	"testing"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/stretchr/testify/assert"
)

func TestMatchFilter(t *testing.T) {
	row := domain.Row{"Id": 5, "Name": "five", "Score": 4.5, "Note": nil}

	tests := []struct {
		name   string
		filter domain.Filter
		want   bool
	}{
		{"eq int", domain.Filter{Field: "Id", Operator: "=", Value: 5}, true},
		{"eq float vs int", domain.Filter{Field: "Id", Operator: "=", Value: 5.0}, true},
		{"ne", domain.Filter{Field: "Id", Operator: "!=", Value: 5}, false},
		{"gt", domain.Filter{Field: "Score", Operator: ">", Value: 4}, true},
		{"le", domain.Filter{Field: "Score", Operator: "<=", Value: 4}, false},
		{"string compare", domain.Filter{Field: "Name", Operator: ">", Value: "a"}, true},
		{"like prefix", domain.Filter{Field: "Name", Operator: "LIKE", Value: "fi%"}, true},
		{"like single", domain.Filter{Field: "Name", Operator: "LIKE", Value: "f_ve"}, true},
		{"like miss", domain.Filter{Field: "Name", Operator: "LIKE", Value: "%x%"}, false},
		{"in", domain.Filter{Field: "Id", Operator: "IN", Value: []interface{}{1, 5}}, true},
		{"is null", domain.Filter{Field: "Note", Operator: "IS NULL"}, true},
		{"missing is null", domain.Filter{Field: "Missing", Operator: "IS NULL"}, true},
		{"null compare", domain.Filter{Field: "Note", Operator: ">", Value: 1}, false},
		{"null ne", domain.Filter{Field: "Note", Operator: "!=", Value: 1}, true},
		{"or", domain.Filter{LogicOp: "OR", SubFilters: []domain.Filter{
			{Field: "Id", Operator: "=", Value: 1},
			{Field: "Name", Operator: "=", Value: "five"},
		}}, true},
		{"and", domain.Filter{LogicOp: "AND", SubFilters: []domain.Filter{
			{Field: "Id", Operator: "=", Value: 5},
			{Field: "Name", Operator: "=", Value: "six"},
		}}, false},
		{"not", domain.Filter{LogicOp: "NOT", SubFilters: []domain.Filter{
			{Field: "Id", Operator: "=", Value: 1},
		}}, true},
		{"empty", domain.Filter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchFilter(row, tt.filter))
		})
	}
}

func TestApplyQueryOperations(t *testing.T) {
	rows := []domain.Row{
		{"Id": 3, "Name": "c"},
		{"Id": 1, "Name": "a"},
		{"Id": 2, "Name": "b"},
		{"Id": 4, "Name": "d"},
	}

	out := ApplyQueryOperations(rows, &domain.QueryOptions{
		Filters:       []domain.Filter{{Field: "Id", Operator: ">", Value: 1}},
		OrderBy:       "Id",
		Order:         "DESC",
		Offset:        1,
		Limit:         2,
		SelectColumns: []string{"Name"},
	})

	assert.Equal(t, []domain.Row{{"Name": "c"}, {"Name": "b"}}, out)
}

func TestApplyPagination(t *testing.T) {
	rows := []domain.Row{{"Id": 1}, {"Id": 2}, {"Id": 3}}

	assert.Len(t, ApplyPagination(rows, 0, 0), 3)
	assert.Len(t, ApplyPagination(rows, 1, 0), 2)
	assert.Len(t, ApplyPagination(rows, 5, 1), 0)
	assert.Equal(t, []domain.Row{{"Id": 2}}, ApplyPagination(rows, 1, 1))
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, CompareValues(nil, nil))
	assert.Equal(t, -1, CompareValues(nil, 1))
	assert.Equal(t, 1, CompareValues(int64(3), 2.5))
	assert.Equal(t, -1, CompareValues("10", "9"))
	assert.Equal(t, -1, CompareValues(false, true))
	assert.True(t, CompareEqual(int32(7), float64(7)))
	assert.False(t, CompareEqual(true, "true"))
}

func TestCompare_Kinds(t *testing.T) {
	// 2^53+1 is not representable as float64
	assert.Equal(t, 1, CompareValues(int64(9007199254740993), int64(9007199254740992)))
	assert.False(t, CompareEqual(int64(9007199254740993), int64(9007199254740992)))
	assert.True(t, CompareEqual(json.Number("42"), 42))
	assert.True(t, CompareEqual(json.Number("1.5"), float32(1.5)))

	assert.False(t, CompareEqual("1", 1))
	assert.Equal(t, -1, CompareValues(true, 1), "bool before number")
	assert.Equal(t, -1, CompareValues(1, "1"), "number before string")
	assert.Equal(t, -1, CompareValues("B", "a"), "ordinal, case sensitive")

	_, ok := ConvertToFloat64("3")
	assert.False(t, ok)

	assert.True(t, CompareEqual([]interface{}{"a", "b"}, []interface{}{"a", "b"}))
	assert.True(t, CompareIn(int64(2), []int{1, 2}))
	assert.False(t, CompareIn(2, "12"))
}

func TestCompareLike(t *testing.T) {
	tests := []struct {
		value, pattern string
		want           bool
	}{
		{"Hello", "H%", true},
		{"Hello", "%llo", true},
		{"Hello", "%l%l%", true},
		{"Hello", "h%", false},
		{"Hello", "H_llo", true},
		{"Hello", "H_lo", false},
		{"", "%", true},
		{"", "_", false},
		{"50% off", `50\% off`, true},
		{"50x off", `50\% off`, false},
		{"a_b", `a\_b`, true},
		{"axb", `a\_b`, false},
		{`C:\dir`, `C:\\%`, true},
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaab", "%a%a%a%a%a%a%a%a%c", false},
		{"日本語", "日_語", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareLike(tt.value, tt.pattern), "%q LIKE %q", tt.value, tt.pattern)
	}
	assert.False(t, CompareLike(5, "5"))
}

func TestApplyOrder_Nulls(t *testing.T) {
	rows := []domain.Row{{"Id": 1, "V": 2}, {"Id": 2}, {"Id": 3, "V": 1}}

	asc := ApplyOrder(rows, &domain.QueryOptions{OrderBy: "V"})
	assert.Equal(t, []interface{}{2, 3, 1}, ids(asc))

	desc := ApplyOrder(rows, &domain.QueryOptions{OrderBy: "V", Order: "desc"})
	assert.Equal(t, []interface{}{1, 3, 2}, ids(desc))

	assert.Equal(t, []interface{}{1, 2, 3}, ids(rows), "input is not reordered")
}

func ids(rows []domain.Row) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r["Id"]
	}
	return out
}

func TestPruneRows_KeepsType(t *testing.T) {
	rows := []domain.Row{{"Id": 1, "Name": "a", domain.RowTypeKey: "NS.Derived"}}
	columns := []string{"Name"}
	out := PruneRows(rows, columns)
	assert.Equal(t, []domain.Row{{"Name": "a", domain.RowTypeKey: "NS.Derived"}}, out)
	assert.Equal(t, []string{"Name"}, columns)
}
