package memory

import (
	"context"
	"testing"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeopleSource(t *testing.T) *MemoryDataSource {
	t.Helper()
	ctx := context.Background()
	ds := NewMemoryDataSource(nil)
	require.NoError(t, ds.Connect(ctx))
	require.NoError(t, ds.CreateTable(ctx, &domain.TableInfo{
		Name: "people",
		Columns: []domain.ColumnInfo{
			{Name: "id", Type: domain.ColumnTypeInt, Primary: true},
			{Name: "name", Type: domain.ColumnTypeString},
			{Name: "age", Type: domain.ColumnTypeInt, Nullable: true},
		},
	}))
	n, err := ds.Insert(ctx, "people", []domain.Row{
		{"id": 1, "name": "Alice", "age": 30},
		{"id": 2, "name": "Bob", "age": 25},
		{"id": 3, "name": "Carol", "age": nil},
		{"id": 4, "name": "Dave", "age": 41},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	return ds
}

func TestMemoryDataSource_Count(t *testing.T) {
	ds := newPeopleSource(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter domain.Filter
		want   int64
	}{
		{"empty filter", domain.Filter{}, 4},
		{"greater than", domain.Filter{Field: "age", Operator: ">", Value: 26}, 2},
		{"null age never compares", domain.Filter{Field: "age", Operator: "<", Value: 100}, 3},
		{"is null", domain.Filter{Field: "age", Operator: "IS NULL"}, 1},
		{"or", domain.Filter{LogicOp: "OR", SubFilters: []domain.Filter{
			{Field: "name", Operator: "=", Value: "Bob"},
			{Field: "id", Operator: "=", Value: 4},
		}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ds.Count(ctx, "people", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestMemoryDataSource_FilterPaginates(t *testing.T) {
	ds := newPeopleSource(t)

	rows, total, err := ds.Filter(context.Background(), "people",
		domain.Filter{Field: "id", Operator: ">", Value: 1}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Carol", rows[0]["name"])
}

func TestMemoryDataSource_InsertDuplicate(t *testing.T) {
	ds := newPeopleSource(t)
	ctx := context.Background()

	_, err := ds.Insert(ctx, "people", []domain.Row{{"id": 1, "name": "Again"}}, nil)
	var dup *domain.ErrDuplicateKey
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "1", dup.Key)

	_, err = ds.Insert(ctx, "people", []domain.Row{{"id": 1, "name": "Again"}}, &domain.InsertOptions{Replace: true})
	require.NoError(t, err)

	rows, _, err := ds.Filter(ctx, "people", domain.Filter{Field: "id", Operator: "=", Value: 1}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Again", rows[0]["name"])
}

func TestMemoryDataSource_Errors(t *testing.T) {
	ctx := context.Background()
	ds := NewMemoryDataSource(nil)

	_, err := ds.Count(ctx, "people", domain.Filter{})
	var notConnected *domain.ErrNotConnected
	assert.ErrorAs(t, err, &notConnected)

	require.NoError(t, ds.Connect(ctx))
	_, err = ds.Count(ctx, "missing", domain.Filter{})
	var notFound *domain.ErrTableNotFound
	assert.ErrorAs(t, err, &notFound)

	ro := NewMemoryDataSource(&domain.DataSourceConfig{Type: domain.DataSourceTypeMemory, Name: "ro"})
	require.NoError(t, ro.Connect(ctx))
	err = ro.CreateTable(ctx, &domain.TableInfo{Name: "t"})
	var readOnly *domain.ErrReadOnly
	assert.ErrorAs(t, err, &readOnly)
}

func TestMemoryDataSource_Query(t *testing.T) {
	ds := newPeopleSource(t)

	result, err := ds.Query(context.Background(), "people", &domain.QueryOptions{
		Filters:       []domain.Filter{{Field: "age", Operator: "IS NOT NULL"}},
		OrderBy:       "age",
		Order:         "DESC",
		Limit:         2,
		SelectColumns: []string{"name"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, domain.Row{"name": "Dave"}, result.Rows[0])
	assert.Equal(t, domain.Row{"name": "Alice"}, result.Rows[1])
}
