package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	failed := &ErrConnectionFailed{DataSourceType: "mysql", Reason: "ping: " + cause.Error(), Cause: cause}

	assert.ErrorIs(t, fmt.Errorf("connect: %w", failed), ErrUnavailable)
	assert.ErrorIs(t, failed, cause)
	assert.ErrorIs(t, NewErrNotConnected("badger"), ErrUnavailable)
	assert.NotErrorIs(t, NewErrTableNotFound("Orders"), ErrUnavailable)
}

func TestPrimaryKeyValue(t *testing.T) {
	info := &TableInfo{Name: "Lines", Columns: []ColumnInfo{
		{Name: "OrderId", Type: ColumnTypeInt, Primary: true},
		{Name: "Line", Type: ColumnTypeInt, Primary: true},
		{Name: "Note", Type: ColumnTypeString, Nullable: true},
	}}

	key, ok := info.PrimaryKeyValue(Row{"OrderId": int64(7), "Line": 2.0})
	assert.True(t, ok)
	assert.Equal(t, "7|2", key)

	_, ok = info.PrimaryKeyValue(Row{"OrderId": 7})
	assert.False(t, ok)

	assert.Equal(t, "1.5", KeyString(1.5))
	assert.Equal(t, "abc", KeyString("abc"))
	assert.True(t, info.HasColumn("Note"))
	assert.False(t, info.HasColumn("note"))
}

func TestAnd(t *testing.T) {
	a := Filter{Field: "A", Operator: "=", Value: 1}
	b := Filter{Field: "B", Operator: "IS NULL"}

	assert.True(t, And().IsEmpty())
	assert.Equal(t, a, And(Filter{}, a))
	assert.Equal(t, Filter{LogicOp: "AND", SubFilters: []Filter{a, b}}, And(a, Filter{}, b))
}
