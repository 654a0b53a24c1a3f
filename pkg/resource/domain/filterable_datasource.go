package domain

import "context"

// FilterableDataSource is a backend that evaluates filters natively,
// avoiding a full table load into memory.
//
// Typical implementations:
//   - SQL backends translate the filter to a WHERE clause
//   - KV backends scan a key prefix and match rows as they stream
//
// Filter.SubFilters with LogicOp AND/OR nest arbitrarily.
type FilterableDataSource interface {
	DataSource

	// SupportsFiltering reports whether tableName can be filtered natively.
	// Returning false makes the caller filter in memory.
	SupportsFiltering(tableName string) bool

	// Filter returns matching rows.
	//
	//   - offset: rows to skip
	//   - limit: max rows to return, 0 means unlimited
	//
	// The returned total is the number of matching rows regardless of limit.
	//
	//	rows, total, err := ds.Filter(ctx, "users",
	//	    Filter{LogicOp: "AND", SubFilters: []Filter{
	//	        {Field: "age", Operator: ">", Value: 30},
	//	        {Field: "status", Operator: "=", Value: "active"},
	//	    }},
	//	    0, 10)
	Filter(ctx context.Context, tableName string, filter Filter, offset, limit int) ([]Row, int64, error)
}

// CountableDataSource is a backend that counts matching rows without materialising them
type CountableDataSource interface {
	FilterableDataSource

	// Count returns the number of rows of tableName matching filter.
	// An empty filter counts every row.
	Count(ctx context.Context, tableName string, filter Filter) (int64, error)
}
