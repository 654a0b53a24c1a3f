package domain

import "context"

// DataSource is a table-oriented storage backend
type DataSource interface {
	// Connect opens the backend
	Connect(ctx context.Context) error

	// Close releases the backend
	Close(ctx context.Context) error

	// IsConnected reports connection state
	IsConnected() bool

	// IsWritable reports whether Insert/CreateTable are allowed
	IsWritable() bool

	// GetConfig returns the backend configuration
	GetConfig() *DataSourceConfig

	// GetTables lists table names
	GetTables(ctx context.Context) ([]string, error)

	// GetTableInfo returns table metadata
	GetTableInfo(ctx context.Context, tableName string) (*TableInfo, error)

	// Query reads rows
	Query(ctx context.Context, tableName string, options *QueryOptions) (*QueryResult, error)

	// Insert writes rows
	Insert(ctx context.Context, tableName string, rows []Row, options *InsertOptions) (int64, error)

	// CreateTable creates a table
	CreateTable(ctx context.Context, tableInfo *TableInfo) error

	// DropTable removes a table
	DropTable(ctx context.Context, tableName string) error

	// TruncateTable removes all rows of a table
	TruncateTable(ctx context.Context, tableName string) error
}
