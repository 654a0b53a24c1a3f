package sql

import (
	"database/sql"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// Dialect encapsulates database-engine-specific behavior.
type Dialect interface {
	// DriverName returns the database/sql driver name ("mysql", "postgres" or "sqlite")
	DriverName() string

	// BuildDSN constructs the driver-specific connection string
	BuildDSN(dsCfg *domain.DataSourceConfig, sqlCfg *SQLConfig) (string, error)

	// QuoteIdentifier wraps a table/column name in dialect-specific quoting
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for the n-th parameter (1-based)
	Placeholder(n int) string

	// GetTablesQuery returns SQL to list all user tables in the current database
	GetTablesQuery() string

	// GetTableInfoQuery returns SQL to get column metadata; accepts table name as parameter.
	// Result columns are column_name, column_type (or data_type), is_nullable and column_key.
	GetTableInfoQuery() string

	// MapColumnType converts a database column type to a domain type string
	MapColumnType(dbTypeName string, scanType *sql.ColumnType) string

	// ColumnDefinition returns the SQL type used to store a domain column
	ColumnDefinition(col domain.ColumnInfo) string

	// TruncateSQL returns the statement that empties a table
	TruncateSQL(quotedTable string) string

	// LikeEscapeClause returns the suffix declaring '\' as the LIKE escape, if the engine needs one
	LikeEscapeClause() string
}
