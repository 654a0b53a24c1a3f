package sqlite

import (
	"database/sql"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	sqlcommon "github.com/kasuganosora/odatacount/server/datasource/sql"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers "sqlite"
)

// SQLiteDialect implements sql.Dialect for SQLite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string { return "sqlite" }

// BuildDSN uses Database as the file path; empty or ":memory:" opens a private in-memory database.
func (d *SQLiteDialect) BuildDSN(dsCfg *domain.DataSourceConfig, sqlCfg *sqlcommon.SQLConfig) (string, error) {
	if isMemory(dsCfg) {
		return ":memory:", nil
	}
	return "file:" + dsCfg.Database + "?_pragma=busy_timeout(5000)", nil
}

func isMemory(dsCfg *domain.DataSourceConfig) bool {
	return dsCfg.Database == "" || dsCfg.Database == ":memory:"
}

func (d *SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLiteDialect) Placeholder(n int) string {
	return "?"
}

func (d *SQLiteDialect) GetTablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (d *SQLiteDialect) GetTableInfoQuery() string {
	return `SELECT name AS column_name, type AS column_type,
       CASE WHEN "notnull" = 0 THEN 'YES' ELSE 'NO' END AS is_nullable,
       CASE WHEN pk > 0 THEN 'PRI' ELSE '' END AS column_key
FROM pragma_table_info(?)
ORDER BY cid`
}

// MapColumnType follows SQLite type affinity rules
func (d *SQLiteDialect) MapColumnType(dbTypeName string, scanType *sql.ColumnType) string {
	t := strings.ToUpper(dbTypeName)
	switch {
	case strings.Contains(t, "BOOL"):
		return domain.ColumnTypeBool
	case strings.Contains(t, "INT"):
		return domain.ColumnTypeInt
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return domain.ColumnTypeString
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return domain.ColumnTypeFloat
	default:
		return domain.ColumnTypeString
	}
}

func (d *SQLiteDialect) ColumnDefinition(col domain.ColumnInfo) string {
	switch col.Type {
	case domain.ColumnTypeInt:
		return "INTEGER"
	case domain.ColumnTypeFloat:
		return "REAL"
	case domain.ColumnTypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// TruncateSQL: SQLite has no TRUNCATE
func (d *SQLiteDialect) TruncateSQL(quotedTable string) string {
	return "DELETE FROM " + quotedTable
}

func (d *SQLiteDialect) LikeEscapeClause() string { return ` ESCAPE '\'` }
