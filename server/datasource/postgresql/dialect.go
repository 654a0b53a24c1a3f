package postgresql

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	sqlcommon "github.com/kasuganosora/odatacount/server/datasource/sql"
)

const defaultPort = 5432

// PostgreSQLDialect implements sql.Dialect for PostgreSQL.
type PostgreSQLDialect struct{}

func (d *PostgreSQLDialect) DriverName() string { return "postgres" }

// BuildDSN 生成 lib/pq 的 key=value 连接串, 空参数省略
func (d *PostgreSQLDialect) BuildDSN(dsCfg *domain.DataSourceConfig, sqlCfg *sqlcommon.SQLConfig) (string, error) {
	port := dsCfg.Port
	if port <= 0 {
		port = defaultPort
	}

	params := [][2]string{
		{"host", dsCfg.Host},
		{"port", strconv.Itoa(port)},
		{"user", dsCfg.Username},
		{"password", dsCfg.Password},
		{"dbname", dsCfg.Database},
		{"sslmode", sqlCfg.SSLMode},
		{"search_path", sqlCfg.Schema},
		{"sslcert", sqlCfg.SSLCert},
		{"sslkey", sqlCfg.SSLKey},
		{"sslrootcert", sqlCfg.SSLRootCert},
	}
	if sqlCfg.ConnectTimeout > 0 {
		params = append(params, [2]string{"connect_timeout", strconv.Itoa(sqlCfg.ConnectTimeout)})
	}

	var sb strings.Builder
	for _, p := range params {
		if p[1] == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p[0])
		sb.WriteByte('=')
		sb.WriteString(quoteParam(p[1]))
	}
	return sb.String(), nil
}

// quoteParam quotes a value containing spaces or quotes, libpq style
func quoteParam(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (d *PostgreSQLDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgreSQLDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (d *PostgreSQLDialect) GetTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'"
}

// GetTableInfoQuery joins the primary key constraint to fill column_key
func (d *PostgreSQLDialect) GetTableInfoQuery() string {
	return `SELECT c.column_name, c.data_type, c.is_nullable,
       CASE WHEN kcu.column_name IS NOT NULL THEN 'PRI' ELSE '' END AS column_key
FROM information_schema.columns c
LEFT JOIN information_schema.table_constraints tc
  ON tc.table_schema = c.table_schema AND tc.table_name = c.table_name AND tc.constraint_type = 'PRIMARY KEY'
LEFT JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema AND kcu.column_name = c.column_name
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`
}

var columnTypes = map[string]string{
	"smallint": domain.ColumnTypeInt, "integer": domain.ColumnTypeInt, "bigint": domain.ColumnTypeInt,
	"int2": domain.ColumnTypeInt, "int4": domain.ColumnTypeInt, "int8": domain.ColumnTypeInt,
	"serial": domain.ColumnTypeInt, "bigserial": domain.ColumnTypeInt, "smallserial": domain.ColumnTypeInt,
	"real": domain.ColumnTypeFloat, "float4": domain.ColumnTypeFloat, "float8": domain.ColumnTypeFloat,
	"double precision": domain.ColumnTypeFloat, "numeric": domain.ColumnTypeFloat, "decimal": domain.ColumnTypeFloat,
	"boolean": domain.ColumnTypeBool, "bool": domain.ColumnTypeBool,
	"json": domain.ColumnTypeJSON, "jsonb": domain.ColumnTypeJSON,
}

// MapColumnType 把 PostgreSQL 类型映射为 domain 列类型, 数组和未知类型按字符串处理
func (d *PostgreSQLDialect) MapColumnType(dbTypeName string, _ *sql.ColumnType) string {
	t := strings.ToLower(strings.TrimSpace(dbTypeName))
	if strings.HasSuffix(t, "[]") || t == "array" {
		return domain.ColumnTypeString
	}
	if ct, ok := columnTypes[t]; ok {
		return ct
	}
	return domain.ColumnTypeString
}

func (d *PostgreSQLDialect) ColumnDefinition(col domain.ColumnInfo) string {
	switch col.Type {
	case domain.ColumnTypeInt:
		return "BIGINT"
	case domain.ColumnTypeFloat:
		return "DOUBLE PRECISION"
	case domain.ColumnTypeBool:
		return "BOOLEAN"
	}
	return "TEXT"
}

func (d *PostgreSQLDialect) TruncateSQL(quotedTable string) string {
	return "TRUNCATE TABLE " + quotedTable
}

// LikeEscapeClause is empty: backslash is the default LIKE escape
func (d *PostgreSQLDialect) LikeEscapeClause() string { return "" }
