package mysql

import (
	"database/sql"
	"net"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	sqlcommon "github.com/kasuganosora/odatacount/server/datasource/sql"
)

const defaultPort = 3306

// MySQLDialect implements sql.Dialect for MySQL.
type MySQLDialect struct{}

func (d *MySQLDialect) DriverName() string { return "mysql" }

// BuildDSN 使用驱动自带的 Config 生成 DSN
func (d *MySQLDialect) BuildDSN(dsCfg *domain.DataSourceConfig, sqlCfg *sqlcommon.SQLConfig) (string, error) {
	port := dsCfg.Port
	if port <= 0 {
		port = defaultPort
	}

	cfg := mysqldriver.NewConfig()
	cfg.User = dsCfg.Username
	cfg.Passwd = dsCfg.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(dsCfg.Host, strconv.Itoa(port))
	cfg.DBName = dsCfg.Database
	cfg.AllowNativePasswords = true
	// $filter 的字符串比较区分大小写, 默认 collation 为 utf8mb4_bin
	cfg.Collation = sqlCfg.Collation
	if sqlCfg.Charset != "" {
		if err := cfg.Apply(mysqldriver.Charset(sqlCfg.Charset, sqlCfg.Collation)); err != nil {
			return "", err
		}
	}
	cfg.ParseTime = sqlCfg.ParseTime != nil && *sqlCfg.ParseTime
	cfg.Timeout = time.Duration(sqlCfg.ConnectTimeout) * time.Second
	cfg.TLSConfig = tlsConfigName(sqlCfg.SSLMode)

	return cfg.FormatDSN(), nil
}

// tlsConfigName maps libpq-style sslmode values onto the driver's tls parameter
func tlsConfigName(mode string) string {
	switch strings.ToLower(mode) {
	case "", "false", "disable":
		return "false"
	case "true", "require", "required", "verify-full":
		return "true"
	case "preferred", "skip-verify":
		return "skip-verify"
	}
	// a name registered with mysql.RegisterTLSConfig
	return mode
}

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQLDialect) Placeholder(int) string { return "?" }

func (d *MySQLDialect) GetTablesQuery() string {
	return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'"
}

func (d *MySQLDialect) GetTableInfoQuery() string {
	return `SELECT COLUMN_NAME AS column_name, COLUMN_TYPE AS column_type, IS_NULLABLE AS is_nullable, COLUMN_KEY AS column_key
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`
}

var columnTypes = map[string]string{
	"tinyint": domain.ColumnTypeInt, "smallint": domain.ColumnTypeInt, "mediumint": domain.ColumnTypeInt,
	"int": domain.ColumnTypeInt, "integer": domain.ColumnTypeInt, "bigint": domain.ColumnTypeInt, "year": domain.ColumnTypeInt,
	"float": domain.ColumnTypeFloat, "double": domain.ColumnTypeFloat, "real": domain.ColumnTypeFloat,
	"decimal": domain.ColumnTypeFloat, "numeric": domain.ColumnTypeFloat,
	"bool": domain.ColumnTypeBool, "boolean": domain.ColumnTypeBool, "bit": domain.ColumnTypeBool,
	"json": domain.ColumnTypeJSON,
}

// MapColumnType 把 MySQL 列类型映射为 domain 列类型.
// 日期和时间列按字符串读取, 由 edm 层解析.
func (d *MySQLDialect) MapColumnType(dbTypeName string, _ *sql.ColumnType) string {
	t := strings.ToLower(strings.TrimSpace(dbTypeName))
	if t == "tinyint(1)" {
		return domain.ColumnTypeBool
	}
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	if ct, ok := columnTypes[t]; ok {
		return ct
	}
	return domain.ColumnTypeString
}

func (d *MySQLDialect) ColumnDefinition(col domain.ColumnInfo) string {
	switch col.Type {
	case domain.ColumnTypeInt:
		return "BIGINT"
	case domain.ColumnTypeFloat:
		return "DOUBLE"
	case domain.ColumnTypeBool:
		return "BOOLEAN"
	case domain.ColumnTypeJSON:
		return "LONGTEXT"
	}
	// TEXT cannot be indexed without a prefix length
	if col.Primary {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

func (d *MySQLDialect) TruncateSQL(quotedTable string) string {
	return "TRUNCATE TABLE " + quotedTable
}

// LikeEscapeClause is empty: backslash is MySQL's default LIKE escape
func (d *MySQLDialect) LikeEscapeClause() string { return "" }
