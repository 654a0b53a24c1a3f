package mysql

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	sqlcommon "github.com/kasuganosora/odatacount/server/datasource/sql"
)

func TestMySQLDialect_Basics(t *testing.T) {
	d := &MySQLDialect{}
	assert.Equal(t, "mysql", d.DriverName())
	assert.Equal(t, "?", d.Placeholder(3))
	assert.Equal(t, "`DollarCountEntities`", d.QuoteIdentifier("DollarCountEntities"))
	assert.Equal(t, "`my``table`", d.QuoteIdentifier("my`table"))
	assert.Equal(t, "TRUNCATE TABLE `t`", d.TruncateSQL("`t`"))
	assert.Empty(t, d.LikeEscapeClause())
}

func TestMySQLDialect_MapColumnType(t *testing.T) {
	d := &MySQLDialect{}
	tests := []struct {
		input, want string
	}{
		{"bigint", domain.ColumnTypeInt},
		{"int(11) unsigned", domain.ColumnTypeInt},
		{"tinyint", domain.ColumnTypeInt},
		{"tinyint(1)", domain.ColumnTypeBool},
		{"BOOLEAN", domain.ColumnTypeBool},
		{"double", domain.ColumnTypeFloat},
		{"decimal(10,2)", domain.ColumnTypeFloat},
		{"varchar(255)", domain.ColumnTypeString},
		{"longtext", domain.ColumnTypeString},
		{"datetime", domain.ColumnTypeString},
		{"enum('a','b')", domain.ColumnTypeString},
		{"json", domain.ColumnTypeJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.MapColumnType(tt.input, nil), tt.input)
	}
}

func TestMySQLDialect_BuildDSN(t *testing.T) {
	d := &MySQLDialect{}
	dsCfg := &domain.DataSourceConfig{
		Host:     "db.local",
		Username: "odata",
		Password: "secret",
		Database: "dollarcount",
	}
	sqlCfg, err := sqlcommon.ParseSQLConfig(dsCfg)
	require.NoError(t, err)

	dsn, err := d.BuildDSN(dsCfg, sqlCfg)
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "odata", parsed.User)
	assert.Equal(t, "secret", parsed.Passwd)
	assert.Equal(t, "db.local:3306", parsed.Addr)
	assert.Equal(t, "dollarcount", parsed.DBName)
	assert.Equal(t, "utf8mb4_bin", parsed.Collation)
	assert.True(t, parsed.ParseTime)
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "collation=utf8mb4_bin")

	sqlCfg.Charset = "latin1"
	sqlCfg.Collation = "latin1_bin"
	dsn, err = d.BuildDSN(dsCfg, sqlCfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "charset=latin1")
	parsed, err = mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "latin1_bin", parsed.Collation)
}

func TestTLSConfigName(t *testing.T) {
	tests := map[string]string{
		"":            "false",
		"disable":     "false",
		"require":     "true",
		"REQUIRED":    "true",
		"preferred":   "skip-verify",
		"custom-ca":   "custom-ca",
		"verify-full": "true",
	}
	for in, want := range tests {
		assert.Equal(t, want, tlsConfigName(in), in)
	}
}

func TestMySQLDialect_ColumnDefinition(t *testing.T) {
	d := &MySQLDialect{}
	tests := []struct {
		col  domain.ColumnInfo
		want string
	}{
		{domain.ColumnInfo{Type: domain.ColumnTypeInt}, "BIGINT"},
		{domain.ColumnInfo{Type: domain.ColumnTypeFloat}, "DOUBLE"},
		{domain.ColumnInfo{Type: domain.ColumnTypeBool}, "BOOLEAN"},
		{domain.ColumnInfo{Type: domain.ColumnTypeString}, "TEXT"},
		{domain.ColumnInfo{Type: domain.ColumnTypeString, Primary: true}, "VARCHAR(255)"},
		{domain.ColumnInfo{Type: domain.ColumnTypeJSON}, "LONGTEXT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.ColumnDefinition(tt.col), "type %s", tt.col.Type)
	}
}
