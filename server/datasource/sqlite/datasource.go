package sqlite

import (
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	sqlcommon "github.com/kasuganosora/odatacount/server/datasource/sql"
)

// SQLiteDataSource wraps SQLCommonDataSource with SQLite-specific dialect.
type SQLiteDataSource struct {
	*sqlcommon.SQLCommonDataSource
}

// NewSQLiteDataSource creates a new SQLite datasource.
func NewSQLiteDataSource(dsCfg *domain.DataSourceConfig, sqlCfg *sqlcommon.SQLConfig) (*SQLiteDataSource, error) {
	if isMemory(dsCfg) {
		// every connection of an in-memory database is a separate database;
		// pin one connection and never recycle it
		sqlCfg.MaxOpenConns = 1
		sqlCfg.MaxIdleConns = 1
		sqlCfg.ConnMaxLifetime = 0
		sqlCfg.ConnMaxIdleTime = 0
	}
	common := sqlcommon.NewSQLCommonDataSource(dsCfg, sqlCfg, &SQLiteDialect{})
	return &SQLiteDataSource{SQLCommonDataSource: common}, nil
}
