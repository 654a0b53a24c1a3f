// Package datasource opens the configured storage backend.
package datasource

import (
	"fmt"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/resource/badger"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/resource/memory"
	"github.com/kasuganosora/odatacount/server/datasource/mysql"
	"github.com/kasuganosora/odatacount/server/datasource/postgresql"
	sqlcommon "github.com/kasuganosora/odatacount/server/datasource/sql"
	"github.com/kasuganosora/odatacount/server/datasource/sqlite"
)

// Open creates an unconnected datasource for cfg.Type. logger receives the
// backend's own logs where it has any; nil silences them.
func Open(cfg *domain.DataSourceConfig, logger api.Logger) (domain.CountableDataSource, error) {
	if cfg == nil {
		return memory.NewMemoryDataSource(nil), nil
	}

	switch cfg.Type {
	case domain.DataSourceTypeMemory, "":
		return memory.NewMemoryDataSource(cfg), nil
	case domain.DataSourceTypeBadger:
		opts, err := badger.ParseOptions(cfg)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			opts.Logger = api.NewFormatLogger(logger, "[badger] ")
		}
		return badger.NewBadgerDataSourceWithOptions(cfg, opts), nil
	}

	sqlCfg, err := sqlcommon.ParseSQLConfig(cfg)
	if err != nil {
		return nil, &domain.ErrInvalidConfig{ConfigKey: "options", Message: err.Error()}
	}

	switch cfg.Type {
	case domain.DataSourceTypeMySQL:
		return mysql.NewMySQLDataSource(cfg, sqlCfg)
	case domain.DataSourceTypePostgreSQL:
		return postgresql.NewPostgreSQLDataSource(cfg, sqlCfg)
	case domain.DataSourceTypeSQLite:
		return sqlite.NewSQLiteDataSource(cfg, sqlCfg)
	default:
		return nil, &domain.ErrInvalidConfig{ConfigKey: "type", Message: fmt.Sprintf("unknown data source type %q", cfg.Type)}
	}
}
