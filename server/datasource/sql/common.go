package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// SQLCommonDataSource implements domain.CountableDataSource on database/sql.
// MySQL, PostgreSQL and SQLite embed it and only differ in their Dialect.
type SQLCommonDataSource struct {
	mu      sync.RWMutex
	config  *domain.DataSourceConfig
	sqlCfg  *SQLConfig
	dialect Dialect
	db      *sql.DB

	// declared schemas; the database cannot tell json columns from text
	tables map[string]*domain.TableInfo
}

// NewSQLCommonDataSource creates a datasource; nothing is opened until Connect.
func NewSQLCommonDataSource(dsCfg *domain.DataSourceConfig, sqlCfg *SQLConfig, dialect Dialect) *SQLCommonDataSource {
	return &SQLCommonDataSource{
		config:  dsCfg,
		sqlCfg:  sqlCfg,
		dialect: dialect,
		tables:  make(map[string]*domain.TableInfo),
	}
}

func (ds *SQLCommonDataSource) connFailed(step string, err error) error {
	return &domain.ErrConnectionFailed{DataSourceType: ds.dialect.DriverName(), Reason: step + ": " + err.Error(), Cause: err}
}

// Connect opens the pool and pings the server within ConnectTimeout.
func (ds *SQLCommonDataSource) Connect(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db != nil {
		return nil
	}

	dsn, err := ds.dialect.BuildDSN(ds.config, ds.sqlCfg)
	if err != nil {
		return ds.connFailed("build DSN", err)
	}
	db, err := sql.Open(ds.dialect.DriverName(), dsn)
	if err != nil {
		return ds.connFailed("open", err)
	}
	db.SetMaxOpenConns(ds.sqlCfg.MaxOpenConns)
	db.SetMaxIdleConns(ds.sqlCfg.MaxIdleConns)
	db.SetConnMaxLifetime(ds.sqlCfg.connMaxLifetime())
	db.SetConnMaxIdleTime(ds.sqlCfg.connMaxIdleTime())

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(ds.sqlCfg.ConnectTimeout)*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return ds.connFailed("ping", err)
	}

	ds.db = db
	return nil
}

// Close closes the pool. Declared schemas are kept for a later Connect.
func (ds *SQLCommonDataSource) Close(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db == nil {
		return nil
	}
	err := ds.db.Close()
	ds.db = nil
	return err
}

func (ds *SQLCommonDataSource) IsConnected() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.db != nil
}

// Ping checks the server is still reachable; used by the health check.
func (ds *SQLCommonDataSource) Ping(ctx context.Context) error {
	db, err := ds.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (ds *SQLCommonDataSource) IsWritable() bool {
	return ds.config.Writable
}

func (ds *SQLCommonDataSource) GetConfig() *domain.DataSourceConfig {
	return ds.config
}

// conn returns the open pool or ErrNotConnected
func (ds *SQLCommonDataSource) conn() (*sql.DB, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.db == nil {
		return nil, domain.NewErrNotConnected(ds.dialect.DriverName())
	}
	return ds.db, nil
}

func (ds *SQLCommonDataSource) checkWritable(op string) error {
	if !ds.config.Writable {
		return domain.NewErrReadOnly(ds.dialect.DriverName(), op)
	}
	return nil
}

// RegisterTable declares the schema of a table that already exists in the
// database, so json columns are decoded on read.
func (ds *SQLCommonDataSource) RegisterTable(info *domain.TableInfo) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.tables[info.Name] = info
}

func (ds *SQLCommonDataSource) declared(tableName string) *domain.TableInfo {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.tables[tableName]
}

// GetTables lists the user tables of the current database or schema
func (ds *SQLCommonDataSource) GetTables(ctx context.Context) ([]string, error) {
	db, err := ds.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, ds.dialect.GetTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("get tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetTableInfo returns column metadata.
// A declared schema wins over what the database reports.
func (ds *SQLCommonDataSource) GetTableInfo(ctx context.Context, tableName string) (*domain.TableInfo, error) {
	db, err := ds.conn()
	if err != nil {
		return nil, err
	}
	if info := ds.declared(tableName); info != nil {
		return &domain.TableInfo{Name: info.Name, Columns: append([]domain.ColumnInfo(nil), info.Columns...)}, nil
	}

	rows, err := db.QueryContext(ctx, ds.dialect.GetTableInfoQuery(), tableName)
	if err != nil {
		return nil, fmt.Errorf("get table info: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get column names: %w", err)
	}
	var columns []domain.ColumnInfo
	for rows.Next() {
		values := make([]interface{}, len(names))
		targets := make([]interface{}, len(names))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		meta := make(map[string]string, len(names))
		for i, n := range names {
			if v := normalizeValue(values[i]); v != nil {
				meta[strings.ToLower(n)] = fmt.Sprint(v)
			}
		}
		columns = append(columns, ds.columnFromMeta(meta))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, domain.NewErrTableNotFound(tableName)
	}
	return &domain.TableInfo{Name: tableName, Columns: columns}, nil
}

// columnFromMeta reads one information_schema style row
// (column_name, column_type or data_type, is_nullable, column_key)
func (ds *SQLCommonDataSource) columnFromMeta(meta map[string]string) domain.ColumnInfo {
	typ := meta["column_type"]
	if typ == "" {
		typ = meta["data_type"]
	}
	return domain.ColumnInfo{
		Name:     meta["column_name"],
		Type:     ds.dialect.MapColumnType(typ, nil),
		Nullable: strings.EqualFold(meta["is_nullable"], "YES"),
		Primary:  strings.EqualFold(meta["column_key"], "PRI"),
	}
}

// orderByKey orders by the declared primary key so pages are stable
func (ds *SQLCommonDataSource) orderByKey(tableName string) string {
	if info := ds.declared(tableName); info != nil {
		if pk := info.GetPrimaryKey(); len(pk) > 0 {
			return pk[0].Name
		}
	}
	return ""
}

func (ds *SQLCommonDataSource) selectRows(ctx context.Context, db *sql.DB, tableName string, opts *domain.QueryOptions) ([]domain.Row, []domain.ColumnInfo, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = ds.orderByKey(tableName)
	}
	query, params, err := BuildSelectSQL(ds.dialect, tableName, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", tableName, err)
	}
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", tableName, err)
	}
	defer rows.Close()
	return ScanRows(rows, ds.dialect, ds.declared(tableName))
}

// Query reads rows; Total counts the filtered rows before Limit and Offset.
func (ds *SQLCommonDataSource) Query(ctx context.Context, tableName string, options *domain.QueryOptions) (*domain.QueryResult, error) {
	db, err := ds.conn()
	if err != nil {
		return nil, err
	}
	opts := &domain.QueryOptions{}
	if options != nil {
		*opts = *options
	}

	total, err := ds.count(ctx, db, tableName, opts.Filters)
	if err != nil {
		return nil, err
	}
	data, columns, err := ds.selectRows(ctx, db, tableName, opts)
	if err != nil {
		return nil, err
	}
	return &domain.QueryResult{Columns: columns, Rows: data, Total: total}, nil
}

// Insert writes rows in one transaction. With options.Replace, a stored row
// sharing the primary key is deleted first.
func (ds *SQLCommonDataSource) Insert(ctx context.Context, tableName string, rows []domain.Row, options *domain.InsertOptions) (int64, error) {
	db, err := ds.conn()
	if err != nil {
		return 0, err
	}
	if err := ds.checkWritable("INSERT"); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	info := ds.declared(tableName)
	encoded := make([]domain.Row, len(rows))
	for i, row := range rows {
		out := make(domain.Row, len(row))
		for col, v := range row {
			var colType string
			if info != nil {
				if c, ok := info.GetColumn(col); ok {
					colType = c.Type
				}
			}
			ev, err := encodeValue(v, colType)
			if err != nil {
				return 0, fmt.Errorf("encode %s.%s: %w", tableName, col, err)
			}
			out[col] = ev
		}
		encoded[i] = out
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if options != nil && options.Replace && info != nil {
		if pk := info.GetPrimaryKey(); len(pk) > 0 {
			for _, row := range encoded {
				keys := make([]domain.Filter, len(pk))
				for i, col := range pk {
					keys[i] = domain.Filter{Field: col.Name, Operator: "=", Value: row[col.Name]}
				}
				query, params, err := BuildDeleteSQL(ds.dialect, tableName, keys)
				if err != nil {
					return 0, fmt.Errorf("replace: %w", err)
				}
				if _, err := tx.ExecContext(ctx, query, params...); err != nil {
					return 0, fmt.Errorf("replace: %w", err)
				}
			}
		}
	}

	query, params, _ := BuildInsertSQL(ds.dialect, tableName, encoded)
	result, err := tx.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return result.RowsAffected()
}

// CreateTable creates the table and declares its schema.
func (ds *SQLCommonDataSource) CreateTable(ctx context.Context, tableInfo *domain.TableInfo) error {
	db, err := ds.conn()
	if err != nil {
		return err
	}
	if err := ds.checkWritable("CREATE TABLE"); err != nil {
		return err
	}
	if ds.declared(tableInfo.Name) != nil {
		return domain.NewErrTableAlreadyExists(tableInfo.Name)
	}
	if _, err := db.ExecContext(ctx, BuildCreateTableSQL(ds.dialect, tableInfo)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	ds.RegisterTable(tableInfo)
	return nil
}

func (ds *SQLCommonDataSource) DropTable(ctx context.Context, tableName string) error {
	db, err := ds.conn()
	if err != nil {
		return err
	}
	if err := ds.checkWritable("DROP TABLE"); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ds.dialect.QuoteIdentifier(tableName)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}

	ds.mu.Lock()
	delete(ds.tables, tableName)
	ds.mu.Unlock()
	return nil
}

func (ds *SQLCommonDataSource) TruncateTable(ctx context.Context, tableName string) error {
	db, err := ds.conn()
	if err != nil {
		return err
	}
	if err := ds.checkWritable("TRUNCATE TABLE"); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, ds.dialect.TruncateSQL(ds.dialect.QuoteIdentifier(tableName)))
	return err
}

// SupportsFiltering is true for every table: filters always become a WHERE clause
func (ds *SQLCommonDataSource) SupportsFiltering(string) bool {
	return true
}

func filterList(filter domain.Filter) []domain.Filter {
	if filter.IsEmpty() {
		return nil
	}
	return []domain.Filter{filter}
}

// Filter pages through the matching rows in primary key order; total ignores offset and limit.
func (ds *SQLCommonDataSource) Filter(ctx context.Context, tableName string, filter domain.Filter, offset, limit int) ([]domain.Row, int64, error) {
	db, err := ds.conn()
	if err != nil {
		return nil, 0, err
	}
	filters := filterList(filter)
	total, err := ds.count(ctx, db, tableName, filters)
	if err != nil {
		return nil, 0, err
	}
	data, _, err := ds.selectRows(ctx, db, tableName, &domain.QueryOptions{Filters: filters, Offset: offset, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	return data, total, nil
}

// Count runs SELECT COUNT(*) with the filter as WHERE clause.
func (ds *SQLCommonDataSource) Count(ctx context.Context, tableName string, filter domain.Filter) (int64, error) {
	db, err := ds.conn()
	if err != nil {
		return 0, err
	}
	return ds.count(ctx, db, tableName, filterList(filter))
}

func (ds *SQLCommonDataSource) count(ctx context.Context, db *sql.DB, tableName string, filters []domain.Filter) (int64, error) {
	query, params, err := BuildCountSQL(ds.dialect, tableName, filters)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", tableName, err)
	}
	var n int64
	if err := db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", tableName, err)
	}
	return n, nil
}
