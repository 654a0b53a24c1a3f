package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	domain "github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/resource/util"
)

const sourceType = string(domain.DataSourceTypeBadger)

// BadgerDataSource implements domain.CountableDataSource on a Badger store.
// Filters are matched while the row prefix streams, and an unfiltered
// count only walks keys.
type BadgerDataSource struct {
	mu     sync.RWMutex
	config *domain.DataSourceConfig
	opts   *Options
	db     *badger.DB

	tables map[string]*domain.TableInfo
}

// NewBadgerDataSource creates a datasource from cfg; nil gives a writable in-memory store
func NewBadgerDataSource(cfg *domain.DataSourceConfig) (*BadgerDataSource, error) {
	if cfg == nil {
		cfg = &domain.DataSourceConfig{Type: domain.DataSourceTypeBadger, Name: "badger", Writable: true}
	}
	opts, err := ParseOptions(cfg)
	if err != nil {
		return nil, err
	}
	return NewBadgerDataSourceWithOptions(cfg, opts), nil
}

// NewBadgerDataSourceWithOptions creates a datasource with explicit store options
func NewBadgerDataSourceWithOptions(cfg *domain.DataSourceConfig, opts *Options) *BadgerDataSource {
	return &BadgerDataSource{
		config: cfg,
		opts:   opts,
		tables: make(map[string]*domain.TableInfo),
	}
}

// Connect opens the store and loads the table metadata
func (ds *BadgerDataSource) Connect(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db != nil {
		return nil
	}

	opts, err := ds.opts.badgerOptions()
	if err != nil {
		return err
	}
	db, err := badger.Open(opts)
	if err != nil {
		return &domain.ErrConnectionFailed{DataSourceType: sourceType, Reason: err.Error(), Cause: err}
	}

	tables, err := loadTables(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("load tables: %w", err)
	}
	ds.db = db
	ds.tables = tables
	return nil
}

func loadTables(db *badger.DB) (map[string]*domain.TableInfo, error) {
	tables := make(map[string]*domain.TableInfo)
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 16, Prefix: []byte(tableTag)})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			name, ok := tableFromKey(it.Item().Key())
			if !ok {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				info, err := decodeTableInfo(val)
				if err != nil {
					return err
				}
				tables[name] = info
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return tables, err
}

// Close closes the store; an in-memory store loses its data
func (ds *BadgerDataSource) Close(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db == nil {
		return nil
	}
	err := ds.db.Close()
	ds.db = nil
	ds.tables = make(map[string]*domain.TableInfo)
	return err
}

func (ds *BadgerDataSource) IsConnected() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.db != nil
}

func (ds *BadgerDataSource) IsWritable() bool {
	return ds.config.Writable
}

func (ds *BadgerDataSource) GetConfig() *domain.DataSourceConfig {
	return ds.config
}

// table returns the open store and the metadata of tableName
func (ds *BadgerDataSource) table(tableName string) (*badger.DB, *domain.TableInfo, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.db == nil {
		return nil, nil, domain.NewErrNotConnected(sourceType)
	}
	info, ok := ds.tables[tableName]
	if !ok {
		return nil, nil, domain.NewErrTableNotFound(tableName)
	}
	return ds.db, info, nil
}

func (ds *BadgerDataSource) checkWritable(op string) error {
	if !ds.config.Writable {
		return domain.NewErrReadOnly(sourceType, op)
	}
	return nil
}

func (ds *BadgerDataSource) GetTables(ctx context.Context) ([]string, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.db == nil {
		return nil, domain.NewErrNotConnected(sourceType)
	}
	tables := make([]string, 0, len(ds.tables))
	for name := range ds.tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables, nil
}

func (ds *BadgerDataSource) GetTableInfo(ctx context.Context, tableName string) (*domain.TableInfo, error) {
	_, info, err := ds.table(tableName)
	if err != nil {
		return nil, err
	}
	return &domain.TableInfo{Name: info.Name, Columns: append([]domain.ColumnInfo(nil), info.Columns...)}, nil
}

// CreateTable persists the table metadata
func (ds *BadgerDataSource) CreateTable(ctx context.Context, tableInfo *domain.TableInfo) error {
	if err := ds.checkWritable("create table"); err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db == nil {
		return domain.NewErrNotConnected(sourceType)
	}
	if _, exists := ds.tables[tableInfo.Name]; exists {
		return domain.NewErrTableAlreadyExists(tableInfo.Name)
	}

	data, err := encodeTableInfo(tableInfo)
	if err != nil {
		return fmt.Errorf("encode table info: %w", err)
	}
	if err := ds.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tableKey(tableInfo.Name), data)
	}); err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	ds.tables[tableInfo.Name] = tableInfo
	return nil
}

// DropTable removes the rows and the metadata of a table
func (ds *BadgerDataSource) DropTable(ctx context.Context, tableName string) error {
	if err := ds.checkWritable("drop table"); err != nil {
		return err
	}
	db, _, err := ds.table(tableName)
	if err != nil {
		return err
	}
	if err := deletePrefix(db, rowPrefix(tableName)); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tableKey(tableName))
	}); err != nil {
		return fmt.Errorf("delete table: %w", err)
	}

	ds.mu.Lock()
	delete(ds.tables, tableName)
	ds.mu.Unlock()
	return nil
}

func (ds *BadgerDataSource) TruncateTable(ctx context.Context, tableName string) error {
	if err := ds.checkWritable("truncate table"); err != nil {
		return err
	}
	db, _, err := ds.table(tableName)
	if err != nil {
		return err
	}
	return deletePrefix(db, rowPrefix(tableName))
}

// deletePrefix deletes every key under prefix in one write batch
func deletePrefix(db *badger.DB, prefix []byte) error {
	var keys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Insert writes rows under their primary key; keyless rows get a random key.
// Without options.Replace an existing key fails the whole batch.
func (ds *BadgerDataSource) Insert(ctx context.Context, tableName string, rows []domain.Row, options *domain.InsertOptions) (int64, error) {
	if err := ds.checkWritable("insert"); err != nil {
		return 0, err
	}
	db, info, err := ds.table(tableName)
	if err != nil {
		return 0, err
	}
	replace := options != nil && options.Replace

	var inserted int64
	err = db.Update(func(txn *badger.Txn) error {
		for _, row := range rows {
			pk, ok := info.PrimaryKeyValue(row)
			if !ok {
				pk = uuid.NewString()
			}
			key := rowKey(tableName, pk)
			if !replace {
				_, err := txn.Get(key)
				if err == nil {
					return &domain.ErrDuplicateKey{TableName: tableName, Key: pk}
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			data, err := encodeRow(row)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// scan streams every row of a table until fn returns false
func scan(ctx context.Context, db *badger.DB, info *domain.TableInfo, fn func(domain.Row) bool) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = rowPrefix(info.Name)
		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if n%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++
			var row domain.Row
			if err := it.Item().Value(func(val []byte) error {
				var err error
				row, err = decodeRow(val, info)
				return err
			}); err != nil {
				return err
			}
			if !fn(row) {
				return nil
			}
		}
		return nil
	})
}

// sortByPrimaryKey restores key order; badger keys sort as strings, so 10 precedes 2
func sortByPrimaryKey(info *domain.TableInfo, rows []domain.Row) {
	pk := info.GetPrimaryKey()
	if len(pk) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, col := range pk {
			if c := util.CompareValues(rows[i][col.Name], rows[j][col.Name]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// SupportsFiltering reports whether the table exists
func (ds *BadgerDataSource) SupportsFiltering(tableName string) bool {
	_, _, err := ds.table(tableName)
	return err == nil
}

// Filter returns a page of the matching rows in key order and the total match count
func (ds *BadgerDataSource) Filter(ctx context.Context, tableName string, filter domain.Filter, offset, limit int) ([]domain.Row, int64, error) {
	db, info, err := ds.table(tableName)
	if err != nil {
		return nil, 0, err
	}

	var matched []domain.Row
	err = scan(ctx, db, info, func(row domain.Row) bool {
		if util.MatchFilter(row, filter) {
			matched = append(matched, row)
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	sortByPrimaryKey(info, matched)
	return util.ApplyPagination(matched, offset, limit), int64(len(matched)), nil
}

// Count counts matching rows; an empty filter never decodes a value
func (ds *BadgerDataSource) Count(ctx context.Context, tableName string, filter domain.Filter) (int64, error) {
	db, info, err := ds.table(tableName)
	if err != nil {
		return 0, err
	}

	var n int64
	if filter.IsEmpty() {
		err = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: rowPrefix(tableName)})
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				n++
			}
			return nil
		})
		return n, err
	}

	err = scan(ctx, db, info, func(row domain.Row) bool {
		if util.MatchFilter(row, filter) {
			n++
		}
		return true
	})
	return n, err
}

// Query reads rows with filtering, ordering, pagination and column pruning
func (ds *BadgerDataSource) Query(ctx context.Context, tableName string, options *domain.QueryOptions) (*domain.QueryResult, error) {
	db, info, err := ds.table(tableName)
	if err != nil {
		return nil, err
	}

	var rows []domain.Row
	if err := scan(ctx, db, info, func(row domain.Row) bool {
		rows = append(rows, row)
		return true
	}); err != nil {
		return nil, err
	}
	sortByPrimaryKey(info, rows)

	total := int64(len(rows))
	if options != nil {
		rows = util.ApplyFilters(rows, options)
		total = int64(len(rows))
		rows = util.ApplyQueryOperations(rows, &domain.QueryOptions{
			OrderBy:       options.OrderBy,
			Order:         options.Order,
			Limit:         options.Limit,
			Offset:        options.Offset,
			SelectColumns: options.SelectColumns,
		})
	}
	return &domain.QueryResult{
		Columns: append([]domain.ColumnInfo(nil), info.Columns...),
		Rows:    rows,
		Total:   total,
	}, nil
}
