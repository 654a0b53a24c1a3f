// Package badger stores tables in a Badger KV store.
// It implements domain.CountableDataSource.
package badger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	domain "github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// Options tunes the store. DataSourceConfig.Database names the data
// directory, the other fields come from DataSourceConfig.Options.
type Options struct {
	DataDir string `json:"-"`

	// InMemory keeps everything in memory; the default when no directory is set
	InMemory bool `json:"in_memory"`

	SyncWrites     bool  `json:"sync_writes"`
	ValueThreshold int64 `json:"value_threshold"`
	NumMemtables   int   `json:"num_memtables"`
	BaseTableSize  int64 `json:"base_table_size"`

	// Compression is none, snappy or zstd
	Compression string `json:"compression"`

	// Logger receives badger's own logs; nil silences them
	Logger badger.Logger `json:"-"`
}

// DefaultOptions returns the options used when the config sets none
func DefaultOptions(dataDir string) *Options {
	return &Options{
		DataDir:        dataDir,
		InMemory:       dataDir == "",
		ValueThreshold: 1 << 10,
		NumMemtables:   5,
		BaseTableSize:  2 << 20,
		Compression:    "snappy",
	}
}

// ParseOptions reads the badger options of a datasource config
func ParseOptions(cfg *domain.DataSourceConfig) (*Options, error) {
	opts := DefaultOptions(cfg.Database)
	if len(cfg.Options) == 0 {
		return opts, nil
	}
	data, err := json.Marshal(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, &domain.ErrInvalidConfig{ConfigKey: "options", Message: err.Error()}
	}
	if _, err := opts.compression(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) compression() (options.CompressionType, error) {
	switch strings.ToLower(o.Compression) {
	case "", "snappy":
		return options.Snappy, nil
	case "none":
		return options.None, nil
	case "zstd":
		return options.ZSTD, nil
	}
	return options.None, &domain.ErrInvalidConfig{
		ConfigKey: "options.compression",
		Message:   fmt.Sprintf("unknown compression %q (none, snappy, zstd)", o.Compression),
	}
}

// badgerOptions converts to badger.Options
func (o *Options) badgerOptions() (badger.Options, error) {
	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if o.DataDir == "" {
			return opts, &domain.ErrInvalidConfig{ConfigKey: "database", Message: "data directory is required unless in_memory is set"}
		}
		opts = badger.DefaultOptions(o.DataDir)
	}

	compression, err := o.compression()
	if err != nil {
		return opts, err
	}
	opts = opts.WithSyncWrites(o.SyncWrites).WithCompression(compression).WithLogger(o.Logger)
	if o.ValueThreshold > 0 {
		opts = opts.WithValueThreshold(o.ValueThreshold)
	}
	if o.NumMemtables > 0 {
		opts = opts.WithNumMemtables(o.NumMemtables)
	}
	if o.BaseTableSize > 0 {
		opts = opts.WithBaseTableSize(o.BaseTableSize)
	}
	return opts, nil
}
