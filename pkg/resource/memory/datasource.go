// Package memory provides an in-process, map-backed datasource.
package memory

import (
	"context"
	"sync"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// table one stored table: metadata, rows in insertion order and a primary key index
type table struct {
	mu    sync.RWMutex
	info  *domain.TableInfo
	rows  []domain.Row
	index map[string]int
}

// MemoryDataSource implements domain.CountableDataSource over Go maps
type MemoryDataSource struct {
	config    *domain.DataSourceConfig
	connected bool
	mu        sync.RWMutex
	tables    map[string]*table
}

// NewMemoryDataSource creates a new in-memory datasource
func NewMemoryDataSource(config *domain.DataSourceConfig) *MemoryDataSource {
	if config == nil {
		config = &domain.DataSourceConfig{
			Type:     domain.DataSourceTypeMemory,
			Name:     "memory",
			Writable: true,
		}
	}
	return &MemoryDataSource{
		config: config,
		tables: make(map[string]*table),
	}
}

// Connect marks the datasource usable
func (m *MemoryDataSource) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close marks the datasource closed; data is kept so a reconnect sees it
func (m *MemoryDataSource) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns connection status
func (m *MemoryDataSource) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// IsWritable returns whether inserts are allowed
func (m *MemoryDataSource) IsWritable() bool {
	return m.config.Writable
}

// GetConfig returns the datasource configuration
func (m *MemoryDataSource) GetConfig() *domain.DataSourceConfig {
	return m.config
}

// getTable returns a connected table or a typed error
func (m *MemoryDataSource) getTable(tableName string) (*table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return nil, domain.NewErrNotConnected(string(domain.DataSourceTypeMemory))
	}
	t, ok := m.tables[tableName]
	if !ok {
		return nil, domain.NewErrTableNotFound(tableName)
	}
	return t, nil
}
