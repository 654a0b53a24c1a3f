package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// DefaultDataSourceName 默认数据源名称, 未路由的实体集都落在这里
const DefaultDataSourceName = "default"

// healthTimeout 单个数据源健康检查的上限
const healthTimeout = 2 * time.Second

var (
	ErrDataSourceExists   = errors.New("data source already registered")
	ErrDataSourceNotFound = errors.New("data source not found")
)

// pinger 能直接探测后端连通性的数据源 (SQL)
type pinger interface {
	Ping(ctx context.Context) error
}

// Manager 按名称持有实体集背后的数据源
type Manager struct {
	mu          sync.RWMutex
	dataSources map[string]domain.CountableDataSource
}

// NewManager 创建管理器, def 非空时注册为默认数据源
func NewManager(def domain.CountableDataSource) *Manager {
	m := &Manager{dataSources: make(map[string]domain.CountableDataSource)}
	if def != nil {
		m.dataSources[DefaultDataSourceName] = def
	}
	return m
}

// RegisterDataSource 注册命名数据源
func (m *Manager) RegisterDataSource(name string, ds domain.CountableDataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.dataSources[name]; exists {
		return fmt.Errorf("%w: %s", ErrDataSourceExists, name)
	}
	m.dataSources[name] = ds
	return nil
}

// GetDataSource 按名称获取数据源
func (m *Manager) GetDataSource(name string) (domain.CountableDataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.dataSources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataSourceNotFound, name)
	}
	return ds, nil
}

// Names 已注册的数据源名称 (排序)
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.dataSources))
	for name := range m.dataSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) snapshot() map[string]domain.CountableDataSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.CountableDataSource, len(m.dataSources))
	for k, v := range m.dataSources {
		out[k] = v
	}
	return out
}

// ConnectAll 并发连接所有未连接的数据源; 第一个失败会取消其余的连接
func (m *Manager) ConnectAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, ds := range m.snapshot() {
		if ds.IsConnected() {
			continue
		}
		g.Go(func() error {
			if err := ds.Connect(ctx); err != nil {
				return fmt.Errorf("connect data source %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// CloseAll 关闭所有已连接的数据源, 返回合并后的错误
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, name := range m.Names() {
		ds, err := m.GetDataSource(name)
		if err != nil || !ds.IsConnected() {
			continue
		}
		if err := ds.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close data source %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// HealthCheck 并发检查每个数据源: 已连接, 且 Ping (SQL) 或列出表成功
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	sources := m.snapshot()

	var mu sync.Mutex
	results := make(map[string]bool, len(sources))
	var g errgroup.Group
	for name, ds := range sources {
		g.Go(func() error {
			ok := probe(ctx, ds) == nil
			mu.Lock()
			results[name] = ok
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func probe(ctx context.Context, ds domain.CountableDataSource) error {
	if !ds.IsConnected() {
		return domain.NewErrNotConnected(string(ds.GetConfig().Type))
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if p, ok := ds.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := ds.GetTables(ctx)
	return err
}
