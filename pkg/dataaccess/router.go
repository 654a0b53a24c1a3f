package dataaccess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// Router 把实体集映射到数据源. 路由表在创建后只读.
type Router struct {
	manager *Manager
	routes  map[string]string // 实体集 -> 数据源名称
}

// NewRouter 创建路由器; routes 中未列出的实体集使用默认数据源
func NewRouter(manager *Manager, routes map[string]string) *Router {
	r := &Router{manager: manager, routes: make(map[string]string, len(routes))}
	for set, source := range routes {
		r.routes[set] = source
	}
	return r
}

// Route 返回实体集的数据源
func (r *Router) Route(entitySet string) (domain.CountableDataSource, error) {
	if r.manager == nil {
		return nil, fmt.Errorf("entity set %s: %w", entitySet, ErrDataSourceNotFound)
	}
	ds, err := r.manager.GetDataSource(r.sourceOf(entitySet))
	if err != nil {
		return nil, fmt.Errorf("entity set %s: %w", entitySet, err)
	}
	return ds, nil
}

func (r *Router) sourceOf(entitySet string) string {
	if source, ok := r.routes[entitySet]; ok {
		return source
	}
	return DefaultDataSourceName
}

// Validate 检查每条路由都指向已注册的数据源
func (r *Router) Validate() error {
	var missing []string
	for set, source := range r.routes {
		if r.manager == nil {
			missing = append(missing, set+" -> "+source)
			continue
		}
		if _, err := r.manager.GetDataSource(source); err != nil {
			missing = append(missing, set+" -> "+source)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrDataSourceNotFound, strings.Join(missing, ", "))
}

// Describe 返回 "实体集 -> 数据源" 的排序列表, 用于启动日志
func (r *Router) Describe(entitySets []string) []string {
	out := make([]string, 0, len(entitySets))
	for _, set := range entitySets {
		out = append(out, set+" -> "+r.sourceOf(set))
	}
	sort.Strings(out)
	return out
}
