// Package query materialises resolved OData paths: counts, collections and
// single resources, pushing filters down to storage where it can.
package query

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/monitor"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// Router resolves the datasource that stores an entity set
type Router interface {
	Route(entitySet string) (domain.CountableDataSource, error)
}

// Engine evaluates resolved paths against storage
type Engine struct {
	model   *edm.Model
	router  Router
	logger  api.Logger
	metrics *monitor.MetricsCollector
	timeout time.Duration

	// shareCounts makes concurrent identical counts share one evaluation
	shareCounts bool
	counts      singleflight.Group
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l api.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records counts and durations
func WithMetrics(m *monitor.MetricsCollector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTimeout bounds every evaluation; zero means no bound
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithSharedCounts toggles de-duplication of concurrent identical counts
func WithSharedCounts(enabled bool) Option {
	return func(e *Engine) { e.shareCounts = enabled }
}

// NewEngine creates an engine over model whose entity sets are stored behind router
func NewEngine(model *edm.Model, router Router, opts ...Option) *Engine {
	e := &Engine{
		model:       model,
		router:      router,
		logger:      api.NewNoOpLogger(),
		shareCounts: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the engine's model
func (e *Engine) Model() *edm.Model {
	return e.model
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return ctx, func() {}
}

func (e *Engine) begin() func() {
	if e.metrics == nil {
		return func() {}
	}
	e.metrics.StartQuery()
	return e.metrics.EndQuery
}
