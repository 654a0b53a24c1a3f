package main

import (
	"context"
	"fmt"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/config"
	"github.com/kasuganosora/odatacount/pkg/dataaccess"
	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/fixture"
	"github.com/kasuganosora/odatacount/pkg/monitor"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/reliability"
	"github.com/kasuganosora/odatacount/pkg/resource/seed"
	"github.com/kasuganosora/odatacount/pkg/security"
	"github.com/kasuganosora/odatacount/server/datasource"
)

// app 组装好的服务组件
type app struct {
	cfg     *config.Config
	logger  api.Logger
	model   *edm.Model
	manager *dataaccess.Manager
	router  *dataaccess.Router
	engine  *query.Engine
	metrics *monitor.MetricsCollector
	audit   *security.AuditLogger
}

// newApp 打开数据源, 写入种子数据并创建查询引擎
func newApp(ctx context.Context, cfg *config.Config, logger api.Logger) (*app, error) {
	model, err := fixture.Model()
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	def, err := datasource.Open(&cfg.Storage.Default, logger)
	if err != nil {
		return nil, fmt.Errorf("open default data source: %w", err)
	}
	manager := dataaccess.NewManager(def)
	for name, sourceCfg := range cfg.Storage.Sources {
		sourceCfg := sourceCfg
		ds, err := datasource.Open(&sourceCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open data source %s: %w", name, err)
		}
		if err := manager.RegisterDataSource(name, ds); err != nil {
			return nil, err
		}
	}
	policy := &reliability.RetryPolicy{
		MaxRetries:    cfg.Storage.ConnectRetries,
		RetryInterval: cfg.Storage.ConnectRetryInterval,
		BackoffFactor: 2,
		OnError: func(attempt int, err error) {
			logger.Warn("连接数据源失败 (第 %d 次): %v", attempt, err)
		},
	}
	if err := reliability.ExecuteWithRetry(ctx, policy, manager.ConnectAll); err != nil {
		manager.CloseAll(ctx)
		return nil, err
	}

	router := dataaccess.NewRouter(manager, cfg.Storage.Routes)
	if err := router.Validate(); err != nil {
		manager.CloseAll(ctx)
		return nil, err
	}
	sets := make([]string, 0, len(model.EntitySets()))
	for _, set := range model.EntitySets() {
		sets = append(sets, set.Name)
	}
	for _, line := range router.Describe(sets) {
		logger.Debug("实体集路由: %s", line)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		model:   model,
		manager: manager,
		router:  router,
	}
	if err := a.seed(ctx); err != nil {
		manager.CloseAll(ctx)
		return nil, err
	}

	opts := []query.Option{
		query.WithLogger(logger),
		query.WithTimeout(cfg.Query.Timeout),
		query.WithSharedCounts(cfg.Query.CountCache),
	}
	if cfg.Metrics.Enabled {
		a.metrics = monitor.NewMetricsCollector()
		opts = append(opts, query.WithMetrics(a.metrics))
	}
	if cfg.Audit.Enabled {
		a.audit = security.NewAuditLogger(cfg.Audit.MaxEntries)
	}
	a.engine = query.NewEngine(model, router, opts...)
	return a, nil
}

func (a *app) seed(ctx context.Context) error {
	data := fixture.Data()
	if a.cfg.Seed.File != "" {
		loaded, err := seed.LoadFile(a.model, a.cfg.Seed.File)
		if err != nil {
			return err
		}
		data = loaded
	}
	n, err := seed.Apply(ctx, a.model, a.router, data, a.cfg.Seed.Reset)
	if err != nil {
		return err
	}
	a.logger.Info("写入种子数据: %d 行", n)
	return nil
}

func (a *app) close(ctx context.Context) error {
	return a.manager.CloseAll(ctx)
}
