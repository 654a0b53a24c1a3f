// Package httpapi serves the OData service over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/spf13/cast"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/config"
	"github.com/kasuganosora/odatacount/pkg/dataaccess"
	"github.com/kasuganosora/odatacount/pkg/monitor"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/security"
)

// Version reported by /healthz
const Version = "1.0.0"

// Server is the OData HTTP server
type Server struct {
	engine      *query.Engine
	manager     *dataaccess.Manager
	cfg         *config.Config
	logger      api.Logger
	metrics     *monitor.MetricsCollector
	auditLogger *security.AuditLogger
	mounts      map[string]http.Handler
	httpServer  *http.Server
}

// NewServer creates a new HTTP server. metrics and auditLogger may be nil.
func NewServer(engine *query.Engine, manager *dataaccess.Manager, cfg *config.Config, logger api.Logger,
	metrics *monitor.MetricsCollector, auditLogger *security.AuditLogger) *Server {
	if logger == nil {
		logger = api.NewNoOpLogger()
	}
	return &Server{
		engine:      engine,
		manager:     manager,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		auditLogger: auditLogger,
	}
}

// Mount serves h at path next to the OData routes
func (s *Server) Mount(path string, h http.Handler) {
	if s.mounts == nil {
		s.mounts = make(map[string]http.Handler)
	}
	s.mounts[path] = h
}

// Handler builds the routed handler with the middleware chain applied
func (s *Server) Handler() http.Handler {
	root := s.cfg.Server.ServiceRoot
	odata := NewODataHandler(s.engine, root, s.cfg.Query.MaxTop, s.logger, s.auditLogger)
	odata.metrics = s.metrics

	mux := http.NewServeMux()
	mux.Handle(root, odata)
	mux.Handle(root+"/", odata)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Version: Version}
		status := http.StatusOK
		if s.manager != nil {
			resp.DataSources = s.manager.HealthCheck(r.Context())
			for _, ok := range resp.DataSources {
				if !ok {
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
				}
			}
		}
		writeJSON(w, status, resp)
	})

	if s.auditLogger != nil {
		mux.HandleFunc("/audit", s.handleAudit)
	}

	for path, h := range s.mounts {
		mux.Handle(path, h)
	}

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		mux.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	// Recovery → RequestID → CORS → Logging → Metrics
	middlewares := []func(http.Handler) http.Handler{RecoveryMiddleware(s.logger), RequestIDMiddleware}
	if s.cfg.Server.EnableCORS {
		middlewares = append(middlewares, CORSMiddleware)
	}
	middlewares = append(middlewares, LoggingMiddleware(s.logger), MetricsMiddleware(s.metrics))
	return chain(mux, middlewares...)
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	addr := s.cfg.GetListenAddress()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  2 * s.cfg.Server.ReadTimeout,
	}

	s.logger.Info("[HTTP API] 启动 OData 服务: http://%s%s", addr, s.cfg.Server.ServiceRoot)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleAudit lists recent audit events. Query parameters trace_id, type,
// level (minimum), resource (path prefix) and limit narrow the result.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, api.NewError(api.ErrCodeMethodNotAllowed, "method "+r.Method+" not allowed", nil))
		return
	}
	params := r.URL.Query()
	q := security.AuditQuery{
		TraceID:  params.Get("trace_id"),
		Type:     security.AuditEventType(params.Get("type")),
		Resource: params.Get("resource"),
		Limit:    100,
	}
	if v := params.Get("level"); v != "" {
		level, err := security.ParseAuditLevel(v)
		if err != nil {
			writeError(w, api.NewError(api.ErrCodeInvalidParam, err.Error(), nil).WithTarget("level"))
			return
		}
		q.MinLevel = level
	}
	if v := params.Get("limit"); v != "" {
		limit, err := cast.ToIntE(v)
		if err != nil || limit < 0 {
			writeError(w, api.NewError(api.ErrCodeInvalidParam, "limit must be a non-negative integer", nil).WithTarget("limit"))
			return
		}
		q.Limit = limit
	}
	writeJSON(w, http.StatusOK, AuditResponse{Total: s.auditLogger.Total(), Events: s.auditLogger.Query(q)})
}
