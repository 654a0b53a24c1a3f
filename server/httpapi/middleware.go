package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/monitor"
)

type contextKey string

const ctxKeyRequestID contextKey = "request_id"

const (
	headerRequestID    = "X-Request-ID"
	headerODataVersion = "OData-Version"
	odataVersion       = "4.0"
)

// GetRequestIDFromContext returns the request id assigned by RequestIDMiddleware
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// RecoveryMiddleware recovers from panics and returns a 500 error
func RecoveryMiddleware(logger api.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = api.NewNoOpLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					apiErr := api.NewError(api.ErrCodeInternal, "internal server error", nil)
					logger.Error("[HTTP API] panic recovered: %v\n%s", p, strings.Join(apiErr.Stack, "\n"))
					writeError(w, apiErr)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, OData-Version, OData-MaxVersion, "+headerRequestID)
		w.Header().Set("Access-Control-Expose-Headers", "OData-Version, "+headerRequestID)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(logger api.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = api.NewNoOpLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := wrapWriter(w)
			next.ServeHTTP(wrapped, r)

			logger.Info("[HTTP API] %s %s %s %d %s", GetRequestIDFromContext(r.Context()),
				r.Method, r.URL.RequestURI(), wrapped.statusCode, time.Since(start))
		})
	}
}

// MetricsMiddleware records request counts and durations per request kind
func MetricsMiddleware(metrics *monitor.MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapWriter(w)
			next.ServeHTTP(wrapped, r)
			metrics.RecordRequest(r.Method, requestKind(r.URL.Path), wrapped.statusCode, time.Since(start))
		})
	}
}

func requestKind(path string) string {
	switch {
	case strings.HasSuffix(path, "/$count"):
		return "count"
	case strings.HasSuffix(path, "/$metadata"):
		return "metadata"
	}
	return "resource"
}

// statusWriter wraps http.ResponseWriter to capture status code
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func wrapWriter(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// chain applies middlewares so that the first one is outermost
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json;odata.metadata=minimal")
	w.Header().Set(headerODataVersion, odataVersion)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes err in the OData error format
func writeError(w http.ResponseWriter, err *api.Error) {
	if err.Code == api.ErrCodeMethodNotAllowed {
		w.Header().Set("Allow", "GET, HEAD")
	}
	writeJSON(w, err.Code.HTTPStatus(), ErrorResponse{Error: ErrorBody{
		Code:    string(err.Code),
		Message: api.GetErrorMessage(err),
		Target:  err.Target,
	}})
}
