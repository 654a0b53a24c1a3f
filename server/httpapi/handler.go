package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/monitor"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/security"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

// ODataHandler serves the resources below the service root
type ODataHandler struct {
	engine      *query.Engine
	serviceRoot string
	maxTop      int
	logger      api.Logger
	metrics     *monitor.MetricsCollector
	auditLogger *security.AuditLogger
}

// NewODataHandler creates a handler for the service rooted at serviceRoot (e.g. "/odata")
func NewODataHandler(engine *query.Engine, serviceRoot string, maxTop int, logger api.Logger, auditLogger *security.AuditLogger) *ODataHandler {
	if logger == nil {
		logger = api.NewNoOpLogger()
	}
	return &ODataHandler{
		engine:      engine,
		serviceRoot: strings.TrimRight(serviceRoot, "/"),
		maxTop:      maxTop,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ServeHTTP handles GET and HEAD on the service document, $metadata and resource paths
func (h *ODataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := h.serve(w, r)
	h.logRequest(r, status, time.Since(start))
}

func (h *ODataHandler) serve(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return h.fail(w, r, api.NewError(api.ErrCodeMethodNotAllowed, "method "+r.Method+" is not allowed", nil))
	}

	rel := strings.Trim(strings.TrimPrefix(r.URL.EscapedPath(), h.serviceRoot), "/")
	switch rel {
	case "":
		return h.serveServiceDocument(w, r)
	case "$metadata":
		return h.serveMetadata(w, r)
	}

	p, err := uri.Parse(h.engine.Model(), rel, r.URL.Query())
	if err != nil {
		return h.fail(w, r, err)
	}
	opts, err := query.ParseOptions(r.URL.Query(), h.maxTop)
	if err != nil {
		return h.fail(w, r, err)
	}

	switch {
	case p.IsCount:
		n, err := h.engine.Count(r.Context(), p, opts)
		if err != nil {
			return h.fail(w, r, err)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set(headerODataVersion, odataVersion)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strconv.FormatInt(n, 10)))
		return http.StatusOK

	case p.IsCollection():
		res, err := h.engine.Collection(r.Context(), p, opts)
		if err != nil {
			return h.fail(w, r, err)
		}
		body := map[string]interface{}{
			"@odata.context": h.contextURL(r, p),
			"value":          res.Value,
		}
		if res.Count != nil {
			body["@odata.count"] = *res.Count
		}
		writeJSON(w, http.StatusOK, body)
		return http.StatusOK

	default:
		res, err := h.engine.Single(r.Context(), p, opts)
		if err != nil {
			return h.fail(w, r, err)
		}
		if res.Value == nil {
			w.Header().Set(headerODataVersion, odataVersion)
			w.WriteHeader(http.StatusNoContent)
			return http.StatusNoContent
		}
		// entities and complex values are objects; primitives are wrapped
		body, ok := res.Value.(map[string]interface{})
		if !ok {
			body = map[string]interface{}{"value": res.Value}
		}
		body["@odata.context"] = h.contextURL(r, p)
		writeJSON(w, http.StatusOK, body)
		return http.StatusOK
	}
}

func (h *ODataHandler) serveServiceDocument(w http.ResponseWriter, r *http.Request) int {
	m := h.engine.Model()
	doc := ServiceDocument{Context: h.baseURL(r) + "/$metadata"}
	for _, set := range m.EntitySets() {
		doc.Value = append(doc.Value, ServiceDocumentEntry{Name: set.Name, Kind: "EntitySet", URL: set.Name})
	}
	for _, f := range m.Functions() {
		if !f.Bound {
			doc.Value = append(doc.Value, ServiceDocumentEntry{Name: f.Name, Kind: "FunctionImport", URL: f.Name})
		}
	}
	writeJSON(w, http.StatusOK, doc)
	return http.StatusOK
}

func (h *ODataHandler) serveMetadata(w http.ResponseWriter, r *http.Request) int {
	var buf bytes.Buffer
	if err := edm.WriteCSDL(&buf, h.engine.Model()); err != nil {
		return h.fail(w, r, err)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set(headerODataVersion, odataVersion)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
	return http.StatusOK
}

func (h *ODataHandler) fail(w http.ResponseWriter, r *http.Request, err error) int {
	apiErr := query.ClassifyError(err)
	if h.metrics != nil {
		h.metrics.RecordError(string(apiErr.Code))
	}
	if apiErr.Code == api.ErrCodeInternal {
		h.logger.Error("[HTTP API] %s %s: %v", GetRequestIDFromContext(r.Context()), r.URL.RequestURI(), err)
		if h.auditLogger != nil {
			h.auditLogger.LogError(GetRequestIDFromContext(r.Context()), r.URL.Path, "request failed", err)
		}
	}
	writeError(w, apiErr)
	return apiErr.Code.HTTPStatus()
}

// contextURL builds @odata.context for the resource addressed by p
func (h *ODataHandler) contextURL(r *http.Request, p *uri.Path) string {
	base := h.baseURL(r) + "/$metadata#"
	elem := p.Target.Elem()
	if p.EntitySet != nil && elem.Kind == edm.KindEntity {
		fragment := p.EntitySet.Name
		if elem.Name != p.EntitySet.EntityType.QualifiedName() {
			fragment += "/" + elem.Name
		}
		if !p.Target.Collection {
			fragment += "/$entity"
		}
		return base + fragment
	}
	return base + p.Target.String()
}

func (h *ODataHandler) baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + h.serviceRoot
}

func (h *ODataHandler) logRequest(r *http.Request, status int, duration time.Duration) {
	if h.auditLogger != nil {
		h.auditLogger.LogAPIRequest(GetRequestIDFromContext(r.Context()), getClientIP(r), r.Method, r.URL.Path, r.URL.RawQuery, status, duration)
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// RemoteAddr is "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
