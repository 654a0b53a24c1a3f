package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/odatacount/pkg/config"
	"github.com/kasuganosora/odatacount/pkg/dataaccess"
	"github.com/kasuganosora/odatacount/pkg/fixture"
	"github.com/kasuganosora/odatacount/pkg/monitor"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/resource/memory"
	"github.com/kasuganosora/odatacount/pkg/resource/seed"
	"github.com/kasuganosora/odatacount/pkg/security"
)

// testEnv holds shared test infrastructure
type testEnv struct {
	server      *httptest.Server
	metrics     *monitor.MetricsCollector
	auditLogger *security.AuditLogger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	ds := memory.NewMemoryDataSource(nil)
	require.NoError(t, ds.Connect(ctx))
	manager := dataaccess.NewManager(ds)
	router := dataaccess.NewRouter(manager, nil)

	m := fixture.MustModel()
	_, err := seed.Apply(ctx, m, router, fixture.Data(), false)
	require.NoError(t, err)

	metrics := monitor.NewMetricsCollector()
	auditLogger := security.NewAuditLogger(100)
	engine := query.NewEngine(m, router, query.WithMetrics(metrics))

	cfg := config.DefaultConfig()
	cfg.Query.MaxTop = 50
	s := NewServer(engine, manager, cfg, nil, metrics, auditLogger)

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)
	return &testEnv{server: server, metrics: metrics, auditLogger: auditLogger}
}

func (env *testEnv) get(t *testing.T, path string, q url.Values) (*http.Response, string) {
	t.Helper()
	target := env.server.URL + "/odata/" + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestCountEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		path   string
		filter string
		want   string
	}{
		{"DollarCountEntities/$count", "", "10"},
		{"DollarCountEntities/$count", "Id gt 7", "3"},
		{"DollarCountEntities/DollarCount.DerivedDollarCountEntity/$count", "", "5"},
		{"DollarCountEntities(5)/StringCollectionProp/$count", "", "5"},
		{"DollarCountEntities(5)/StringCollectionProp/$count", "$it eq '2'", "1"},
		{"DollarCountEntities(5)/StringCollectionProp/$count", "$it gt null", "0"},
		{"DollarCountEntities(5)/EnumCollectionProp/$count", "$it has DollarCount.DollarColor'Blue'", "2"},
		{"DollarCountEntities(5)/TimeSpanCollectionProp/$count", "$it gt duration'PT2S'", "3"},
		{"DollarCountEntities(5)/ComplexCollectionProp/$count", "IntProp lt 3", "2"},
		{"DollarCountEntities(5)/EntityCollectionProp/$count", "", "4"},
		{"DollarCountEntities(10)/EntityCollectionProp/DollarCount.DerivedDollarCountEntity/$count", "", "4"},
		{"UnboundFunctionReturnsPrimitveCollection()/$count", "$it ge 4", "3"},
		{"UnboundFunctionReturnsEntityCollectionWithParameter(p1=2)/$count", "", "2"},
		{"UnboundFunctionReturnsEntityCollection()(4)/StringCollectionProp/$count", "", "4"},
		{"DollarCountEntities/Default.BoundFunctionReturnsEnumCollection()/$count", "", "4"},
		{"DollarCountEntities(4)/Default.BoundFunctionReturnsStringCollection()/$count", "", "4"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"?"+tt.filter, func(t *testing.T) {
			q := url.Values{}
			if tt.filter != "" {
				q.Set("$filter", tt.filter)
			}
			resp, body := env.get(t, tt.path, q)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)
			assert.Equal(t, tt.want, body)
			assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.Equal(t, "4.0", resp.Header.Get("OData-Version"))
		})
	}
}

func TestCountEndpoint_IgnoresPagingOptions(t *testing.T) {
	env := setupTestEnv(t)
	resp, body := env.get(t, "DollarCountEntities/$count", url.Values{"$top": {"2"}, "$skip": {"1"}, "$orderby": {"Id desc"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10", body)
}

func TestErrorResponses(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		path   string
		q      url.Values
		status int
		code   string
		target string
	}{
		{"not countable", "DollarCountEntities(1)/DollarCountNotAllowedCollectionProp/$count", nil, http.StatusBadRequest, "NOT_COUNTABLE", ""},
		{"not countable inline", "DollarCountEntities(5)/DollarCountNotAllowedCollectionProp", url.Values{"$count": {"true"}}, http.StatusBadRequest, "NOT_COUNTABLE", ""},
		{"unknown set", "Nope/$count", nil, http.StatusNotFound, "NOT_FOUND", ""},
		{"unknown property", "DollarCountEntities(1)/Nope/$count", nil, http.StatusNotFound, "NOT_FOUND", ""},
		{"missing entity", "DollarCountEntities(42)/StringCollectionProp/$count", nil, http.StatusNotFound, "NOT_FOUND", ""},
		{"count of single entity", "DollarCountEntities(1)/$count", nil, http.StatusBadRequest, "BAD_REQUEST", ""},
		{"key after non-composable function", "UnboundFunctionReturnsPrimitveCollection()(1)", nil, http.StatusBadRequest, "BAD_REQUEST", ""},
		{"bad filter", "DollarCountEntities/$count", url.Values{"$filter": {"Id eq"}}, http.StatusBadRequest, "INVALID_FILTER", "$filter"},
		{"bad count option", "DollarCountEntities", url.Values{"$count": {"maybe"}}, http.StatusBadRequest, "INVALID_PARAM", ""},
		{"top over limit", "DollarCountEntities", url.Values{"$top": {"51"}}, http.StatusBadRequest, "INVALID_PARAM", ""},
		{"unsupported option", "DollarCountEntities", url.Values{"$expand": {"EntityCollectionProp"}}, http.StatusNotImplemented, "NOT_SUPPORTED", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, tt.path, tt.q)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			assert.Equal(t, "4.0", resp.Header.Get("OData-Version"))

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(body), &errResp))
			assert.Equal(t, tt.code, errResp.Error.Code)
			assert.NotEmpty(t, errResp.Error.Message)
			assert.Equal(t, tt.target, errResp.Error.Target)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Post(env.server.URL+"/odata/DollarCountEntities", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestCollectionEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.get(t, "DollarCountEntities", url.Values{
		"$count":   {"true"},
		"$top":     {"2"},
		"$orderby": {"Id desc"},
		"$select":  {"Id"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var doc struct {
		Context string                   `json:"@odata.context"`
		Count   int64                    `json:"@odata.count"`
		Value   []map[string]interface{} `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.True(t, strings.HasSuffix(doc.Context, "/odata/$metadata#DollarCountEntities"), doc.Context)
	assert.Equal(t, int64(10), doc.Count)
	require.Len(t, doc.Value, 2)
	assert.Equal(t, float64(10), doc.Value[0]["Id"])
	assert.Equal(t, "#"+fixture.DerivedEntityType, doc.Value[0]["@odata.type"])

	_, body = env.get(t, "DollarCountEntities(2)/StringCollectionProp", nil)
	assert.JSONEq(t, `{"@odata.context": "`+env.server.URL+`/odata/$metadata#Collection(Edm.String)", "value": ["1", "2"]}`, body)
}

func TestSingleEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.get(t, "DollarCountEntities(6)/DollarCount.DerivedDollarCountEntity", url.Values{"$select": {"Id,DerivedProp"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{
		"@odata.context": "`+env.server.URL+`/odata/$metadata#DollarCountEntities/DollarCount.DerivedDollarCountEntity/$entity",
		"Id": 6,
		"DerivedProp": "Derived6"
	}`, body)

	resp, body = env.get(t, "DollarCountEntities(1)", url.Values{"$select": {"Id"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"@odata.context": "`+env.server.URL+`/odata/$metadata#DollarCountEntities/$entity", "Id": 1}`, body)
}

func TestServiceDocumentAndMetadata(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.get(t, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc ServiceDocument
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Contains(t, doc.Value, ServiceDocumentEntry{Name: fixture.EntitySet, Kind: "EntitySet", URL: fixture.EntitySet})
	assert.Contains(t, doc.Value, ServiceDocumentEntry{
		Name: "UnboundFunctionReturnsEntityCollection",
		Kind: "FunctionImport",
		URL:  "UnboundFunctionReturnsEntityCollection",
	})

	resp, body = env.get(t, "$metadata", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `Name="DollarCountEntities"`)
	assert.Contains(t, body, `Name="DerivedDollarCountEntity"`)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var healthResp HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&healthResp))
	assert.Equal(t, "ok", healthResp.Status)
	assert.Equal(t, map[string]bool{dataaccess.DefaultDataSourceName: true}, healthResp.DataSources)
}

func TestRequestIDAndAudit(t *testing.T) {
	env := setupTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/odata/DollarCountEntities/$count", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-1", resp.Header.Get("X-Request-ID"))

	// the event is recorded after the response is written
	var events []*security.AuditEvent
	require.Eventually(t, func() bool {
		events = env.auditLogger.Query(security.AuditQuery{TraceID: "trace-1"})
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, security.EventTypeAPIRequest, events[0].EventType)
	assert.True(t, events[0].Success)

	// a fresh id is assigned when none is sent
	resp, _ = env.get(t, "DollarCountEntities/$count", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.get(t, "DollarCountEntities/$count", nil)
	env.get(t, "Nope/$count", nil)

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "odata_requests_total")
	assert.Contains(t, string(body), `kind="count"`)
	assert.Contains(t, string(body), `odata_errors_total{code="NOT_FOUND"} 1`)
	assert.Contains(t, string(body), `odata_counts_total{mode="pushdown"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/odata/DollarCountEntities", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL"`)
}

func TestAuditEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	env.get(t, "DollarCountEntities/$count", nil)
	env.get(t, "Nope/$count", nil)
	require.Eventually(t, func() bool { return env.auditLogger.Total() == 2 }, time.Second, 5*time.Millisecond)

	fetch := func(query string) (int, AuditResponse) {
		resp, err := http.Get(env.server.URL + "/audit?" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body AuditResponse
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		}
		return resp.StatusCode, body
	}

	status, body := fetch("")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), body.Total)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "/odata/DollarCountEntities/$count", body.Events[0].Resource)

	_, body = fetch("level=warning")
	require.Len(t, body.Events, 1)
	assert.Equal(t, http.StatusNotFound, body.Events[0].Status)

	_, body = fetch("limit=1&type=api_request")
	require.Len(t, body.Events, 1)
	assert.Equal(t, "/odata/Nope/$count", body.Events[0].Resource)

	status, _ = fetch("limit=-1")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = fetch("level=loud")
	assert.Equal(t, http.StatusBadRequest, status)
}
