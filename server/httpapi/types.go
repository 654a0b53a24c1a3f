package httpapi

import "github.com/kasuganosora/odatacount/pkg/security"

// ErrorResponse the OData JSON error format
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody the error object of an ErrorResponse
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

// ServiceDocument lists the entity sets and function imports of the service
type ServiceDocument struct {
	Context string                 `json:"@odata.context"`
	Value   []ServiceDocumentEntry `json:"value"`
}

// ServiceDocumentEntry one resource of the service document
type ServiceDocumentEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	DataSources map[string]bool `json:"data_sources,omitempty"`
}

// AuditResponse is the body of GET /audit
type AuditResponse struct {
	Total  int64                   `json:"total"`
	Events []*security.AuditEvent `json:"events"`
}
