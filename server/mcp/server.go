// Package mcp exposes the OData service as Model Context Protocol tools.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kasuganosora/odatacount/pkg/config"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/security"
)

// EndpointPath where the streamable HTTP transport is mounted
const EndpointPath = "/mcp"

// Server is the MCP protocol server
type Server struct {
	deps   *ToolDeps
	mcpSrv *mcpserver.MCPServer
}

// NewServer creates a new MCP server with the OData tools registered
func NewServer(engine *query.Engine, cfg *config.Config, auditLogger *security.AuditLogger) *Server {
	s := &Server{
		deps: &ToolDeps{
			Engine:      engine,
			ServiceRoot: cfg.Server.ServiceRoot,
			MaxTop:      cfg.Query.MaxTop,
			AuditLogger: auditLogger,
		},
	}

	s.mcpSrv = mcpserver.NewMCPServer(
		cfg.MCP.Name,
		cfg.MCP.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	countTool := mcp.NewTool("odata_count",
		mcp.WithDescription("Count the members of an OData collection. Accepts a resource path relative to the service root, e.g. \"DollarCountEntities(5)/StringCollectionProp?$filter=$it eq '2'\". A trailing /$count is added when missing."),
		mcp.WithString("url", mcp.Description("The resource path with optional $filter"), mcp.Required()),
		mcp.WithString("trace_id", mcp.Description("Optional trace ID for request tracing and audit logging")),
	)

	queryTool := mcp.NewTool("odata_query",
		mcp.WithDescription("Read an OData resource and return its JSON representation. Supports $filter, $orderby, $top, $skip, $count and $select."),
		mcp.WithString("url", mcp.Description("The resource path relative to the service root"), mcp.Required()),
		mcp.WithString("trace_id", mcp.Description("Optional trace ID for request tracing and audit logging")),
	)

	listSetsTool := mcp.NewTool("list_entity_sets",
		mcp.WithDescription("List the entity sets and unbound functions of the service"),
	)

	s.mcpSrv.AddTool(countTool, s.deps.HandleCount)
	s.mcpSrv.AddTool(queryTool, s.deps.HandleQuery)
	s.mcpSrv.AddTool(listSetsTool, s.deps.HandleListEntitySets)
	return s
}

// HTTPHandler returns the streamable HTTP transport, to be mounted at EndpointPath
func (s *Server) HTTPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpSrv, mcpserver.WithEndpointPath(EndpointPath))
}

// ServeStdio serves the tools over stdin/stdout (blocking)
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpSrv)
}
