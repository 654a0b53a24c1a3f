package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/query"
	"github.com/kasuganosora/odatacount/pkg/security"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

// ToolDeps holds shared dependencies for MCP tool handlers
type ToolDeps struct {
	Engine      *query.Engine
	ServiceRoot string
	MaxTop      int
	AuditLogger *security.AuditLogger
}

// toolError reports err with the same codes as the HTTP error responses
func toolError(err error) *mcp.CallToolResult {
	apiErr := query.ClassifyError(err)
	msg := fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
	if apiErr.Code == api.ErrCodeInternal && apiErr.Cause != nil {
		msg += ": " + apiErr.Cause.Error()
	}
	return mcp.NewToolResultError(msg)
}

// HandleCount evaluates a $count request; "/$count" is appended when the url lacks it
func (d *ToolDeps) HandleCount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("url", "")
	traceID := traceIDFrom(request)
	start := time.Now()
	args := map[string]interface{}{"url": raw}

	if raw == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	p, opts, err := d.resolve(raw, true)
	if err != nil {
		d.logToolCall(traceID, "odata_count", args, time.Since(start), false)
		return toolError(err), nil
	}

	n, err := d.Engine.Count(ctx, p, opts)
	d.logToolCall(traceID, "odata_count", args, time.Since(start), err == nil)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", n)), nil
}

// HandleQuery evaluates a resource request and returns its JSON representation
func (d *ToolDeps) HandleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("url", "")
	traceID := traceIDFrom(request)
	start := time.Now()
	args := map[string]interface{}{"url": raw}

	if raw == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	p, opts, err := d.resolve(raw, false)
	if err != nil {
		d.logToolCall(traceID, "odata_query", args, time.Since(start), false)
		return toolError(err), nil
	}

	var body interface{}
	switch {
	case p.IsCount:
		body, err = d.Engine.Count(ctx, p, opts)
	case p.IsCollection():
		var res *query.Result
		if res, err = d.Engine.Collection(ctx, p, opts); err == nil {
			out := map[string]interface{}{"value": res.Value}
			if res.Count != nil {
				out["@odata.count"] = *res.Count
			}
			body = out
		}
	default:
		var res *query.SingleResult
		if res, err = d.Engine.Single(ctx, p, opts); err == nil {
			body = res.Value
		}
	}
	d.logToolCall(traceID, "odata_query", args, time.Since(start), err == nil)
	if err != nil {
		return toolError(err), nil
	}

	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(text)), nil
}

// HandleListEntitySets lists the entity sets with their entity types
func (d *ToolDeps) HandleListEntitySets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("Entity sets:\n")
	for _, set := range d.Engine.Model().EntitySets() {
		sb.WriteString(fmt.Sprintf("  - %s (%s)\n", set.Name, set.EntityType.QualifiedName()))
	}

	var functions []string
	for _, f := range d.Engine.Model().Functions() {
		if !f.Bound {
			functions = append(functions, f.Name)
		}
	}
	if len(functions) > 0 {
		sb.WriteString("Functions:\n")
		for _, name := range functions {
			sb.WriteString("  - " + name + "()\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// resolve parses a service-relative or absolute url into a path and its options
func (d *ToolDeps) resolve(raw string, count bool) (*uri.Path, *query.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid url: %v", uri.ErrBadRequest, err)
	}
	path := strings.Trim(u.EscapedPath(), "/")
	if root := strings.Trim(d.ServiceRoot, "/"); root != "" {
		if path == root {
			path = ""
		} else {
			path = strings.TrimPrefix(path, root+"/")
		}
	}
	if count && path != "" && !strings.HasSuffix(path, "/$count") {
		path += "/$count"
	}

	q := u.Query()
	p, err := uri.Parse(d.Engine.Model(), path, q)
	if err != nil {
		return nil, nil, err
	}
	opts, err := query.ParseOptions(q, d.MaxTop)
	if err != nil {
		return nil, nil, err
	}
	return p, opts, nil
}

func traceIDFrom(request mcp.CallToolRequest) string {
	if id := request.GetString("trace_id", ""); id != "" {
		return id
	}
	return uuid.NewString()
}

func (d *ToolDeps) logToolCall(traceID, toolName string, args map[string]interface{}, duration time.Duration, success bool) {
	if d.AuditLogger != nil {
		d.AuditLogger.LogMCPToolCall(traceID, toolName, args, duration, success)
	}
}
