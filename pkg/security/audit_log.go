// Package security keeps an in-memory audit trail of OData and MCP requests.
package security

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditLevel 审计级别
type AuditLevel int

const (
	AuditLevelInfo AuditLevel = iota
	AuditLevelWarning
	AuditLevelError
)

var levelNames = [...]string{"info", "warning", "error"}

func (l AuditLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalText JSON 中输出级别名称
func (l AuditLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *AuditLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseAuditLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseAuditLevel 解析级别名称, 也接受 "warn"
func ParseAuditLevel(s string) (AuditLevel, error) {
	switch strings.ToLower(s) {
	case "info":
		return AuditLevelInfo, nil
	case "warn", "warning":
		return AuditLevelWarning, nil
	case "error":
		return AuditLevelError, nil
	}
	return 0, fmt.Errorf("unknown audit level %q", s)
}

// levelForStatus 4xx 记为 warning, 5xx 记为 error
func levelForStatus(status int) AuditLevel {
	switch {
	case status >= 500:
		return AuditLevelError
	case status >= 400:
		return AuditLevelWarning
	}
	return AuditLevelInfo
}

// AuditEventType 审计事件类型
type AuditEventType string

const (
	EventTypeAPIRequest  AuditEventType = "api_request"
	EventTypeMCPToolCall AuditEventType = "mcp_tool_call"
	EventTypeError       AuditEventType = "error"
)

// AuditEvent 一次请求或一次失败
type AuditEvent struct {
	ID        string                 `json:"id"`
	TraceID   string                 `json:"trace_id,omitempty"` // X-Request-ID 或 MCP 调用方给的 trace_id
	Timestamp time.Time              `json:"timestamp"`
	Level     AuditLevel             `json:"level"`
	EventType AuditEventType         `json:"event_type"`
	Client    string                 `json:"client,omitempty"`
	Resource  string                 `json:"resource,omitempty"` // OData 资源路径或工具名
	Query     string                 `json:"query,omitempty"`
	Status    int                    `json:"status,omitempty"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Success   bool                   `json:"success"`
	Duration  time.Duration          `json:"duration_ns"`
}

// AuditQuery 过滤条件, 零值字段不参与过滤
type AuditQuery struct {
	TraceID  string
	Type     AuditEventType
	MinLevel AuditLevel
	Resource string // 前缀匹配
	Limit    int    // 最多返回最近的多少条; 0 不限
}

func (q AuditQuery) match(e *AuditEvent) bool {
	return (q.TraceID == "" || e.TraceID == q.TraceID) &&
		(q.Type == "" || e.EventType == q.Type) &&
		e.Level >= q.MinLevel &&
		strings.HasPrefix(e.Resource, q.Resource)
}

// AuditLogger 固定容量的环形缓冲区, 满了之后覆盖最早的事件
type AuditLogger struct {
	mu     sync.RWMutex
	events []*AuditEvent
	next   int
	total  int64
}

// NewAuditLogger 创建容量为 size 的审计日志 (<=0 时为 1000)
func NewAuditLogger(size int) *AuditLogger {
	if size <= 0 {
		size = 1000
	}
	return &AuditLogger{events: make([]*AuditEvent, size)}
}

// Log 记录事件, 补全 ID 和时间戳
func (al *AuditLogger) Log(event *AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	al.mu.Lock()
	al.events[al.next] = event
	al.next = (al.next + 1) % len(al.events)
	al.total++
	al.mu.Unlock()
}

// LogAPIRequest 记录一次 OData HTTP 请求
func (al *AuditLogger) LogAPIRequest(traceID, ip, method, resource, query string, status int, duration time.Duration) {
	al.Log(&AuditEvent{
		TraceID:   traceID,
		Level:     levelForStatus(status),
		EventType: EventTypeAPIRequest,
		Client:    ip,
		Resource:  resource,
		Query:     query,
		Status:    status,
		Message:   method + " " + resource,
		Success:   status < 400,
		Duration:  duration,
	})
}

// LogMCPToolCall 记录一次 MCP 工具调用
func (al *AuditLogger) LogMCPToolCall(traceID, toolName string, args map[string]interface{}, duration time.Duration, success bool) {
	level := AuditLevelInfo
	if !success {
		level = AuditLevelWarning
	}
	al.Log(&AuditEvent{
		TraceID:   traceID,
		Level:     level,
		EventType: EventTypeMCPToolCall,
		Client:    "mcp",
		Resource:  toolName,
		Message:   "MCP tool " + toolName,
		Success:   success,
		Duration:  duration,
		Metadata:  map[string]interface{}{"args": args},
	})
}

// LogError 记录请求处理中的内部错误
func (al *AuditLogger) LogError(traceID, resource, message string, err error) {
	event := &AuditEvent{
		TraceID:   traceID,
		Level:     AuditLevelError,
		EventType: EventTypeError,
		Resource:  resource,
		Message:   message,
	}
	if err != nil {
		event.Metadata = map[string]interface{}{"error": err.Error()}
	}
	al.Log(event)
}

// Total 累计记录的事件数, 包括已被覆盖的
func (al *AuditLogger) Total() int64 {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return al.total
}

// Query 按时间顺序返回匹配的事件; Limit 保留最近的若干条
func (al *AuditLogger) Query(q AuditQuery) []*AuditEvent {
	al.mu.RLock()
	defer al.mu.RUnlock()

	size := len(al.events)
	held := size
	if al.total < int64(size) {
		held = int(al.total)
	}
	// 最早的一条在 next (已写满) 或 0 (未写满)
	start := (al.next - held + size) % size

	out := make([]*AuditEvent, 0)
	for i := 0; i < held; i++ {
		if e := al.events[(start+i)%size]; q.match(e) {
			out = append(out, e)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}
