package security

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_LogAPIRequest(t *testing.T) {
	al := NewAuditLogger(10)
	al.LogAPIRequest("t1", "127.0.0.1", "GET", "/Products/$count", "$filter=Price gt 5", 200, 2*time.Millisecond)
	al.LogAPIRequest("t2", "127.0.0.1", "GET", "/Nope", "", 404, time.Millisecond)
	al.LogAPIRequest("t3", "127.0.0.1", "GET", "/Products", "", 500, time.Millisecond)

	events := al.Query(AuditQuery{})
	require.Len(t, events, 3)

	first := events[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, EventTypeAPIRequest, first.EventType)
	assert.Equal(t, "/Products/$count", first.Resource)
	assert.Equal(t, "$filter=Price gt 5", first.Query)
	assert.Equal(t, 200, first.Status)
	assert.Equal(t, 2*time.Millisecond, first.Duration)
	assert.True(t, first.Success)
	assert.Equal(t, AuditLevelInfo, first.Level)

	assert.False(t, events[1].Success)
	assert.Equal(t, AuditLevelWarning, events[1].Level)
	assert.Equal(t, AuditLevelError, events[2].Level)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestAuditLogger_RingBuffer(t *testing.T) {
	al := NewAuditLogger(3)
	assert.Empty(t, al.Query(AuditQuery{}))

	for i := 0; i < 5; i++ {
		al.Log(&AuditEvent{EventType: EventTypeError, Message: string(rune('a' + i))})
	}

	assert.Equal(t, int64(5), al.Total())
	events := al.Query(AuditQuery{})
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].Message)
	assert.Equal(t, "e", events[2].Message)

	last := al.Query(AuditQuery{Limit: 2})
	require.Len(t, last, 2)
	assert.Equal(t, "d", last[0].Message)
	assert.Equal(t, "e", last[1].Message)
}

func TestAuditLogger_Query(t *testing.T) {
	al := NewAuditLogger(0)
	al.LogAPIRequest("t1", "ip", "GET", "/odata/A/$count", "", 200, 0)
	al.LogMCPToolCall("t1", "odata_count", map[string]interface{}{"path": "A"}, 0, true)
	al.LogMCPToolCall("t2", "odata_count", nil, 0, false)
	al.LogError("t2", "/odata/B", "failed", errors.New("disk"))

	assert.Len(t, al.Query(AuditQuery{TraceID: "t1"}), 2)
	assert.Len(t, al.Query(AuditQuery{Type: EventTypeMCPToolCall}), 2)
	assert.Len(t, al.Query(AuditQuery{MinLevel: AuditLevelWarning}), 2)
	assert.Len(t, al.Query(AuditQuery{Resource: "/odata/"}), 2)
	assert.Len(t, al.Query(AuditQuery{TraceID: "t2", Type: EventTypeMCPToolCall}), 1)

	errs := al.Query(AuditQuery{Type: EventTypeError})
	require.Len(t, errs, 1)
	assert.Equal(t, "disk", errs[0].Metadata["error"])
}

func TestAuditLevel_Text(t *testing.T) {
	al := NewAuditLogger(5)
	al.LogAPIRequest("t1", "ip", "GET", "/A/$count", "", 503, 0)

	data, err := json.Marshal(al.Query(AuditQuery{}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"error"`)

	var events []AuditEvent
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, AuditLevelError, events[0].Level)

	level, err := ParseAuditLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, AuditLevelWarning, level)
	_, err = ParseAuditLevel("fatal")
	assert.Error(t, err)
	assert.Equal(t, "level(7)", AuditLevel(7).String())
}
