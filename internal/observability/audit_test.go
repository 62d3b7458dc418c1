package observability

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikay/folio/internal/tracing"
)

func readAuditLines(t *testing.T, path string) []map[string]interface{} {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() { _ = CloseAuditLogger() })

	ctx := tracing.WithTraceID(context.Background(), "trace-1")
	RecordApprovalAudit(ctx, "getResume", "alice", true, "approved by user")
	RecordApprovalAudit(ctx, "getResume", "bob", false, "denied by user")
	RecordTaskAudit(ctx, "added", "alice", "task-1", "ok", map[string]interface{}{"callback": "executeTask"})

	require.NoError(t, CloseAuditLogger())

	lines := readAuditLines(t, path)
	require.Len(t, lines, 3)

	assert.Equal(t, "approval", lines[0]["type"])
	assert.Equal(t, "approve:getResume", lines[0]["action"])
	assert.Equal(t, "approved", lines[0]["status"])
	assert.Equal(t, "trace-1", lines[0]["trace_id"])

	assert.Equal(t, "denied", lines[1]["status"])
	assert.Equal(t, "bob", lines[1]["actor"])

	assert.Equal(t, "task:added", lines[2]["action"])
	metadata, ok := lines[2]["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "task-1", metadata["task_id"])
	assert.Equal(t, "executeTask", metadata["callback"])
}

func TestAuditLoggerDisabledByDefault(t *testing.T) {
	require.NoError(t, CloseAuditLogger())

	assert.NotPanics(t, func() {
		RecordApprovalAudit(context.Background(), "getResume", "alice", true, "")
	})
	assert.NoError(t, GetAuditLogger().Close())
}
