package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
	"github.com/kartikay/folio/pkg/scheduler"
)

func seedTasks(t *testing.T, dataDir string, tasks ...runtime.Task) {
	store, err := scheduler.NewFileStore(filepath.Join(dataDir, "tasks.json"))
	require.NoError(t, err)
	for _, task := range tasks {
		require.NoError(t, store.Put(context.Background(), task))
	}
	require.NoError(t, store.Close())
}

func TestTasksList(t *testing.T) {
	path, dataDir := writeTestConfig(t)

	t.Run("empty store", func(t *testing.T) {
		out, err := runCLI(t, "", "tasks", "list", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "No scheduled tasks found.")
	})

	now := time.Now()
	seedTasks(t, dataDir,
		runtime.Task{ID: "task-a", AgentID: "alice", Callback: "executeTask", Payload: "send notes", Type: schedule.KindDelayed, Time: now.Add(time.Hour), CreatedAt: now},
		runtime.Task{ID: "task-b", AgentID: "bob", Callback: "executeTask", Payload: "daily digest", Type: schedule.KindCron, Cron: "0 9 * * *", Time: now.Add(2 * time.Hour), CreatedAt: now},
	)

	t.Run("all agents", func(t *testing.T) {
		out, err := runCLI(t, "", "tasks", "list", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "task-a")
		assert.Contains(t, out, "send notes")
		assert.Contains(t, out, "task-b")
		assert.Contains(t, out, "0 9 * * *")
	})

	t.Run("one agent", func(t *testing.T) {
		out, err := runCLI(t, "", "tasks", "list", "--agent", "bob", "--config", path)
		require.NoError(t, err)
		assert.NotContains(t, out, "task-a")
		assert.Contains(t, out, "task-b")
	})
}

func TestTasksCancel(t *testing.T) {
	path, dataDir := writeTestConfig(t)

	now := time.Now()
	seedTasks(t, dataDir,
		runtime.Task{ID: "task-a", AgentID: "alice", Callback: "executeTask", Payload: "send notes", Type: schedule.KindDelayed, Time: now.Add(time.Hour), CreatedAt: now},
	)

	out, err := runCLI(t, "", "tasks", "cancel", "task-a", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Task task-a has been successfully canceled.")

	out, err = runCLI(t, "", "tasks", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No scheduled tasks found.")

	_, err = runCLI(t, "", "tasks", "cancel", "task-a", "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrTaskNotFound)
}
