package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsList(t *testing.T) {
	path, _ := writeTestConfig(t)

	out, err := runCLI(t, "", "tools", "list", "--config", path)
	require.NoError(t, err)

	for _, name := range []string{"getInformation", "getExperience", "getProjects", "getResume", "scheduleTask", "getScheduledTasks", "cancelScheduledTask"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "(requires confirmation)")
}

func TestToolsCall(t *testing.T) {
	path, _ := writeTestConfig(t)

	t.Run("auto-executing tool", func(t *testing.T) {
		out, err := runCLI(t, "", "tools", "call", "getExperience", "--args", `{"name":"anyone"}`, "--config", path)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	})

	t.Run("invalid args", func(t *testing.T) {
		_, err := runCLI(t, "", "tools", "call", "getExperience", "--args", `{not json`, "--config", path)
		assert.Error(t, err)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := runCLI(t, "", "tools", "call", "nope", "--config", path)
		assert.Error(t, err)
	})

	t.Run("confirmation approved with --yes", func(t *testing.T) {
		out, err := runCLI(t, "", "tools", "call", "getResume", "--args", `{"name":"anyone"}`, "--yes", "--config", path)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	})

	t.Run("confirmation denied at the prompt", func(t *testing.T) {
		out, err := runCLI(t, "n\n", "tools", "call", "getResume", "--args", `{"name":"anyone"}`, "--config", path)
		require.Error(t, err)
		assert.Contains(t, out, "Run this tool?")
	})

	t.Run("schedule then list", func(t *testing.T) {
		args := `{"description":"check inbox","when":{"type":"delayed","delayInSeconds":600}}`
		out, err := runCLI(t, "", "tools", "call", "scheduleTask", "--args", args, "--session", "alice", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, `Task scheduled for type "delayed" : 600`)

		out, err = runCLI(t, "", "tasks", "list", "--agent", "alice", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "check inbox")
	})
}
