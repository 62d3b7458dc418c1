package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config file whose data directory is a temp dir
func writeTestConfig(t *testing.T) (string, string) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, "folio.json")
	content := `{"data_dir": "` + dataDir + `", "logging": {"level": "error", "pretty": false}, "agent": {"api_key": ""}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, dataDir
}

// resetFlags restores every flag to its default. Cobra keeps flag values
// between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command with args and returns stdout
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := GetRootCmd()
	resetFlags(cmd)
	cmd.SetArgs(args)

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return output.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, err := runCLI(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "folio version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := runCLI(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Folio")
		assert.Contains(t, out, "schedule")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("subcommands", func(t *testing.T) {
		names := make(map[string]bool)
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, name := range []string{"serve", "chat", "tools", "tasks", "status", "stop"} {
			assert.True(t, names[name], "missing command %s", name)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	path, dataDir := writeTestConfig(t)

	cfgFile = path
	logLevel = "debug"
	t.Cleanup(func() {
		cfgFile = ""
		logLevel = ""
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dataDir, "tasks.json"), cfg.Scheduler.Path)
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}
