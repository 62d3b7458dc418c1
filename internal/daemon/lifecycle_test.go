package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleManager_StartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	lm := NewLifecycleManager(dir, zerolog.Nop())

	require.NoError(t, lm.Start())

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, IsRunning(PIDFilePath(dir)))

	require.NoError(t, lm.Stop())
	_, err = os.Stat(PIDFilePath(dir))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, lm.Stop())
}

func TestLifecycleManager_StalePIDFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(PIDFilePath(dir), []byte("999999999"), 0644))

	lm := NewLifecycleManager(dir, zerolog.Nop())
	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPID(filepath.Join(dir, "missing.pid"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-pid"), 0644))
	_, err = ReadPID(bad)
	assert.Error(t, err)
	assert.False(t, IsRunning(bad))

	good := filepath.Join(dir, "good.pid")
	require.NoError(t, os.WriteFile(good, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644))
	pid, err := ReadPID(good)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))
}
