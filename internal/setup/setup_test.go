package setup

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsafe-server/internal/authoring"
)

func TestLoadMissingConfigReturnsEmpty(t *testing.T) {
	config, err := LoadClaudeDesktopConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude", "claude_desktop_config.json")

	config := &ClaudeDesktopConfig{
		MCPServers: map[string]MCPServerConfig{
			serverName: {
				Command: "/usr/local/bin/mcp-server",
				Env:     map[string]string{"CLINSAFE_LOGGING_OUTPUT": "stderr"},
			},
		},
	}
	require.NoError(t, SaveClaudeDesktopConfig(path, config))

	loaded, err := LoadClaudeDesktopConfig(path)
	require.NoError(t, err)
	require.Contains(t, loaded.MCPServers, serverName)
	assert.Equal(t, "/usr/local/bin/mcp-server", loaded.MCPServers[serverName].Command)
}

func TestConfigureClaudeDesktopPreservesOtherServers(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config path override uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := GetClaudeDesktopConfigPath()
	require.NoError(t, err)
	require.NoError(t, SaveClaudeDesktopConfig(configPath, &ClaudeDesktopConfig{
		MCPServers: map[string]MCPServerConfig{
			"other-server": {Command: "/bin/other"},
		},
	}))

	dataDir := t.TempDir()
	require.NoError(t, ConfigureClaudeDesktop(Options{
		BinaryPath: "/usr/local/bin/mcp-server",
		DataDir:    dataDir,
	}))

	loaded, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	assert.Contains(t, loaded.MCPServers, "other-server")
	require.Contains(t, loaded.MCPServers, serverName)

	env := loaded.MCPServers[serverName].Env
	assert.Equal(t, "stderr", env["CLINSAFE_LOGGING_OUTPUT"])
	assert.Equal(t, StorePath(dataDir), env["CLINSAFE_AUTHORING_SQLITE_PATH"])
}

func TestEnsureDataDirSeedsStoreOnce(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "clinsafe")
	ctx := context.Background()

	require.NoError(t, EnsureDataDir(ctx, dataDir))

	storePath := StorePath(dataDir)
	info, err := os.Stat(storePath)
	require.NoError(t, err)
	firstSize := info.Size()

	// Seeded store must be loadable.
	source, err := authoring.NewSQLiteSource(storePath)
	require.NoError(t, err)
	defer source.Close()

	set, err := source.LoadKnowledge(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, set.Concepts)

	// A second run leaves the existing store untouched.
	require.NoError(t, EnsureDataDir(ctx, dataDir))
	info, err = os.Stat(storePath)
	require.NoError(t, err)
	assert.Equal(t, firstSize, info.Size())
}
