package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtmp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(oldWd) })
	return tmpDir
}

func TestLoadDefaults(t *testing.T) {
	chtmp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:9944", cfg.Node.URL)
	assert.Equal(t, 30, cfg.Node.TimeoutSeconds)
	assert.True(t, cfg.Output.Color)
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := chtmp(t)

	content := `node:
  url: wss://rpc.example.org
  timeout_seconds: 5
output:
  color: false
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "palletbridge.yml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://rpc.example.org", cfg.Node.URL)
	assert.Equal(t, 5, cfg.Node.TimeoutSeconds)
	assert.False(t, cfg.Output.Color)
}

func TestLoadRejectsBadScheme(t *testing.T) {
	tmpDir := chtmp(t)

	content := "node:\n  url: http://rpc.example.org\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "palletbridge.yml"), []byte(content), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "ws://")
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	tmpDir := chtmp(t)

	content := "node:\n  timeout_seconds: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "palletbridge.yml"), []byte(content), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "timeout_seconds")
}
