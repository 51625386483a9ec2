package ignorefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Extensions:  []string{"yaml", "yml", "json"},
		HiddenFiles: false,
		NestedRepos: []string{"esphome/device-a"},
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := testConfig()
	a := Generate(cfg)
	b := Generate(Config{
		Extensions:  []string{"json", "yaml", "yml", "yaml"}, // different order + dup
		HiddenFiles: false,
		NestedRepos: []string{"esphome/device-a"},
	})
	require.Equal(t, a, b, "identical inputs must produce byte-identical output")
}

func TestGenerate_Shape(t *testing.T) {
	out := Generate(testConfig())
	lines := []string{
		"*",
		"!*.json",
		"!*.yaml",
		"!*.yml",
	}
	for _, l := range lines {
		require.Contains(t, out, l+"\n")
	}
	require.Contains(t, out, "!*/\n")
	require.Contains(t, out, MetadataLeafPattern+"\n")
	require.Contains(t, out, "/esphome/device-a\n")
	require.Contains(t, out, "/esphome/device-a/**\n")
}

func TestMatcher_TrackedPaths(t *testing.T) {
	m := NewMatcher(testConfig())

	require.True(t, m.Tracked("automations.yaml"))
	require.True(t, m.Tracked(".storage/lovelace"))
	require.False(t, m.Tracked("secrets.db"))
	require.False(t, m.Tracked("esphome/device-a/config.yaml"), "nested repo paths are never tracked")
	require.False(t, m.Tracked("._automations.yaml"), "metadata leaf files are re-denied")
}

func TestExtensionAllowed(t *testing.T) {
	cfg := testConfig()
	require.True(t, ExtensionAllowed(cfg, "scenes.yaml"))
	require.False(t, ExtensionAllowed(cfg, "notes.txt"))
	require.True(t, ExtensionAllowed(cfg, ".storage/lovelace"))
	require.False(t, ExtensionAllowed(cfg, "._scenes.yaml"))
}

func TestInNestedRepo(t *testing.T) {
	cfg := testConfig()
	require.True(t, InNestedRepo(cfg, "esphome/device-a/secrets.yaml"))
	require.False(t, InNestedRepo(cfg, "esphome/device-b/secrets.yaml"))
}

func TestReconcile_WritesOnlyWhenDifferent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := testConfig()

	changed, err := Reconcile(ctx, dir, cfg)
	require.NoError(t, err)
	require.True(t, changed)

	path := filepath.Join(dir, Filename)
	info1, err := os.Stat(path)
	require.NoError(t, err)

	changed, err = Reconcile(ctx, dir, cfg)
	require.NoError(t, err)
	require.False(t, changed, "reconcile must not rewrite unchanged content")

	info2, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestDiscoverNestedRepos(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "esphome", "device-a", ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	nested, err := DiscoverNestedRepos(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"esphome/device-a"}, nested)
}
