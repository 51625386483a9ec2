package restore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
)

func newTestRepo(t *testing.T) (*gitdriver.Driver, string) {
	t.Helper()
	dir := t.TempDir()
	d := gitdriver.New(dir, nil)
	ctx := context.Background()
	require.NoError(t, d.Init(ctx))
	require.NoError(t, d.ConfigureIdentity(ctx, "confvault", "confvault@localhost"))
	return d, dir
}

func cfgFn() func() ignorefile.Config {
	cfg := ignorefile.Config{Extensions: []string{"yaml"}}
	return func() ignorefile.Config { return cfg }
}

func writeAndCommit(t *testing.T, d *gitdriver.Driver, dir, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, path), []byte(content), 0644))
	ctx := context.Background()
	require.NoError(t, d.Add(ctx, path))
	require.NoError(t, d.Commit(ctx, path))
}

func TestEngine_RestoreFileChecksOutPastContent(t *testing.T) {
	d, dir := newTestRepo(t)
	ctx := context.Background()

	writeAndCommit(t, d, dir, "a.yaml", "v1\n")
	commits, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	firstHash := commits[0].Hash

	writeAndCommit(t, d, dir, "a.yaml", "v2\n")

	e := New(d, cfgFn(), nil, nil)
	require.NoError(t, e.RestoreFile(ctx, firstHash, "a.yaml"))

	content, err := os.ReadFile(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	require.Equal(t, "v1\n", string(content))
}

func TestEngine_RestoreCommitPartial(t *testing.T) {
	d, dir := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("a-v0\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("b-v0\n"), 0644))
	require.NoError(t, d.Add(ctx, "a.yaml", "b.yaml"))
	require.NoError(t, d.Commit(ctx, "a.yaml, b.yaml"))
	commits, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	c1 := commits[0].Hash

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("b-v1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("c-v0\n"), 0644))
	require.NoError(t, d.Add(ctx, "b.yaml", "c.yaml"))
	require.NoError(t, d.Commit(ctx, "b.yaml, c.yaml"))

	e := New(d, cfgFn(), nil, nil)
	restored, err := e.RestoreCommit(ctx, c1, c1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.yaml", "b.yaml"}, restored)

	aContent, err := os.ReadFile(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	require.Equal(t, "a-v0\n", string(aContent))

	bContent, err := os.ReadFile(filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	require.Equal(t, "b-v0\n", string(bContent))

	cContent, err := os.ReadFile(filepath.Join(dir, "c.yaml"))
	require.NoError(t, err)
	require.Equal(t, "c-v0\n", string(cContent), "c.yaml was untouched by c1 and must remain as-is")

	commitsAfter, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	require.Equal(t, "a.yaml, b.yaml", commitsAfter[0].Subject)
}

func TestEngine_HardResetWithBackup(t *testing.T) {
	d, dir := newTestRepo(t)
	ctx := context.Background()

	writeAndCommit(t, d, dir, "a.yaml", "a-v0\n")
	commits, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	target := commits[0].Hash

	writeAndCommit(t, d, dir, "a.yaml", "a-v1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("uncommitted\n"), 0644))

	e := New(d, cfgFn(), nil, nil)
	require.NoError(t, e.HardReset(ctx, target, true))

	commitsAfter, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	require.Len(t, commitsAfter, 4)
	require.Contains(t, commitsAfter[0].Subject, "Restored all files to")
	require.Contains(t, commitsAfter[1].Subject, "Safety backup before hard reset to")

	content, err := os.ReadFile(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	require.Equal(t, "a-v0\n", string(content))
}

func TestEngine_HardResetSkipsBackupWhenClean(t *testing.T) {
	d, dir := newTestRepo(t)
	ctx := context.Background()

	writeAndCommit(t, d, dir, "a.yaml", "a-v0\n")
	commits, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	target := commits[0].Hash

	writeAndCommit(t, d, dir, "a.yaml", "a-v1\n")

	e := New(d, cfgFn(), nil, nil)
	require.NoError(t, e.HardReset(ctx, target, true))

	commitsAfter, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	require.Len(t, commitsAfter, 3, "no safety backup should be created against a clean working tree")
	require.Contains(t, commitsAfter[0].Subject, "Restored all files to")
}
