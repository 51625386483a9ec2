package commitengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
	"github.com/confvault/confvault/pkg/retention"
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

func TestEngine_TriggerSingleFile(t *testing.T) {
	d, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x: 1\n"), 0644))

	e := New(d, cfgFn(), nil, Options{})
	intent := core.NewCommitIntent("intent-1", "a.yaml", time.Now(), time.Second)
	e.Trigger(context.Background(), intent)

	commits, err := d.Log(context.Background(), core.LogFilter{})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Equal(t, "a.yaml", commits[0].Subject)
}

func TestEngine_TriggerNoChangeIsSilent(t *testing.T) {
	d, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x: 1\n"), 0644))
	e := New(d, cfgFn(), nil, Options{})
	ctx := context.Background()

	intent := core.NewCommitIntent("intent-1", "a.yaml", time.Now(), time.Second)
	e.Trigger(ctx, intent)

	intent2 := core.NewCommitIntent("intent-2", "a.yaml", time.Now(), time.Second)
	e.Trigger(ctx, intent2)

	commits, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	require.Len(t, commits, 1, "retriggering with no working tree change must not create a second commit")
}

func TestEngine_FiltersUntrackedExtension(t *testing.T) {
	d, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	e := New(d, cfgFn(), nil, Options{})
	ctx := context.Background()

	intent := core.NewCommitIntent("intent-1", "notes.txt", time.Now(), time.Second)
	e.Trigger(ctx, intent)

	commits, err := d.Log(ctx, core.LogFilter{})
	require.NoError(t, err)
	require.Empty(t, commits)
}

func TestEngine_CommitAllBatchesMultipleFiles(t *testing.T) {
	d, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("a: 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("b: 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("c: 1\n"), 0644))

	e := New(d, cfgFn(), nil, Options{})
	require.NoError(t, e.CommitAll(context.Background()))

	commits, err := d.Log(context.Background(), core.LogFilter{})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Equal(t, "3 files", commits[0].Subject)
}

func TestEngine_RetentionHookFiresWhenEnabled(t *testing.T) {
	d, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x: 1\n"), 0644))

	var retentionCalled bool
	e := New(d, cfgFn(), nil, Options{
		RetentionEnabled: func() bool { return true },
		TriggerRetention: func(ctx context.Context) { retentionCalled = true },
	})
	intent := core.NewCommitIntent("intent-1", "a.yaml", time.Now(), time.Second)
	e.Trigger(context.Background(), intent)

	require.True(t, retentionCalled)
}

// TestEngine_RetentionHookDoesNotDeadlockOnDriverLock guards against the
// driver's write lock still being held while the retention hook runs: the
// hook acquires that same lock itself, so Trigger must release it first.
func TestEngine_RetentionHookDoesNotDeadlockOnDriverLock(t *testing.T) {
	d, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x: 1\n"), 0644))

	retentionEngine := retention.New(d, cfgFn(), nil)
	e := New(d, cfgFn(), nil, Options{
		RetentionEnabled: func() bool { return true },
		TriggerRetention: func(ctx context.Context) {
			_, _ = retentionEngine.Run(ctx, core.RetentionWindow{Days: 30})
		},
	})

	intent := core.NewCommitIntent("intent-1", "a.yaml", time.Now(), time.Second)

	done := make(chan struct{})
	go func() {
		e.Trigger(context.Background(), intent)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Trigger did not return: retention hook likely deadlocked on the driver lock")
	}
}
