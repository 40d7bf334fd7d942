package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "scriptd.db")
	st, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSyncer_Sync_InsertsDisabledRecordsForRecognizedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.sh"), []byte("echo 1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.py"), []byte("print(2)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignore.txt"), []byte("not a script"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "three.sh"), []byte("echo 3"), 0o755))

	st := newTestStore(t)
	syncer := NewSyncer(st, root)

	n, err := syncer.Sync()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	scripts, err := st.ListScripts(context.Background())
	require.NoError(t, err)
	require.Len(t, scripts, 3)
	for _, sc := range scripts {
		assert.False(t, sc.Enabled)
		assert.Equal(t, model.StatusIdle, sc.LastStatus)
	}
}

func TestSyncer_Sync_IsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.sh"), []byte("echo 1"), 0o755))

	st := newTestStore(t)
	syncer := NewSyncer(st, root)

	n1, err := syncer.Sync()
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := syncer.Sync()
	require.NoError(t, err)
	assert.Equal(t, 0, n2)
}

func TestSyncer_Watch_PicksUpNewFile(t *testing.T) {
	root := t.TempDir()
	st := newTestStore(t)
	syncer := NewSyncer(st, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Watch(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "watched.sh"), []byte("echo watched"), 0o755))

	require.Eventually(t, func() bool {
		scripts, err := st.ListScripts(context.Background())
		return err == nil && len(scripts) == 1
	}, 3*time.Second, 50*time.Millisecond)
}
