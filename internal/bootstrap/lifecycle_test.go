package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptd/scriptd/internal/config"
	"github.com/scriptd/scriptd/internal/model"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	scriptRoot := filepath.Join(base, "scripts")
	logRoot := filepath.Join(base, "logs")
	backupRoot := filepath.Join(base, "backups")
	require.NoError(t, os.MkdirAll(scriptRoot, 0o755))
	require.NoError(t, os.MkdirAll(logRoot, 0o755))

	return config.Config{
		ScriptRoot:      scriptRoot,
		DatabaseURL:     "sqlite://" + filepath.Join(base, "scriptd.db"),
		LogRoot:         logRoot,
		BackupRoot:      backupRoot,
		HTTPAddr:        ":0",
		InterpreterPath: "python3",
	}
}

func TestStart_RunsOrderedBootstrapAndShutdownCleanly(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ScriptRoot, "discovered.sh"), []byte("echo hi"), 0o755))

	sys, err := Start(context.Background(), cfg)
	require.NoError(t, err)

	scripts, err := sys.Store.ListScripts(context.Background())
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, model.StatusIdle, scripts[0].LastStatus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.Shutdown(ctx))
}

func TestStart_RejectsSecondInstanceOnSameDataDir(t *testing.T) {
	cfg := testConfig(t)

	sys, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sys.Shutdown(ctx)
	}()

	_, err = Start(context.Background(), cfg)
	assert.Error(t, err)
}

func TestStart_ResetsStaleRunningStatusOnRestart(t *testing.T) {
	cfg := testConfig(t)
	scriptPath := filepath.Join(cfg.ScriptRoot, "daemon.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("echo hi"), 0o755))

	sys, err := Start(context.Background(), cfg)
	require.NoError(t, err)

	sc := &model.Script{Name: "stale", Path: filepath.Join(cfg.ScriptRoot, "other.sh"), Type: model.ScriptTypeShell, Enabled: false}
	require.NoError(t, os.WriteFile(sc.Path, []byte("echo other"), 0o755))
	require.NoError(t, sys.Store.CreateScript(context.Background(), sc))
	require.NoError(t, sys.Store.UpdateScriptStatus(context.Background(), sc.ID, model.StatusRunning, ""))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.Shutdown(ctx))

	sys2, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = sys2.Shutdown(ctx2)
	}()

	got, err := sys2.Store.GetScript(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIdle, got.LastStatus)
}
