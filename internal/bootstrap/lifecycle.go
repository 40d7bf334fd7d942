// Package bootstrap is the Lifecycle component (§4.6): it opens the store,
// wires every core component together in the startup order spec.md names,
// and tears them down again on shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/scriptd/scriptd/internal/backup"
	"github.com/scriptd/scriptd/internal/config"
	"github.com/scriptd/scriptd/internal/health"
	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/logsink"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/notifier"
	"github.com/scriptd/scriptd/internal/scheduler"
	"github.com/scriptd/scriptd/internal/store"
	"github.com/scriptd/scriptd/internal/supervisor"
)

// System is every wired component, assembled by Start and torn down by
// Shutdown. cmd/scriptd hands System.Store/Supervisor/Jobs/Sink/Notifier/
// Syncer to the api.Server.
type System struct {
	Config     config.Config
	Store      store.Store
	Supervisor *supervisor.Supervisor
	Jobs       *scheduler.Registry
	Sink       *logsink.Sink
	Notifier   *notifier.Notifier
	Health     *health.Checker
	Syncer     *Syncer
	Packager   *backup.Packager

	lock      *flock.Flock
	watchDone chan struct{}
	cancel    context.CancelFunc
}

// Start executes the ordered bootstrap procedure (§4.6 steps 1-9):
// acquire the instance lock, open the store (migrations run inside
// store.Open), start the Job Registry, initialize the Notifier if
// credentials are present, register the health-check job if enabled,
// register backup jobs, reset stale "running" statuses, sync disk, register
// script cron jobs, and launch run_on_startup scripts.
func Start(ctx context.Context, cfg config.Config) (*System, error) {
	lock, err := AcquireInstanceLock(cfg.LogRoot)
	if err != nil {
		return nil, err
	}

	dsn := dsnPath(cfg.DatabaseURL)
	st, err := store.Open(dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open store: %w", err)
	}

	sink := logsink.New(cfg.LogRoot)
	jobs := scheduler.New()

	settings, err := st.ListSettings(ctx)
	if err != nil {
		_ = st.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	notif := notifier.New(credentialsFromSettings(settings))
	sup := supervisor.New(st, sink, notif, supervisor.Config{InterpreterPath: cfg.InterpreterPath})
	checker := health.New(st, sup, notif)
	syncer := NewSyncer(st, cfg.ScriptRoot)
	packager := backup.New(cfg.ScriptRoot, dsnPath(dsn), cfg.BackupRoot)

	sys := &System{
		Config:     cfg,
		Store:      st,
		Supervisor: sup,
		Jobs:       jobs,
		Sink:       sink,
		Notifier:   notif,
		Health:     checker,
		Syncer:     syncer,
		Packager:   packager,
		lock:       lock,
	}

	jobs.Start()

	if model.SettingTrue(settings, model.SettingEnableHealthCheck) {
		_ = jobs.Upsert(scheduler.JobHealthCheck, "*/5 * * * *", func() {
			checker.Sweep(context.Background())
		})
	}
	registerBackupJobs(jobs, packager, settings)

	if n, err := st.ResetRunningToIdle(ctx); err != nil {
		logger.Error(ctx, "bootstrap: reset stale statuses failed", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "bootstrap: reset stale running statuses", "count", n)
	}

	if n, err := syncer.Sync(); err != nil {
		logger.Error(ctx, "bootstrap: initial disk-sync failed", "error", err)
	} else {
		logger.Info(ctx, "bootstrap: disk-sync complete", "inserted", n)
	}

	scripts, err := st.ListScripts(ctx)
	if err != nil {
		_ = st.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	for _, sc := range scripts {
		if sc.HasTimedTrigger() {
			jobs.UpsertScriptJob(ctx, sc, sup.RunJobFunc(sc.ID))
		}
	}
	for _, sc := range scripts {
		if sc.RunOnStartup {
			if err := sup.Run(ctx, sc.ID, sc.IsDaemon()); err != nil {
				logger.Warn(ctx, "bootstrap: run_on_startup launch failed", "script_id", sc.ID, "error", err)
			}
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	sys.cancel = cancel
	sys.watchDone = make(chan struct{})
	go func() {
		defer close(sys.watchDone)
		if err := syncer.Watch(watchCtx); err != nil {
			logger.Warn(watchCtx, "bootstrap: disk-sync watch exited", "error", err)
		}
	}()

	return sys, nil
}

// Shutdown cancels the disk-sync watch, stops the Job Registry, signals
// SIGTERM to every live child, and releases the instance lock (§4.6).
func (sys *System) Shutdown(ctx context.Context) error {
	if sys.cancel != nil {
		sys.cancel()
		select {
		case <-sys.watchDone:
		case <-time.After(2 * time.Second):
		}
	}

	sys.Jobs.Stop(ctx)

	for _, id := range sys.Supervisor.LiveScriptIDs() {
		sys.Supervisor.Stop(id)
	}

	if err := sys.Store.Close(); err != nil {
		logger.Warn(ctx, "bootstrap: close store failed", "error", err)
	}
	if err := sys.lock.Unlock(); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	return nil
}

func credentialsFromSettings(settings map[string]string) notifier.Credentials {
	chatID, _ := strconv.ParseInt(settings[model.SettingTGChatID], 10, 64)
	return notifier.Credentials{
		BotToken: settings[model.SettingTGBotToken],
		ChatID:   chatID,
		ProxyURL: settings[model.SettingTGProxy],
	}
}

// dsnPath strips config's "sqlite://" URL scheme, leaving the plain
// filesystem path store.Open and the backup packager both expect.
func dsnPath(dsn string) string {
	const prefix = "sqlite://"
	if len(dsn) > len(prefix) && dsn[:len(prefix)] == prefix {
		return dsn[len(prefix):]
	}
	return dsn
}
