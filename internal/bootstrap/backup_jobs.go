package bootstrap

import (
	"context"
	"time"

	"github.com/scriptd/scriptd/internal/backup"
	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/scheduler"
)

// registerBackupJobs installs the scheduled_local_backup / scheduled_cd2_backup
// jobs from the local_backup_* / cd2_* setting keys (§3.2, §4.6 step 5).
func registerBackupJobs(jobs *scheduler.Registry, packager *backup.Packager, settings map[string]string) {
	jobs.Remove(scheduler.JobScheduledLocal)
	if model.SettingTrue(settings, model.SettingLocalBackupEnabled) {
		cronExpr := settings[model.SettingLocalBackupCron]
		if cronExpr != "" {
			if err := jobs.Upsert(scheduler.JobScheduledLocal, cronExpr, func() {
				runLocalBackup(packager)
			}); err != nil {
				logger.Warn(context.Background(), "bootstrap: invalid local backup cron", "cron", cronExpr, "error", err)
			}
		}
	}

	jobs.Remove(scheduler.JobScheduledCD2)
	if model.SettingTrue(settings, model.SettingCD2BackupEnabled) {
		cronExpr := settings[model.SettingCD2BackupCron]
		if cronExpr != "" {
			if err := jobs.Upsert(scheduler.JobScheduledCD2, cronExpr, func() {
				runCD2Backup(packager, settings)
			}); err != nil {
				logger.Warn(context.Background(), "bootstrap: invalid cd2 backup cron", "cron", cronExpr, "error", err)
			}
		}
	}
}

func runLocalBackup(packager *backup.Packager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := packager.RunLocal(ctx); err != nil {
		logger.Error(ctx, "bootstrap: scheduled local backup failed", "error", err)
	}
}

func runCD2Backup(packager *backup.Packager, settings map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s := backup.Settings{
		CD2WebDAVURL:  settings[model.SettingCD2WebDAVURL],
		CD2Username:   settings[model.SettingCD2Username],
		CD2Password:   settings[model.SettingCD2Password],
		CD2BackupPath: settings[model.SettingCD2BackupPath],
	}
	if err := packager.RunCD2(ctx, s); err != nil {
		logger.Error(ctx, "bootstrap: scheduled cd2 backup failed", "error", err)
	}
}
