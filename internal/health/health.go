// Package health is the Health Checker (§4.4): a periodic sweep that
// cross-references daemon scripts recorded as running against the
// Supervisor's live table, repairs stale status, and raises a batched
// notification for anything found dead.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/notifier"
	"github.com/scriptd/scriptd/internal/store"
)

// DefaultInterval is the sweep cadence when none is configured (§4.4).
const DefaultInterval = 5 * time.Minute

// LiveTable is the subset of Supervisor the Health Checker needs: the
// authoritative view of which script ids currently have a live child
// (§9 Open Question: the in-memory table, not the OS, is authoritative).
type LiveTable interface {
	IsRunning(scriptID int64) bool
	ChildPID(scriptID int64) (int, bool)
}

// Checker runs the health-check sweep.
type Checker struct {
	store    store.Store
	live     LiveTable
	notifier *notifier.Notifier
}

// New builds a Checker.
func New(st store.Store, live LiveTable, notif *notifier.Notifier) *Checker {
	return &Checker{store: st, live: live, notifier: notif}
}

// Sweep runs one pass of the procedure in §4.4 and returns the batch of
// alert lines raised, for testability (step 5).
func (c *Checker) Sweep(ctx context.Context) []string {
	daemons, err := c.store.ListRunningDaemons(ctx)
	if err != nil {
		logger.Error(ctx, "health: cannot list running daemons", "error", err)
		return nil
	}

	var batch []string
	for _, sc := range daemons {
		if c.live.IsRunning(sc.ID) {
			c.crossCheckOSProcess(ctx, sc)
			continue
		}

		if err := c.store.UpdateScriptStatus(ctx, sc.ID, model.StatusFailed, sc.LastOutput); err != nil {
			logger.Error(ctx, "health: cannot repair stale status", "script_id", sc.ID, "error", err)
			continue
		}
		batch = append(batch, fmt.Sprintf("🔴 Daemon [%s] stopped unexpectedly", sc.Name))
	}

	if len(batch) > 0 && c.notifier != nil {
		text, err := notifier.FormatHealthAlert(batch)
		if err != nil {
			logger.Warn(ctx, "health: cannot render alert", "error", err)
		} else {
			c.notifier.Notify(ctx, text)
		}
	}

	return batch
}

// crossCheckOSProcess confirms, via gopsutil, that the OS still reports the
// child's pid alive. This is pure observability — a disagreement is logged
// but never changes the computed verdict, since the in-memory table remains
// authoritative (§4.4, §9).
func (c *Checker) crossCheckOSProcess(ctx context.Context, sc *model.Script) {
	pid, ok := c.live.ChildPID(sc.ID)
	if !ok {
		return
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		logger.Warn(ctx, "health: in-memory table reports alive but OS has no matching process",
			"script_id", sc.ID, "name", sc.Name, "pid", pid)
		return
	}
	if running, err := proc.IsRunning(); err == nil && !running {
		logger.Warn(ctx, "health: in-memory table reports alive but OS process is not running",
			"script_id", sc.ID, "name", sc.Name, "pid", pid)
	}
}
