// Package scheduler is the Job Registry (§4.2): a cron-triggered table of
// jobs keyed by job id, wrapping robfig/cron/v3's parser and scheduler loop
// with the script_<id> / fixed-name bookkeeping from spec.md §3.3.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/model"
)

// Fixed job ids for the system jobs registered outside the per-script table.
const (
	JobHealthCheck      = "health_check_job"
	JobScheduledLocal   = "scheduled_local_backup"
	JobScheduledCD2     = "scheduled_cd2_backup"
)

// Registry wraps a robfig/cron scheduler with job-id bookkeeping.
type Registry struct {
	mu      sync.RWMutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// New builds a Registry using the standard 5-field parser (minute hour
// dom month dow) in the process's local timezone, per §4.2.
func New() *Registry {
	return &Registry{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins the cron dispatcher loop.
func (r *Registry) Start() {
	r.cron.Start()
}

// Stop halts the dispatcher; ctx.Done() fires once in-flight job callbacks
// return.
func (r *Registry) Stop(ctx context.Context) {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// Upsert registers fn under jobID on the given 5-field cron expression,
// replacing any existing registration for that id. A malformed expression
// is a non-fatal error (§4.2): the job is not installed, and the caller
// decides whether to surface it.
func (r *Registry) Upsert(jobID, cronExpr string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entryID, ok := r.entries[jobID]; ok {
		r.cron.Remove(entryID)
		delete(r.entries, jobID)
	}

	entryID, err := r.cron.AddFunc(cronExpr, fn)
	if err != nil {
		return fmt.Errorf("parse cron expression %q for job %q: %w", cronExpr, jobID, err)
	}
	r.entries[jobID] = entryID
	return nil
}

// UpsertScriptJob implements §4.2's upsert_script_job: it removes any prior
// registration for the script, then registers fn for HasTimedTrigger
// scripts only — @daemon and cron-less scripts have no timed job, and are
// left solely to Bootstrap/manual-run per §3.1.
func (r *Registry) UpsertScriptJob(ctx context.Context, script *model.Script, fn func()) {
	jobID := script.JobID()
	r.Remove(jobID)
	if !script.HasTimedTrigger() {
		return
	}
	if err := r.Upsert(jobID, script.Cron, fn); err != nil {
		logger.Warn(ctx, "scheduler: invalid cron expression, job not installed",
			"script_id", script.ID, "cron", script.Cron, "error", err)
	}
}

// Remove unregisters a job id. Idempotent: removing an unknown id is a
// no-op.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entryID, ok := r.entries[jobID]; ok {
		r.cron.Remove(entryID)
		delete(r.entries, jobID)
	}
}

// Exists reports whether jobID currently has an active registration.
func (r *Registry) Exists(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[jobID]
	return ok
}

// List returns the currently registered job ids.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
