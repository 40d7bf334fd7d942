// Package supervisor is the Process Supervisor (§4.1): it launches scripts
// as child processes in their own process group, captures their combined
// output into the Log Sink, records terminal status on the Catalog Adapter,
// and provides cooperative stop with SIGTERM-then-SIGKILL escalation.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/logsink"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/notifier"
	"github.com/scriptd/scriptd/internal/procgroup"
	"github.com/scriptd/scriptd/internal/store"
)

// ErrAlreadyRunning is returned by Run when a live child already exists for
// the script (§4.1's single-instance admission check).
var ErrAlreadyRunning = errors.New("supervisor: script already running")

const (
	termGrace = 3 * time.Second
	killGrace = 2 * time.Second
)

// Config selects how scripts are invoked.
type Config struct {
	// InterpreterPath is the binary used for ScriptTypeInterpreter scripts.
	// Defaults to "python3" (§4.1).
	InterpreterPath string
}

// liveChild is the in-memory record of a running script, per §3.3.
type liveChild struct {
	scriptID int64
	runID    string
	pgid     int
	started  time.Time
	done     chan struct{}
}

// Supervisor owns the live children table exclusively; it is never exposed
// as a package-level global (§5, §9).
type Supervisor struct {
	store    store.Store
	sink     *logsink.Sink
	notifier *notifier.Notifier
	cfg      Config

	mu       sync.RWMutex
	children map[int64]*liveChild

	stdbufOnce  sync.Once
	stdbufFound bool
}

// New builds a Supervisor. cfg.InterpreterPath defaults to "python3" if empty.
func New(st store.Store, sink *logsink.Sink, notif *notifier.Notifier, cfg Config) *Supervisor {
	if cfg.InterpreterPath == "" {
		cfg.InterpreterPath = "python3"
	}
	return &Supervisor{
		store:    st,
		sink:     sink,
		notifier: notif,
		cfg:      cfg,
		children: make(map[int64]*liveChild),
	}
}

// IsRunning reports whether scriptID currently has a live child.
func (s *Supervisor) IsRunning(scriptID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.children[scriptID]
	return ok
}

// ChildPID returns the pgid (which doubles as the leader pid, §9) of
// scriptID's live child, for the Health Checker's observability-only OS
// cross-check. The second return is false if there is no live child or it
// hasn't reached the point of having a pid yet.
func (s *Supervisor) ChildPID(scriptID int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	child, ok := s.children[scriptID]
	if !ok || child.pgid == 0 {
		return 0, false
	}
	return child.pgid, true
}

// LiveScriptIDs returns the script ids currently tracked as running,
// consumed by the Health Checker (§4.4) as the authoritative live view.
func (s *Supervisor) LiveScriptIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.children))
	for id := range s.children {
		ids = append(ids, id)
	}
	return ids
}

// Run launches scriptID asynchronously. It returns once the admission check
// has completed; the script's process lifecycle continues on a background
// goroutine detached from ctx (ctx is used only to resolve the script
// record and to tag the run's correlation id). isDaemon gates the
// completion notification per §4.1.
func (s *Supervisor) Run(ctx context.Context, scriptID int64, isDaemon bool) error {
	sc, err := s.store.GetScript(ctx, scriptID)
	if err != nil {
		return fmt.Errorf("resolve script %d: %w", scriptID, err)
	}

	s.mu.Lock()
	if _, running := s.children[scriptID]; running {
		s.mu.Unlock()
		logger.Warn(ctx, "supervisor: run rejected, already running", "script_id", scriptID)
		return ErrAlreadyRunning
	}
	runID := uuid.New().String()
	child := &liveChild{scriptID: scriptID, runID: runID, started: time.Now(), done: make(chan struct{})}
	s.children[scriptID] = child
	s.mu.Unlock()

	runCtx := logger.WithRunID(context.Background(), runID)
	go s.execute(runCtx, sc, isDaemon, child)
	return nil
}

// RunJobFunc returns a closure suitable for scheduler.Registry.Upsert: each
// cron firing dispatches Run for scriptID. An admission rejection (the
// previous firing is still running) is logged, not propagated — §5 requires
// overlapping firings to be suppressed, not queued.
func (s *Supervisor) RunJobFunc(scriptID int64) func() {
	return func() {
		ctx := context.Background()
		if err := s.Run(ctx, scriptID, false); err != nil {
			logger.Warn(ctx, "supervisor: scheduled run suppressed", "script_id", scriptID, "error", err)
		}
	}
}

// Stop requests termination of scriptID's live child: SIGTERM to the whole
// process group, a 3s grace period, then SIGKILL and a 2s grace period
// (§4.1, §5). Returns true if the child is absent, already exited, or was
// successfully reaped; false only on an unexpected signal-delivery error.
func (s *Supervisor) Stop(scriptID int64) bool {
	s.mu.RLock()
	child, ok := s.children[scriptID]
	s.mu.RUnlock()
	if !ok {
		return true
	}

	pgid := child.pgid
	if pgid == 0 {
		// Admitted but not yet started; nothing to signal. The run
		// goroutine will still observe completion and clear the table.
		return true
	}

	if err := procgroup.Terminate(pgid); err != nil {
		return false
	}
	if waitDone(child.done, termGrace) {
		return true
	}

	if err := procgroup.Kill(pgid); err != nil {
		return false
	}
	return waitDone(child.done, killGrace)
}

func waitDone(done chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// execute runs the full lifecycle of one launch: log separators, invocation
// resolution, process-group spawn, combined-output capture, exit
// classification, status update, and notification. It never returns an
// error to its caller — all failures are logged into the script's own log
// and surfaced as last_status=failed (§4.1, §7).
func (s *Supervisor) execute(ctx context.Context, sc *model.Script, isDaemon bool, child *liveChild) {
	defer func() {
		close(child.done)
		s.mu.Lock()
		delete(s.children, sc.ID)
		s.mu.Unlock()
	}()

	if err := s.sink.EnsureDir(); err != nil {
		logger.Error(ctx, "supervisor: cannot create log directory", "script_id", sc.ID, "error", err)
	}
	if err := s.sink.RotateIfOversized(sc.ID, time.Now()); err != nil {
		logger.Warn(ctx, "supervisor: log rotation failed", "script_id", sc.ID, "error", err)
	}
	if err := s.sink.AppendLine(sc.ID, fmt.Sprintf("==== Starting at %s ====", time.Now().Format(time.RFC3339))); err != nil {
		logger.Error(ctx, "supervisor: cannot write log separator", "script_id", sc.ID, "error", err)
	}

	if err := s.store.UpdateScriptRunStart(ctx, sc.ID, time.Now()); err != nil {
		logger.Error(ctx, "supervisor: cannot record run start", "script_id", sc.ID, "error", err)
	}

	status := s.runOnce(ctx, sc, child)

	if err := s.sink.AppendLine(sc.ID, fmt.Sprintf("==== Finished at %s with status: %s ====", time.Now().Format(time.RFC3339), status)); err != nil {
		logger.Error(ctx, "supervisor: cannot write log footer", "script_id", sc.ID, "error", err)
	}

	lastOutput, err := s.sink.Tail(sc.ID)
	if err != nil {
		logger.Warn(ctx, "supervisor: cannot read log for last_output", "script_id", sc.ID, "error", err)
	}
	lastOutput = model.TruncateLastOutput(lastOutput)

	if err := s.store.UpdateScriptStatus(ctx, sc.ID, status, lastOutput); err != nil {
		logger.Error(ctx, "supervisor: cannot record terminal status", "script_id", sc.ID, "error", err)
	}

	s.maybeNotify(ctx, sc, isDaemon, status, time.Since(child.started))
}

// runOnce resolves the invocation, spawns the process group, captures
// output, and returns the terminal status. Any failure in resolution or
// spawn is written to the script's log as an Internal Error block.
func (s *Supervisor) runOnce(ctx context.Context, sc *model.Script, child *liveChild) model.RunStatus {
	if _, err := os.Stat(sc.Path); err != nil {
		s.logInternalError(ctx, sc.ID, fmt.Errorf("script file not found: %s", sc.Path))
		return model.StatusFailed
	}

	argv, err := resolveInvocation(sc, s.cfg.InterpreterPath, s.stdbufAvailable())
	if err != nil {
		s.logInternalError(ctx, sc.ID, err)
		return model.StatusFailed
	}

	writer, err := s.sink.Writer(sc.ID)
	if err != nil {
		s.logInternalError(ctx, sc.ID, fmt.Errorf("open log file for writing: %w", err))
		return model.StatusFailed
	}
	defer writer.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	procgroup.Prepare(cmd)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if err := writer.WriteLine(scanner.Text()); err != nil {
				logger.Warn(ctx, "supervisor: log write failed, stopping capture", "script_id", sc.ID, "error", err)
				return
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		<-scanDone
		s.logInternalError(ctx, sc.ID, fmt.Errorf("start process: %w", err))
		return model.StatusFailed
	}

	s.mu.Lock()
	child.pgid = procgroup.PGID(cmd)
	s.mu.Unlock()

	waitErr := cmd.Wait()
	_ = pw.Close()
	<-scanDone
	_ = pr.Close()

	return classifyExit(cmd.ProcessState, waitErr)
}

func classifyExit(state *os.ProcessState, waitErr error) model.RunStatus {
	exitCode, bySIGTERM := procgroup.ExitStatus(state)
	switch {
	case bySIGTERM:
		return model.StatusStopped
	case exitCode == 0 && waitErr == nil:
		return model.StatusSuccess
	default:
		return model.StatusFailed
	}
}

func (s *Supervisor) logInternalError(ctx context.Context, scriptID int64, err error) {
	logger.Error(ctx, "supervisor: run failed", "script_id", scriptID, "error", err)
	if logErr := s.sink.AppendLine(scriptID, fmt.Sprintf("Internal Error: %s", err.Error())); logErr != nil {
		logger.Error(ctx, "supervisor: cannot write internal error block", "script_id", scriptID, "error", logErr)
	}
}

func (s *Supervisor) maybeNotify(ctx context.Context, sc *model.Script, isDaemon bool, status model.RunStatus, elapsed time.Duration) {
	if s.notifier == nil || isDaemon {
		return
	}
	settings, err := s.store.ListSettings(ctx)
	if err != nil {
		logger.Warn(ctx, "supervisor: cannot load settings for notification", "error", err)
		return
	}
	if model.SettingTrue(settings, model.SettingTGNotifyOnFailureOnly) && status == model.StatusSuccess {
		return
	}
	text, err := notifier.FormatRunSummary(sc.Name, string(status), elapsed)
	if err != nil {
		logger.Warn(ctx, "supervisor: cannot render notification", "error", err)
		return
	}
	s.notifier.Notify(ctx, text)
}

// stdbufAvailable reports whether the stdbuf binary is present on PATH,
// checked once per Supervisor instance (§4.1's fallback note).
func (s *Supervisor) stdbufAvailable() bool {
	s.stdbufOnce.Do(func() {
		_, err := exec.LookPath("stdbuf")
		s.stdbufFound = err == nil
	})
	return s.stdbufFound
}
