// Package logsink is the Log Sink (§4.3): one append-only, line-buffered
// log file per script at <log-root>/<script_id>.log, size-rotated at 2 MiB,
// plus a tailing reader for streaming to subscribers.
package logsink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scriptd/scriptd/internal/model"
)

// Sink manages the per-script log files under Root.
type Sink struct {
	Root string
}

// New creates a Sink rooted at root.
func New(root string) *Sink {
	return &Sink{Root: root}
}

// Path returns the stable log file path for a script id.
func (s *Sink) Path(scriptID int64) string {
	return filepath.Join(s.Root, fmt.Sprintf("%d.log", scriptID))
}

// EnsureDir creates the log root directory if it doesn't exist.
func (s *Sink) EnsureDir() error {
	return os.MkdirAll(s.Root, 0o755)
}

// RotateIfOversized truncates the script's log to a single rotation header
// when it exceeds model.LogRotateThresholdBytes, as required before the next
// launch (§4.1, §8 invariant 5: log size never stays above the threshold
// across two successive launches of the same script).
func (s *Sink) RotateIfOversized(scriptID int64, now time.Time) error {
	path := s.Path(scriptID)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() <= model.LogRotateThresholdBytes {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("truncate log file for rotation: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "=== Log rotated at %s ===\n", now.Format(time.RFC3339))
	return err
}

// AppendLine appends a single line (with trailing newline) to the script's
// log file, creating it if necessary.
func (s *Sink) AppendLine(scriptID int64, line string) error {
	f, err := os.OpenFile(s.Path(scriptID), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

// Writer opens the log file for append with line buffering, for the
// Supervisor's stdout-copy loop to write through.
func (s *Sink) Writer(scriptID int64) (*LineWriter, error) {
	f, err := os.OpenFile(s.Path(scriptID), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file for writing: %w", err)
	}
	return &LineWriter{file: f, w: bufio.NewWriter(f)}, nil
}

// Tail returns the full current contents of the script's log file, decoding
// invalid UTF-8 bytes with the replacement character rather than failing
// (§4.3: "plain UTF-8; invalid bytes are replaced, never fatal"). Callers
// that need the bounded last_output slice use model.TruncateLastOutput on
// the result.
func (s *Sink) Tail(scriptID int64) (string, error) {
	data, err := os.ReadFile(s.Path(scriptID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log file: %w", err)
	}
	return sanitizeUTF8(data), nil
}

// LineWriter wraps a *os.File with a buffered writer that flushes after
// every write, giving line-buffered semantics so concurrent tailers observe
// appended output within the ≤1s visibility bound (§4.1).
type LineWriter struct {
	file *os.File
	w    *bufio.Writer
}

// WriteLine writes s followed by a newline and flushes immediately.
func (lw *LineWriter) WriteLine(s string) error {
	if _, err := lw.w.WriteString(s); err != nil {
		return err
	}
	if err := lw.w.WriteByte('\n'); err != nil {
		return err
	}
	return lw.w.Flush()
}

// Close flushes and closes the underlying file.
func (lw *LineWriter) Close() error {
	_ = lw.w.Flush()
	return lw.file.Close()
}
