package logsink

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the tailer's polling cadence; §4.3 requires no
// slower than 500ms.
const DefaultPollInterval = 500 * time.Millisecond

// fileWaitAttempts bounds how many polling attempts the tailer spends
// actively reporting "Waiting for log file creation..." before it falls
// back to silent polling (§4.3: roughly 5s at the default cadence).
const fileWaitAttempts = 10

// Tailer streams a script's log file to a subscriber, starting from the
// current contents and following appends.
type Tailer struct {
	Sink         *Sink
	PollInterval time.Duration
}

// NewTailer builds a Tailer over sink using DefaultPollInterval.
func NewTailer(sink *Sink) *Tailer {
	return &Tailer{Sink: sink, PollInterval: DefaultPollInterval}
}

// Stream blocks, invoking send with the file's existing contents first and
// then with each subsequent append, until ctx is canceled or send returns an
// error. If the log file doesn't exist yet, Stream waits for it to appear,
// informing the subscriber via send for the first fileWaitAttempts polls
// (§4.3); after that it keeps waiting silently rather than giving up, since
// a script that hasn't started yet still has a legitimate future log.
func (t *Tailer) Stream(ctx context.Context, scriptID int64, send func([]byte) error) error {
	interval := t.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	path := t.Sink.Path(scriptID)

	watcher, _ := fsnotify.NewWatcher()
	if watcher != nil {
		defer watcher.Close()
		_ = watcher.Add(t.Sink.Root)
	}

	f, err := t.waitForFile(ctx, path, interval, watcher, send)
	if err != nil {
		return err
	}
	defer f.Close()

	if offset, err := t.sendSnapshot(f, send); err != nil {
		return err
	} else {
		return t.followAppends(ctx, f, offset, interval, watcher, send)
	}
}

func (t *Tailer) waitForFile(ctx context.Context, path string, interval time.Duration, watcher *fsnotify.Watcher, send func([]byte) error) (*os.File, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		if f, err := os.Open(path); err == nil {
			return f, nil
		} else if !os.IsNotExist(err) {
			return nil, err
		}

		if attempts < fileWaitAttempts {
			if err := send([]byte("Waiting for log file creation...\n")); err != nil {
				return nil, err
			}
		}
		attempts++

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		case <-watcherEvents(watcher):
		}
	}
}

func (t *Tailer) sendSnapshot(f *os.File, send func([]byte) error) (int64, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if err := send([]byte(sanitizeUTF8(data))); err != nil {
			return 0, err
		}
	}
	offset, err := f.Seek(0, io.SeekCurrent)
	return offset, err
}

func (t *Tailer) followAppends(ctx context.Context, f *os.File, offset int64, interval time.Duration, watcher *fsnotify.Watcher, send func([]byte) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-watcherEvents(watcher):
		}

		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			// File was truncated by rotation; resume from the new start.
			offset = 0
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		if info.Size() == offset {
			continue
		}

		buf := make([]byte, info.Size()-offset)
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return err
		}
		offset += int64(n)
		if n > 0 {
			if err := send([]byte(sanitizeUTF8(buf[:n]))); err != nil {
				return err
			}
		}
	}
}

// watcherEvents returns watcher's event channel, or nil (which blocks
// forever in a select) when fsnotify is unavailable, so its use is purely
// an optional latency hint on top of the poll ticker — never a replacement.
func watcherEvents(watcher *fsnotify.Watcher) <-chan fsnotify.Event {
	if watcher == nil {
		return nil
	}
	return watcher.Events
}
