package logsink

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailer_Stream_SnapshotThenAppend(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.AppendLine(1, "first"))

	tailer := &Tailer{Sink: s, PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var chunks []string
	done := make(chan error, 1)

	go func() {
		done <- tailer.Stream(ctx, 1, func(b []byte) error {
			mu.Lock()
			chunks = append(chunks, string(b))
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(chunks) >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.AppendLine(1, "second"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range chunks {
			if c == "second\n" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	assert.Equal(t, "first\n", chunks[0])
	mu.Unlock()
}

func TestTailer_Stream_WaitsForFileCreation(t *testing.T) {
	s := New(t.TempDir())
	tailer := &Tailer{Sink: s, PollInterval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var waitMessages int
	var gotContent bool
	done := make(chan error, 1)

	go func() {
		done <- tailer.Stream(ctx, 7, func(b []byte) error {
			mu.Lock()
			switch string(b) {
			case "Waiting for log file creation...\n":
				waitMessages++
			case "now exists\n":
				gotContent = true
			}
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return waitMessages >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.AppendLine(7, "now exists"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotContent
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestTailer_Stream_StopsOnSendError(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.AppendLine(1, "x"))

	tailer := &Tailer{Sink: s, PollInterval: 10 * time.Millisecond}
	boom := assert.AnError

	err := tailer.Stream(context.Background(), 1, func(b []byte) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTailer_Stream_HandlesRotationTruncation(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.AppendLine(1, "before rotation"))

	tailer := &Tailer{Sink: s, PollInterval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var chunks []string
	done := make(chan error, 1)

	go func() {
		done <- tailer.Stream(ctx, 1, func(b []byte) error {
			mu.Lock()
			chunks = append(chunks, string(b))
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(chunks) >= 1
	}, time.Second, 5*time.Millisecond)

	// Simulate rotation: the file shrinks below the tailer's current offset.
	require.NoError(t, os.Truncate(s.Path(1), 0))
	require.NoError(t, s.AppendLine(1, "after rotation"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range chunks {
			if c == "after rotation\n" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
