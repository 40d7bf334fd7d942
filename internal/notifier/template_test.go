package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunSummary(t *testing.T) {
	text, err := FormatRunSummary("backup-db", "success", 90*time.Second)
	require.NoError(t, err)
	assert.Contains(t, text, "🚀 Script: backup-db")
	assert.Contains(t, text, "Status: success")
	assert.Contains(t, text, "Elapsed:")
}

func TestFormatHealthAlert(t *testing.T) {
	text, err := FormatHealthAlert([]string{"🔴 Daemon [watcher] stopped unexpectedly"})
	require.NoError(t, err)
	assert.Contains(t, text, "🏥 Health-check alert")
	assert.Contains(t, text, "🔴 Daemon [watcher] stopped unexpectedly")
}
