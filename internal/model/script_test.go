package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScript_HasTimedTrigger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		s    Script
		want bool
	}{
		{"daemon never triggers", Script{Enabled: true, Cron: DaemonCron}, false},
		{"disabled never triggers", Script{Enabled: false, Cron: "* * * * *"}, false},
		{"no cron never triggers", Script{Enabled: true}, false},
		{"enabled with cron triggers", Script{Enabled: true, Cron: "* * * * *"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.s.HasTimedTrigger())
		})
	}
}

func TestScript_JobID(t *testing.T) {
	t.Parallel()
	s := Script{ID: 42}
	assert.Equal(t, "script_42", s.JobID())
}

func TestScript_IsDaemon(t *testing.T) {
	t.Parallel()
	assert.True(t, (&Script{Cron: "@daemon"}).IsDaemon())
	assert.False(t, (&Script{Cron: "* * * * *"}).IsDaemon())
}

func TestTruncateLastOutput(t *testing.T) {
	t.Parallel()

	short := "hello"
	assert.Equal(t, short, TruncateLastOutput(short))

	long := strings.Repeat("a", MaxLastOutputRunes+100)
	got := TruncateLastOutput(long)
	assert.Len(t, []rune(got), MaxLastOutputRunes)
	assert.Equal(t, long[100:], got)
}

func TestTruncateLastOutput_MultiByteSafe(t *testing.T) {
	t.Parallel()

	// A string whose rune length exceeds the cap but whose byte length per
	// rune is >1; ensure we never split a multi-byte rune.
	long := strings.Repeat("日本語", MaxLastOutputRunes)
	got := TruncateLastOutput(long)
	assert.Len(t, []rune(got), MaxLastOutputRunes)
	assert.True(t, strings.HasPrefix(long, strings.Repeat("日本語", 1)))
}

func TestSettingTrue(t *testing.T) {
	t.Parallel()

	settings := map[string]string{"enable_health_check": "true", "other": "false"}
	assert.True(t, SettingTrue(settings, "enable_health_check"))
	assert.False(t, SettingTrue(settings, "other"))
	assert.False(t, SettingTrue(settings, "missing"))
}

func TestScriptType_Valid(t *testing.T) {
	t.Parallel()
	assert.True(t, ScriptTypeInterpreter.Valid())
	assert.True(t, ScriptTypeShell.Valid())
	assert.False(t, ScriptType("binary").Valid())
}

func TestRunStatus_Valid(t *testing.T) {
	t.Parallel()
	assert.True(t, StatusRunning.Valid())
	assert.False(t, RunStatus("unknown").Valid())
}
