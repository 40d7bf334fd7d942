// Package buildinfo holds the values stamped into the binary at build time
// via -ldflags, along with the information surfaced by the version command
// and the /api/healthz endpoint.
package buildinfo

import (
	"strings"
	"time"
)

var (
	Version   = "dev"
	AppName   = "scriptd"
	Commit    = ""
	BuildDate = ""
	Slug      = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}

// StartedAt is recorded once at process init and used by /api/healthz to
// report uptime.
var StartedAt = time.Now()

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartedAt)
}
