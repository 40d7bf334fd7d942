// Package store is the Catalog Adapter: the read/write interface onto the
// persistent store that every core component uses to resolve script
// configuration and record status (§4.6/§3 of the spec). The concrete
// implementation is SQLite-backed (store.go's companion sqlite.go); the
// interface exists so Supervisor, Job Registry, and Health Checker never
// depend on the storage engine directly.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/scriptd/scriptd/internal/model"
)

// ErrNotFound is returned when a script or setting lookup finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicatePath is returned by CreateScript when another record already
// has the same path (§3.1 invariant: path is unique across records).
var ErrDuplicatePath = errors.New("store: duplicate script path")

// Store is the Catalog Adapter consumed by every core component.
type Store interface {
	CreateScript(ctx context.Context, s *model.Script) error
	GetScript(ctx context.Context, id int64) (*model.Script, error)
	FindScriptByPath(ctx context.Context, path string) (*model.Script, error)
	ListScripts(ctx context.Context) ([]*model.Script, error)
	UpdateScript(ctx context.Context, s *model.Script) error
	UpdateScriptRunStart(ctx context.Context, id int64, startedAt time.Time) error
	UpdateScriptStatus(ctx context.Context, id int64, status model.RunStatus, lastOutput string) error
	DeleteScript(ctx context.Context, id int64) error
	ResetRunningToIdle(ctx context.Context) (int, error)
	ListRunningDaemons(ctx context.Context) ([]*model.Script, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	ListSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}
