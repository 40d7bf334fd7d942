package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/store"
)

// recognizedExtension maps a recognized script file extension to the
// ScriptType a newly-discovered file is inserted with (§4.6 step 7).
var recognizedExtension = map[string]model.ScriptType{
	".sh":   model.ScriptTypeShell,
	".bash": model.ScriptTypeShell,
	".py":   model.ScriptTypeInterpreter,
	".rb":   model.ScriptTypeInterpreter,
	".js":   model.ScriptTypeInterpreter,
	".pl":   model.ScriptTypeInterpreter,
}

// recognizedGlob matches any nested path under the script root ending in a
// recognized extension (doublestar's "**" traverses subdirectories).
const recognizedGlob = "**/*.{sh,bash,py,rb,js,pl}"

// Syncer is the disk-sync component of Bootstrap (§4.6 step 7): it walks
// ScriptRoot for recognized files not yet present in the store (by absolute
// path, the catalog's uniqueness invariant) and inserts them as disabled
// records. It also implements api.Scanner for the on-demand POST /scan
// endpoint.
type Syncer struct {
	store      store.Store
	scriptRoot string

	mu sync.Mutex
}

// NewSyncer builds a Syncer rooted at scriptRoot.
func NewSyncer(st store.Store, scriptRoot string) *Syncer {
	return &Syncer{store: st, scriptRoot: scriptRoot}
}

// Sync walks ScriptRoot once and inserts any newly-discovered recognized
// files as disabled catalog records, returning the count inserted.
func (s *Syncer) Sync() (int, error) {
	// Serialized: concurrent disk-sync passes (startup, /scan, fsnotify
	// event) must not race each other's duplicate-path check.
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := s.store.ListScripts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list existing scripts: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, sc := range existing {
		known[sc.Path] = true
	}

	inserted := 0
	err = filepath.WalkDir(s.scriptRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.scriptRoot, path)
		if err != nil {
			return nil
		}
		matched, err := doublestar.Match(recognizedGlob, filepath.ToSlash(rel))
		if err != nil || !matched {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		if known[abs] {
			return nil
		}

		scriptType := recognizedExtension[strings.ToLower(filepath.Ext(path))]
		if !scriptType.Valid() {
			return nil
		}

		sc := &model.Script{
			Name:       strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Path:       abs,
			Type:       scriptType,
			Enabled:    false,
			CreatedAt:  time.Now(),
			LastStatus: model.StatusIdle,
		}
		if err := s.store.CreateScript(ctx, sc); err != nil {
			if errors.Is(err, store.ErrDuplicatePath) {
				return nil
			}
			return fmt.Errorf("insert discovered script %s: %w", abs, err)
		}
		known[abs] = true
		inserted++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return inserted, err
	}
	return inserted, nil
}

// Watch starts an fsnotify watch over ScriptRoot, running Sync on every
// Create/Rename event until ctx is canceled (§4.6 [ADD]: a supplement over
// the original, which only synced at startup and on the manual call).
func (s *Syncer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(s.scriptRoot, 0o755); err != nil {
		return fmt.Errorf("ensure script root exists: %w", err)
	}
	if err := watcher.Add(s.scriptRoot); err != nil {
		return fmt.Errorf("watch script root: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if _, err := s.Sync(); err != nil {
					logger.Warn(ctx, "bootstrap: disk-sync on fsnotify event failed", "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "bootstrap: fsnotify watch error", "error", err)
		}
	}
}
