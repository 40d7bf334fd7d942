package bootstrap

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// AcquireInstanceLock takes an advisory file lock over dataDir so two
// `scriptd serve` processes can't race the same SQLite file and log root
// (§4.6 [ADD]). Failure to acquire is a fatal startup error; the caller
// must release the returned lock on shutdown.
func AcquireInstanceLock(dataDir string) (*flock.Flock, error) {
	lockPath := filepath.Join(dataDir, ".scriptd.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another scriptd instance already holds %s", lockPath)
	}
	return lock, nil
}
