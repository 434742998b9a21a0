package lock

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// Manager hands out advisory file locks, one lock file per target, all kept
// under a single base directory.
type Manager struct {
	base string
}

func New(base string) *Manager {
	return &Manager{
		base: base,
	}
}

// TryLock takes the lock of target without blocking. ok is false when the
// lock is held by another process or another Manager.
func (m *Manager) TryLock(target string) (func() error, bool, error) {
	err := os.MkdirAll(m.base, 0755)
	if err != nil {
		return nil, false, errors.Wrap(err, "unable to create lock directory")
	}

	fl := flock.New(m.Path(target))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, errors.Wrapf(err, "unable to lock %s", fl.Path())
	}
	if !ok {
		return nil, false, nil
	}

	return fl.Unlock, true, nil
}

// Path is the lock file of target.
func (m *Manager) Path(target string) string {
	sum := sha1.Sum([]byte(target))
	return filepath.Join(m.base, hex.EncodeToString(sum[:10])+".lock")
}
