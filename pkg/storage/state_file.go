package storage

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/yurykabanov/logrotate/pkg/domain"
)

// FileStateRepository keeps rotation state in memory and persists it as a
// single JSON document mapping target path to the last rotation time. The
// document is loaded on open. Flush merges the changes made since into the
// current document under a file lock and rewrites it atomically, so
// overlapping runs do not lose each other's entries.
type FileStateRepository struct {
	path string

	mu      sync.RWMutex
	states  map[string]time.Time
	changed map[string]time.Time
	removed map[string]bool
}

func OpenFileStateRepository(path string) (*FileStateRepository, error) {
	states, err := readStateFile(path)
	if err != nil {
		return nil, err
	}

	return &FileStateRepository{
		path:    path,
		states:  states,
		changed: make(map[string]time.Time),
		removed: make(map[string]bool),
	}, nil
}

// NewMemoryStateRepository returns a repository that is not backed by any
// file. Flush never writes.
func NewMemoryStateRepository() *FileStateRepository {
	return &FileStateRepository{
		states:  make(map[string]time.Time),
		changed: make(map[string]time.Time),
		removed: make(map[string]bool),
	}
}

func readStateFile(path string) (map[string]time.Time, error) {
	states := make(map[string]time.Time)

	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return states, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Unable to read state file")
	}

	if len(data) == 0 {
		return states, nil
	}

	err = json.Unmarshal(data, &states)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to parse state file %s", path)
	}

	return states, nil
}

func (r *FileStateRepository) LastRotatedAt(_ context.Context, targetPath string) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	at, ok := r.states[targetPath]
	return at, ok, nil
}

func (r *FileStateRepository) RecordSuccess(_ context.Context, targetPath string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[targetPath] = at.UTC()
	r.changed[targetPath] = at.UTC()
	delete(r.removed, targetPath)

	return nil
}

func (r *FileStateRepository) Prune(_ context.Context, keep func(targetPath string) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for targetPath := range r.states {
		if !keep(targetPath) {
			delete(r.states, targetPath)
			delete(r.changed, targetPath)
			r.removed[targetPath] = true
		}
	}

	return nil
}

func (r *FileStateRepository) All(context.Context) ([]domain.RotationState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]domain.RotationState, 0, len(r.states))
	for targetPath, at := range r.states {
		states = append(states, domain.RotationState{TargetPath: targetPath, LastRotatedAt: at})
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].TargetPath < states[j].TargetPath
	})

	return states, nil
}

// Flush writes the state to a temp file in the same directory and renames
// it over the previous document.
func (r *FileStateRepository) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" || (len(r.changed) == 0 && len(r.removed) == 0) {
		return nil
	}

	dir := filepath.Dir(r.path)

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	fl := flock.New(r.path + ".lock")

	err = fl.Lock()
	if err != nil {
		return errors.Wrap(err, "Unable to lock state file")
	}
	defer fl.Unlock()

	states, err := readStateFile(r.path)
	if err != nil {
		return err
	}

	for targetPath := range r.removed {
		delete(states, targetPath)
	}
	for targetPath, at := range r.changed {
		if current, ok := states[targetPath]; !ok || at.After(current) {
			states[targetPath] = at
		}
	}

	err = writeStateFile(r.path, states)
	if err != nil {
		return err
	}

	r.states = states
	r.changed = make(map[string]time.Time)
	r.removed = make(map[string]bool)

	return nil
}

func writeStateFile(path string, states map[string]time.Time) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := ioutil.TempFile(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "Unable to write state file")
	}

	return nil
}
