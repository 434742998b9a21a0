package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_Scan(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "app.log"), 1200)
	writeFile(t, filepath.Join(dir, "app.log.1"), 10)
	writeFile(t, filepath.Join(dir, "app.log.2.gz"), 5)
	writeFile(t, filepath.Join(dir, "notes.txt"), 5)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.log"), 0755))

	s := NewScanner(discardLogger())

	records, err := s.Scan(context.Background(), sizeRule(dir, 1000, 3))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, filepath.Join(dir, "app.log"), records[0].Path)
	assert.False(t, records[0].IsGeneration())
	assert.Equal(t, uint64(1200), records[0].SizeBytes)

	assert.Equal(t, filepath.Join(dir, "app.log.1"), records[1].Path)
	assert.Equal(t, filepath.Join(dir, "app.log"), records[1].Base)
	assert.Equal(t, uint32(1), *records[1].GenerationIndex)

	assert.Equal(t, "gz", records[2].Archive)
	assert.Equal(t, uint32(2), *records[2].GenerationIndex)
}

func TestScanner_Scan_LiteralPath(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "app.log"), 1)
	writeFile(t, filepath.Join(dir, "other.log"), 1)

	rule := sizeRule(dir, 1000, 3)
	rule.TargetPath = filepath.Join(dir, "app.log")

	records, err := NewScanner(discardLogger()).Scan(context.Background(), rule)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rule.TargetPath, records[0].Path)
}

func TestScanner_Scan_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()

	writeFile(t, filepath.Join(other, "real.log"), 2000)
	require.NoError(t, os.Symlink(filepath.Join(other, "real.log"), filepath.Join(dir, "link.log")))
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "loop.log")))

	rule := sizeRule(dir, 1000, 3)

	records, err := NewScanner(discardLogger()).Scan(context.Background(), rule)
	require.NoError(t, err)
	assert.Empty(t, records)

	rule.FollowSymlinks = true

	records, err = NewScanner(discardLogger()).Scan(context.Background(), rule)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(dir, "link.log"), records[0].Path)
	assert.Equal(t, uint64(2000), records[0].SizeBytes)
}

func TestScanner_Scan_ReflectsCurrentState(t *testing.T) {
	dir := t.TempDir()
	s := NewScanner(discardLogger())
	rule := sizeRule(dir, 1000, 3)

	records, err := s.Scan(context.Background(), rule)
	require.NoError(t, err)
	assert.Empty(t, records)

	writeFile(t, filepath.Join(dir, "app.log"), 1)

	records, err = s.Scan(context.Background(), rule)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestScanner_Scan_MissingDirectory(t *testing.T) {
	rule := sizeRule(filepath.Join(t.TempDir(), "missing"), 1000, 3)

	_, err := NewScanner(discardLogger()).Scan(context.Background(), rule)

	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "app", scanErr.Rule)
	assert.True(t, os.IsNotExist(scanErr.Err))
}

func TestScanner_Scan_CatchAllPattern(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "app.log"), 10)
	writeFile(t, filepath.Join(dir, "app.log.7"), 10)
	writeFile(t, filepath.Join(dir, "worker.7"), 10)

	rule := sizeRule(dir, 1000, 2)
	rule.TargetPath = filepath.Join(dir, "*")

	records, err := NewScanner(discardLogger()).Scan(context.Background(), rule)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, filepath.Join(dir, "app.log.7"), records[1].Path)
	assert.True(t, records[1].IsGeneration())

	// No "worker" next to it, so this is a live file and not generation 7.
	assert.Equal(t, filepath.Join(dir, "worker.7"), records[2].Path)
	assert.False(t, records[2].IsGeneration())

	for _, plan := range PlanTarget(rule, records, time.Now()) {
		if plan.Target.Path == filepath.Join(dir, "worker.7") {
			assert.Equal(t, ActionNone, plan.Action)
		}
	}
}

func TestScanner_Scan_OrphanGenerationOfNarrowPattern(t *testing.T) {
	dir := t.TempDir()

	// The live file is gone, but "*.log" cannot match the copy as live.
	writeFile(t, filepath.Join(dir, "app.log.5"), 10)

	records, err := NewScanner(discardLogger()).Scan(context.Background(), sizeRule(dir, 1000, 2))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsGeneration())
}
