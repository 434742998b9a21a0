package domain

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotate/pkg/appcontext"
)

// Scanner lists the live files and rotated generations governed by a rule.
// Every call reads the filesystem again, nothing is cached between scans.
type Scanner struct {
	logger logrus.FieldLogger
}

func NewScanner(logger logrus.FieldLogger) *Scanner {
	return &Scanner{
		logger: logger,
	}
}

func (s *Scanner) Scan(ctx context.Context, rule Rule) ([]FileRecord, error) {
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	dir := filepath.Dir(rule.TargetPath)
	pattern := filepath.Base(rule.TargetPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ScanError{Rule: rule.Name, Directory: dir, Err: err}
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		present[entry.Name()] = true
	}

	var records []FileRecord

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		record := FileRecord{Path: path, Base: path}

		if live, index, ext, ok := parseGeneration(name); ok && isGeneration(pattern, name, live, present) {
			idx := index
			record.Base = filepath.Join(dir, live)
			record.GenerationIndex = &idx
			record.Archive = ext
		} else if !match(pattern, name) {
			continue
		}

		info, err := os.Lstat(path)
		if err != nil {
			logger.WithError(err).WithField("file", path).Warn("Skipping unreadable file")
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !rule.FollowSymlinks {
				logger.WithField("file", path).Debug("Skipping symlink")
				continue
			}

			info, err = os.Stat(path)
			if err != nil {
				logger.WithError(err).WithField("file", path).Warn("Skipping broken symlink")
				continue
			}
		}

		if !info.Mode().IsRegular() {
			continue
		}

		record.SizeBytes = uint64(info.Size())
		record.ModifiedAt = info.ModTime()
		record.Mode = info.Mode()

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})

	logger.WithField("total_files", len(records)).Debug("Scan finished")

	return records, nil
}

// isGeneration decides whether name, parsed as a rotated copy of live, is a
// generation. When the pattern accepts name as a live file too ("*"), it is
// a generation only while live exists next to it, so "worker.7" without a
// "worker" is rotated as a live file instead of being deleted by retention.
func isGeneration(pattern, name, live string, present map[string]bool) bool {
	if !match(pattern, live) {
		return false
	}

	return present[live] || !match(pattern, name)
}

func match(pattern, name string) bool {
	ok, _ := filepath.Match(pattern, name)
	return ok
}
