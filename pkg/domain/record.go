package domain

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yurykabanov/logrotate/pkg/archive"
)

// FileRecord describes a file found by a scan. Records are never persisted.
type FileRecord struct {
	Path       string
	SizeBytes  uint64
	ModifiedAt time.Time
	Mode       os.FileMode

	// Live file the record belongs to. Equal to Path for live files.
	Base string

	// Set for rotated copies only, 1 is the most recent one.
	GenerationIndex *uint32

	// Archive extension of a compressed generation ("gz", "zip", ...).
	Archive string
}

func (r FileRecord) IsGeneration() bool {
	return r.GenerationIndex != nil
}

func (r FileRecord) Generation() (uint32, bool) {
	if r.GenerationIndex == nil {
		return 0, false
	}
	return *r.GenerationIndex, true
}

// GenerationPath names generation index of base, e.g. "app.log.2.gz".
func GenerationPath(base string, index uint32, ext string) string {
	p := base + "." + strconv.FormatUint(uint64(index), 10)
	if ext != "" {
		p += "." + ext
	}
	return p
}

// parseGeneration splits "app.log.3.gz" into ("app.log", 3, "gz").
func parseGeneration(name string) (string, uint32, string, bool) {
	rest, ext := archive.SplitExtension(name)

	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return "", 0, "", false
	}

	digits := rest[dot+1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", 0, "", false
		}
	}

	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || n == 0 {
		return "", 0, "", false
	}

	return rest[:dot], uint32(n), ext, true
}

type generation struct {
	path  string
	index uint32
	ext   string
}

// listGenerations reads the current rotated copies of base from disk.
func listGenerations(base string) ([]generation, error) {
	entries, err := os.ReadDir(filepath.Dir(base))
	if err != nil {
		return nil, err
	}

	name := filepath.Base(base)

	var result []generation
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		live, index, ext, ok := parseGeneration(e.Name())
		if !ok || live != name {
			continue
		}

		result = append(result, generation{
			path:  filepath.Join(filepath.Dir(base), e.Name()),
			index: index,
			ext:   ext,
		})
	}

	return result, nil
}
