package domain

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func u64(v uint64) *uint64 { return &v }

func u32(v uint32) *uint32 { return &v }

func sizeRule(dir string, maxSize uint64, generations uint32) Rule {
	return Rule{
		Name:           "app",
		TargetPath:     filepath.Join(dir, "*.log"),
		MaxSizeBytes:   u64(maxSize),
		MaxGenerations: generations,
	}
}

func writeFile(t *testing.T, path string, size int) {
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0640))
}

func fileSize(t *testing.T, path string) int64 {
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func listDir(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names
}

// snapshot captures name, size and mtime of every file in dir.
func snapshot(t *testing.T, dir string) map[string]string {
	result := make(map[string]string)

	for _, name := range listDir(t, dir) {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		result[name] = fmt.Sprintf("%s/%d/%s", info.ModTime().Format(time.RFC3339Nano), info.Size(), info.Mode())
	}

	return result
}
