//go:build unix

package util

import (
	"os"
	"syscall"
)

// CopyOwner gives path the owner and group recorded in info. It is a no-op
// when info carries no ownership data.
func CopyOwner(path string, info os.FileInfo) error {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}

	return os.Lchown(path, int(st.Uid), int(st.Gid))
}
