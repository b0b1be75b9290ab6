//go:build linux

package prefetch

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseWillNeed issues the preferred readahead path: an explicit
// POSIX_FADV_WILLNEED hint to the kernel's page cache.
func adviseWillNeed(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
