//go:build !linux

package prefetch

import "os"

// adviseWillNeed is the fallback path on platforms without fadvise: the
// open call itself has already warmed the OS file cache for the common
// case, so there is nothing further to do.
func adviseWillNeed(f *os.File) {}
