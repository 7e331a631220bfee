//go:build !windows

package fs

import (
	"os"
	"syscall"
)

// DeviceID returns the id of the device holding the entry at path, and
// false when it can't be determined. Only info is consulted here.
func DeviceID(_ string, info os.FileInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true //nolint:unconvert // Dev is int32 on some platforms
}
