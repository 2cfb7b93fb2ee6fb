//go:build windows

package local

import (
	"math"
	"os"

	"golang.org/x/sys/windows"
)

// lockFile locks the whole of f with LockFileEx.
func lockFile(f *os.File, flags WriteFlags) error {
	var how uint32
	if flags&LockExclusive != 0 {
		how |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	if flags&LockNonBlocking != 0 {
		how |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), how, 0, math.MaxUint32, math.MaxUint32, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, math.MaxUint32, math.MaxUint32, ol)
}
