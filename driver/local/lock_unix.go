//go:build unix

package local

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an advisory flock on f.
func lockFile(f *os.File, flags WriteFlags) error {
	how := unix.LOCK_EX
	if flags&LockExclusive == 0 {
		how = unix.LOCK_SH
	}
	if flags&LockNonBlocking != 0 {
		how |= unix.LOCK_NB
	}
	return unix.Flock(int(f.Fd()), how)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
