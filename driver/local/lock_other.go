//go:build !unix && !windows

package local

import "os"

func lockFile(*os.File, WriteFlags) error { return nil }

func unlockFile(*os.File) error { return nil }
