//go:build !windows
// +build !windows

package store

import (
	"fmt"
	"os"
	"syscall"
)

// lockExclusive takes a write lock on the sidecar lock file, blocking until
// any other holder lets go. Persist takes this before rewriting the snapshot.
func lockExclusive(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("exclusive lock on %s: %w", f.Name(), err)
	}
	return nil
}

// lockShared takes a read lock; any number of loaders may hold it at once.
func lockShared(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		return fmt.Errorf("shared lock on %s: %w", f.Name(), err)
	}
	return nil
}

func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
