//go:build windows
// +build windows

package store

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// Windows has no flock; LockFileEx over the first byte of the sidecar file
// gives the same advisory exclusive/shared semantics.
var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = kernel32.NewProc("LockFileEx")
	procUnlockFileEx = kernel32.NewProc("UnlockFileEx")
)

const lockfileExclusiveLock = 0x00000002

func lockFileRange(f *os.File, flags uintptr) error {
	var ov syscall.Overlapped
	ret, _, err := procLockFileEx.Call(f.Fd(), flags, 0, 1, 0, uintptr(unsafe.Pointer(&ov)))
	if ret == 0 {
		return err
	}
	return nil
}

// lockExclusive takes a write lock on the sidecar lock file, blocking until
// any other holder lets go. Persist takes this before rewriting the snapshot.
func lockExclusive(f *os.File) error {
	if err := lockFileRange(f, lockfileExclusiveLock); err != nil {
		return fmt.Errorf("exclusive lock on %s: %w", f.Name(), err)
	}
	return nil
}

// lockShared takes a read lock; any number of loaders may hold it at once.
// LockFileEx without the exclusive flag grants a shared lock.
func lockShared(f *os.File) error {
	if err := lockFileRange(f, 0); err != nil {
		return fmt.Errorf("shared lock on %s: %w", f.Name(), err)
	}
	return nil
}

func unlockFile(f *os.File) error {
	var ov syscall.Overlapped
	ret, _, err := procUnlockFileEx.Call(f.Fd(), 0, 1, 0, uintptr(unsafe.Pointer(&ov)))
	if ret == 0 {
		return fmt.Errorf("unlock %s: %w", f.Name(), err)
	}
	return nil
}
