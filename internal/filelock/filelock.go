// Package filelock provides advisory, single-writer-per-path file
// locking for ELF cache builds, wrapping golang.org/x/sys/unix.Flock
// the way the teacher wraps other low-level syscalls directly rather
// than reaching for a higher-level lock package.
package filelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock holds an exclusive advisory lock on path+".lock" until Unlock
// is called.
type Lock struct {
	file *os.File
}

// Acquire blocks until it holds an exclusive lock on path+".lock",
// creating the lock file if necessary. Concurrent ELF cache builds of
// distinct binaries each acquire their own lock and never contend.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("filelock: flock %s: %w", path, err)
	}
	return &Lock{file: f}, nil
}

// Unlock releases the lock and closes the underlying file descriptor.
func (l *Lock) Unlock() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("filelock: unlock: %w", err)
	}
	return l.file.Close()
}
