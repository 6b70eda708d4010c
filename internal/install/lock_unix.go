// SPDX-License-Identifier: MPL-2.0

//go:build unix

package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrLockHeld is returned when another orchestrator run already holds the
// installation lock.
var ErrLockHeld = errors.New("another waypost-install run is already in progress for this installation")

// Lock holds a non-blocking exclusive flock on a well-known file next to the
// installation directory, serializing the backup/remove/swap sequence across
// processes. The zero-byte lock file is harmless if orphaned: the kernel
// releases the flock automatically when the fd is closed (including on
// process crash).
type Lock struct {
	file *os.File
}

// AcquireLock opens (or creates) the lock file for installDir and attempts
// an exclusive non-blocking flock. A held lock returns ErrLockHeld
// immediately rather than waiting: the sibling run will finish the same
// work, and serializing behind it would only repeat it.
func AcquireLock(installDir string) (*Lock, error) {
	lockPath := installDir + ".lock"

	// The parent survives the mid-swap window when installDir is absent.
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock parent dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	return &Lock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to
// call multiple times; subsequent calls are no-ops.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
