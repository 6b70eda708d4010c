// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package install

import "errors"

// ErrLockHeld is defined for cross-platform compatibility with
// lock_unix.go. Non-unix hosts are rejected by the platform resolver before
// a lock is ever taken, so this stub only keeps cross-compiles building.
var ErrLockHeld = errors.New("another waypost-install run is already in progress for this installation")

// Lock is a no-op on platforms without flock.
type Lock struct{}

// AcquireLock returns a no-op lock.
func AcquireLock(string) (*Lock, error) { return &Lock{}, nil }

// Release is a no-op.
func (l *Lock) Release() {}
