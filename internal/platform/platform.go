// SPDX-License-Identifier: MPL-2.0

// Package platform maps the host operating system and machine architecture
// onto the normalized platform pairs waypost release assets are published
// for, and derives the asset filename for a pair. Resolution is pure: no
// network or filesystem access happens here, so an unsupported host fails
// before anything else runs.
package platform

import (
	"errors"
	"fmt"
	"runtime"
)

const (
	// Linux is the normalized identifier for Linux hosts.
	Linux OS = "linux"
	// Darwin is the normalized identifier for macOS hosts.
	Darwin OS = "darwin"

	// X64 is the normalized identifier for 64-bit x86 (amd64/x86_64).
	X64 Arch = "x64"
	// Arm64 is the normalized identifier for 64-bit ARM (arm64/aarch64).
	Arm64 Arch = "arm64"
)

// ErrUnsupportedPlatform is the sentinel error wrapped by
// UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

type (
	// OS is a normalized operating system identifier.
	OS string

	// Arch is a normalized machine architecture identifier.
	Arch string

	// Platform is a normalized (OS, Arch) pair from the fixed set waypost
	// publishes release assets for.
	Platform struct {
		OS   OS
		Arch Arch
	}

	// UnsupportedPlatformError is returned when the host OS or architecture
	// has no published release asset. It wraps ErrUnsupportedPlatform for
	// errors.Is() classification.
	UnsupportedPlatformError struct {
		GOOS   string
		GOARCH string
	}
)

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s (supported: linux/darwin on x64/arm64)", e.GOOS, e.GOARCH)
}

// Unwrap returns ErrUnsupportedPlatform so callers can use errors.Is.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Resolve normalizes a raw (GOOS, GOARCH)-style pair. The architecture also
// accepts the uname spellings (x86_64, aarch64) so values reported by the
// operating system can be passed through unchanged.
func Resolve(goos, goarch string) (Platform, error) {
	var p Platform

	switch goos {
	case "linux":
		p.OS = Linux
	case "darwin":
		p.OS = Darwin
	default:
		return Platform{}, &UnsupportedPlatformError{GOOS: goos, GOARCH: goarch}
	}

	switch goarch {
	case "amd64", "x86_64", "x64":
		p.Arch = X64
	case "arm64", "aarch64":
		p.Arch = Arm64
	default:
		return Platform{}, &UnsupportedPlatformError{GOOS: goos, GOARCH: goarch}
	}

	return p, nil
}

// Current resolves the platform of the running process.
func Current() (Platform, error) {
	return Resolve(runtime.GOOS, runtime.GOARCH)
}

// AssetName derives the release asset filename for the given product on
// this platform, e.g. "waypost-linux-x64.tar.gz".
func (p Platform) AssetName(product string) string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", product, p.OS, p.Arch)
}

// String returns the platform as "os/arch".
func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}
