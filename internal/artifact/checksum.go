// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrChecksumMismatch indicates the computed SHA256 hash does not match
	// the published hash.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrChecksumNotListed indicates checksums.txt has no entry for the asset.
	ErrChecksumNotListed = errors.New("asset not listed in checksums")

	// errNoValidEntries indicates the checksums file contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

type (
	// ChecksumEntry is one "{sha256_hex}  {filename}" line from checksums.txt.
	ChecksumEntry struct {
		Hash     string // Hex-encoded SHA256 hash (64 characters)
		Filename string // Asset filename this hash applies to
	}

	// ChecksumError details a verification failure. It wraps
	// ErrChecksumMismatch so callers can classify with errors.Is.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error shows both expected and actual hash values for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ParseChecksums parses sha256sum output: "{sha256_hex}  {filename}" per
// line, two spaces between hash and filename. Empty and malformed lines are
// silently skipped; a file with no valid entries at all is an error.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}

		hash := parts[0]
		filename := strings.TrimSpace(parts[1])
		if filename == "" || !isValidHexHash(hash) {
			continue
		}

		entries = append(entries, ChecksumEntry{
			Hash:     strings.ToLower(hash),
			Filename: filename,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(entries) == 0 {
		return nil, errNoValidEntries
	}

	return entries, nil
}

// FindChecksum returns the hash recorded for filename, or
// ErrChecksumNotListed when no entry matches.
func FindChecksum(entries []ChecksumEntry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filename, ErrChecksumNotListed)
}

// VerifyFile compares the SHA256 hash of the file at path with expectedHash
// (case-insensitive). A mismatch returns a *ChecksumError.
func VerifyFile(path, expectedHash string) error {
	got, err := computeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}

	return nil
}

// computeFileHash streams the file through SHA256 and returns the lowercase
// hex digest.
func computeFileHash(path string) (_ string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// isValidHexHash checks if s is a 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
