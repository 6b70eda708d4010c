// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxEntryBytes is the upper bound on a single extracted file (500 MB).
// Prevents decompression bombs in a hostile or corrupted archive.
const maxEntryBytes = 500 << 20

// ErrExtraction is the sentinel error wrapped by ExtractionError.
var ErrExtraction = errors.New("archive extraction failed")

// ExtractionError reports a failure to unpack the downloaded archive.
// It wraps ErrExtraction for errors.Is() classification.
type ExtractionError struct {
	Archive string
	Err     error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

// Unwrap returns ErrExtraction so callers can use errors.Is.
func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// extractTarGz unpacks the tar.gz archive at archivePath into destDir,
// recreating directories, regular files, and symlinks with their recorded
// modes. Entries that would escape destDir are rejected.
func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("reading tar entry: %w", nextErr)}
		}

		target, pathErr := securePath(destDir, hdr.Name)
		if pathErr != nil {
			return &ExtractionError{Archive: archivePath, Err: pathErr}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)&0o777|0o700); err != nil {
				return &ExtractionError{Archive: archivePath, Err: err}
			}

		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)&0o777); err != nil {
				return &ExtractionError{Archive: archivePath, Err: err}
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &ExtractionError{Archive: archivePath, Err: err}
			}
			// Reject links that point outside the extraction root.
			if filepath.IsAbs(hdr.Linkname) || strings.HasPrefix(filepath.Clean(hdr.Linkname), "..") {
				return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("symlink %s escapes archive root", hdr.Name)}
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return &ExtractionError{Archive: archivePath, Err: err}
			}

		default:
			// Hard links, devices, FIFOs have no place in a release archive.
			return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("unsupported entry type %d for %s", hdr.Typeflag, hdr.Name)}
		}
	}

	return nil
}

// writeEntry copies one regular-file tar entry to target.
func writeEntry(target string, r io.Reader, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode|0o200)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, io.LimitReader(r, maxEntryBytes)); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}

// securePath resolves an archive entry name inside root, rejecting absolute
// paths and traversal sequences.
func securePath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes archive root", name)
	}
	return filepath.Join(root, clean), nil
}

// productDir locates the extracted product tree inside extractDir. Archives
// normally contain a single top-level product directory; as a fallback the
// files may sit directly at archive root, in which case extractDir itself is
// the product tree.
func productDir(extractDir, product string) string {
	nested := filepath.Join(extractDir, product)
	if info, err := os.Stat(nested); err == nil && info.IsDir() {
		return nested
	}
	return extractDir
}
