// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseChecksums_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"",
		"not a checksum line",
		"abcd  short-hash.tar.gz",
		strings.Repeat("a", 64) + "  waypost-linux-x64.tar.gz",
		strings.Repeat("b", 64) + "  waypost-darwin-arm64.tar.gz",
	}, "\n")

	entries, err := ParseChecksums(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Filename != "waypost-linux-x64.tar.gz" {
		t.Errorf("entry[0].Filename: got %q", entries[0].Filename)
	}
}

func TestParseChecksums_NoValidEntries(t *testing.T) {
	t.Parallel()

	if _, err := ParseChecksums(strings.NewReader("garbage\n")); err == nil {
		t.Fatal("expected error for file with no valid entries")
	}
}

func TestFindChecksum_NotListed(t *testing.T) {
	t.Parallel()

	entries := []ChecksumEntry{{Hash: strings.Repeat("a", 64), Filename: "other.tar.gz"}}
	if _, err := FindChecksum(entries, "waypost-linux-x64.tar.gz"); !errors.Is(err, ErrChecksumNotListed) {
		t.Fatalf("expected ErrChecksumNotListed, got %v", err)
	}
}

func TestVerifyFile_Mismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("writing blob: %v", err)
	}

	err := VerifyFile(path, strings.Repeat("0", 64))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	var csErr *ChecksumError
	if !errors.As(err, &csErr) {
		t.Fatalf("expected *ChecksumError, got %T", err)
	}
	if csErr.Got == csErr.Expected {
		t.Error("mismatch error reports identical hashes")
	}
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	archive := buildTarGz(t, []tarEntry{{name: "../escape", body: "nope"}})
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	if err := os.WriteFile(archivePath, archive, 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}

	err := extractTarGz(archivePath, t.TempDir())
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}
