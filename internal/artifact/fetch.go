// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/wayposthq/waypost-installer/internal/platform"
	"github.com/wayposthq/waypost-installer/internal/release"
)

// checksumsAssetName is the conventional name of the published digest list.
const checksumsAssetName = "checksums.txt"

// ErrDownload is the sentinel error wrapped by DownloadError.
var ErrDownload = errors.New("asset download failed")

type (
	// DownloadError reports a failed asset download, naming the attempted
	// URL and the resolved platform. It wraps ErrDownload for errors.Is()
	// classification.
	DownloadError struct {
		URL      string
		Platform platform.Platform
		Err      error
	}

	// Fetcher downloads a release asset into a Workspace and extracts it.
	// It never touches the installation directory.
	Fetcher struct {
		client  *release.Client
		product string
		logger  *log.Logger
	}
)

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s for %s: %v (is there a published build for this platform?)", e.URL, e.Platform, e.Err)
}

// Unwrap returns ErrDownload so callers can use errors.Is.
func (e *DownloadError) Unwrap() error { return ErrDownload }

// NewFetcher creates a Fetcher for the given product using the provided
// release client.
func NewFetcher(client *release.Client, product string, logger *log.Logger) *Fetcher {
	return &Fetcher{client: client, product: product, logger: logger}
}

// Fetch downloads the platform asset of rel into ws, verifies it against
// checksums.txt when the release publishes one, and extracts the archive.
// It returns the path of the extracted product directory inside ws.
func (f *Fetcher) Fetch(ctx context.Context, ws *Workspace, rel *release.Release, plat platform.Platform) (string, error) {
	assetName := plat.AssetName(f.product)
	assetURL := f.resolveURL(rel, assetName)

	archivePath := ws.Path(assetName)
	f.logger.Info("downloading release asset", "url", assetURL)
	if err := f.downloadToFile(ctx, assetURL, archivePath); err != nil {
		return "", &DownloadError{URL: assetURL, Platform: plat, Err: err}
	}

	if err := f.verifyChecksum(ctx, rel, plat, assetName, archivePath); err != nil {
		return "", err
	}

	extractDir, err := ws.ExtractDir()
	if err != nil {
		return "", err
	}

	f.logger.Debug("extracting archive", "archive", archivePath, "dest", extractDir)
	if err := extractTarGz(archivePath, extractDir); err != nil {
		return "", err
	}

	return productDir(extractDir, f.product), nil
}

// resolveURL prefers the download URL advertised in the release metadata and
// falls back to the canonical releases/download URL when the index did not
// enumerate assets.
func (f *Fetcher) resolveURL(rel *release.Release, assetName string) string {
	if asset, ok := release.FindAsset(rel, assetName); ok && asset.BrowserDownloadURL != "" {
		return asset.BrowserDownloadURL
	}
	return f.client.AssetURL(rel, assetName)
}

// verifyChecksum checks the downloaded archive against the release's
// checksums.txt. A release without a checksums asset degrades to an
// informational skip; a published digest that does not match is fatal, and
// a checksums asset that exists but cannot be fetched is a download failure.
func (f *Fetcher) verifyChecksum(ctx context.Context, rel *release.Release, plat platform.Platform, assetName, archivePath string) error {
	asset, ok := release.FindAsset(rel, checksumsAssetName)
	if !ok {
		f.logger.Info("release publishes no checksums.txt, skipping verification")
		return nil
	}

	body, err := f.client.DownloadAsset(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return &DownloadError{
			URL:      asset.BrowserDownloadURL,
			Platform: plat,
			Err:      fmt.Errorf("downloading %s: %w", checksumsAssetName, err),
		}
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	entries, err := ParseChecksums(body)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", checksumsAssetName, err)
	}

	expected, err := FindChecksum(entries, assetName)
	if err != nil {
		f.logger.Warn("asset has no published checksum, skipping verification", "asset", assetName)
		return nil
	}

	if err := VerifyFile(archivePath, expected); err != nil {
		return err
	}

	f.logger.Debug("checksum verified", "asset", assetName)
	return nil
}

// downloadToFile streams the asset at url into destPath. A partial file left
// by a failed copy is removed so re-runs start clean.
func (f *Fetcher) downloadToFile(ctx context.Context, url, destPath string) (err error) {
	body, err := f.client.DownloadAsset(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, body); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}

	return nil
}
