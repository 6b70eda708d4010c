// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
// Prevents unbounded memory consumption from malicious or malformed responses.
const maxJSONResponseBytes = 10 << 20

var (
	// ErrIndexUnreachable indicates the release index could not be reached at
	// all: DNS failure, refused connection, timeout. Re-running the installer
	// once the network is back is the documented recovery.
	ErrIndexUnreachable = errors.New("release index unreachable")

	// ErrVersionUnresolved indicates the index responded but the response
	// could not be turned into a non-empty version string.
	ErrVersionUnresolved = errors.New("could not resolve latest version")
)

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Release is the resolved descriptor of the latest published release.
	// Immutable once resolved.
	Release struct {
		TagName string  // Git tag, e.g. "v1.4.2"
		Name    string  // Human-readable release name
		HTMLURL string  // Browser URL for the release page
		Assets  []Asset // Downloadable artifacts
	}

	// Asset is a single downloadable file attached to a release.
	Asset struct {
		Name               string
		BrowserDownloadURL string
		Size               int64
		ContentType        string
	}

	// githubRelease is the JSON wire format of the releases/latest response.
	githubRelease struct {
		TagName string        `json:"tag_name"`
		Name    string        `json:"name"`
		HTMLURL string        `json:"html_url"`
		Assets  []githubAsset `json:"assets"`
	}

	// githubAsset is the JSON wire format for a release asset.
	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
		ContentType        string `json:"content_type"`
	}

	// Client queries a GitHub-style release index for the latest published
	// version and downloads release assets. There is no caching and no
	// pinning: every call resolves the current latest release.
	Client struct {
		httpClient  *http.Client
		owner       string // Repository owner (default: "wayposthq")
		repo        string // Repository name (default: "waypost")
		baseURL     string // API base URL (default: "https://api.github.com", overridable for tests)
		downloadURL string // Asset host base URL (default: "https://github.com", overridable for tests)
		token       string // Optional GITHUB_TOKEN for authenticated requests
		userAgent   string // User-Agent header value
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Version returns the release version with an optional leading "v" stripped.
func (r *Release) Version() string {
	return strings.TrimPrefix(strings.TrimSpace(r.TagName), "v")
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy setups.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *Client) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the release index base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *Client) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithDownloadBaseURL overrides the asset download host, primarily for test
// servers. Production assets live under https://github.com/<owner>/<repo>.
func WithDownloadBaseURL(base string) ClientOption {
	return func(g *Client) {
		g.downloadURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets a GitHub personal access token for authenticated requests.
// Authenticated requests have a higher rate limit (5000/hour vs 60/hour).
func WithToken(token string) ClientOption {
	return func(g *Client) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *Client) {
		g.userAgent = ua
	}
}

// WithRepo overrides the default repository owner and name.
func WithRepo(owner, repo string) ClientOption {
	return func(g *Client) {
		g.owner = owner
		g.repo = repo
	}
}

// NewClient creates a Client with sensible defaults.
// Defaults: owner="wayposthq", repo="waypost", baseURL="https://api.github.com",
// userAgent="waypost-install/dev", httpClient=http.DefaultClient.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  http.DefaultClient,
		owner:       "wayposthq",
		repo:        "waypost",
		baseURL:     "https://api.github.com",
		downloadURL: "https://github.com",
		userAgent:   "waypost-install/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the latest published release from the releases-latest
// endpoint and validates its tag. Network problems wrap ErrIndexUnreachable;
// a reachable index whose response yields no usable version wraps
// ErrVersionUnresolved.
func (c *Client) Latest(ctx context.Context) (*Release, error) {
	latestURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	resp, err := c.doRequest(ctx, http.MethodGet, latestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIndexUnreachable, latestURL, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrVersionUnresolved, latestURL, resp.StatusCode)
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: decoding response from %s: %w", ErrVersionUnresolved, latestURL, err)
	}

	rel := toRelease(gr)

	if rel.Version() == "" {
		return nil, fmt.Errorf("%w: response from %s has an empty tag_name", ErrVersionUnresolved, latestURL)
	}
	if !semver.IsValid("v" + rel.Version()) {
		return nil, fmt.Errorf("%w: tag %q is not a valid version", ErrVersionUnresolved, rel.TagName)
	}

	return &rel, nil
}

// AssetURL returns the canonical download URL for a named asset of the given
// release, used when the index response did not enumerate assets.
func (c *Client) AssetURL(rel *Release, assetName string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/v%s/%s",
		c.downloadURL, c.owner, c.repo, rel.Version(), assetName)
}

// FindAsset scans the release assets for one with the given name. The second
// return value reports whether a match was found.
func FindAsset(rel *Release, name string) (*Asset, bool) {
	for i := range rel.Assets {
		if rel.Assets[i].Name == name {
			return &rel.Assets[i], true
		}
	}
	return nil, false
}

// DownloadAsset downloads the file at the given URL and returns the response
// body as a streaming reader. The caller must close the returned ReadCloser.
// A non-200 status is reported with the status code so a missing per-platform
// build shows up as a 404 on the exact URL attempted.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, assetURL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}

	return resp.Body, nil
}

// doRequest creates and executes an HTTP request with common API headers.
func (c *Client) doRequest(ctx context.Context, method, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// Only attach the auth token when the request targets a known GitHub
	// host. This prevents token leakage if a download URL redirects to a
	// third-party CDN.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns a
// RateLimitError when the remaining quota is zero. Only the header values are
// examined, not the HTTP status code.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil {
		// Malformed header value; skip rate limit check.
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	if rem > 0 {
		return nil
	}

	// Parse companion headers for a richer error message. Malformed or
	// missing values default to zero, which is acceptable for diagnostics.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// toRelease converts the JSON wire type to the exported Release type.
// Asset fields are identical between githubAsset and Asset (ignoring struct
// tags), so Go permits direct type conversion.
func toRelease(gr githubRelease) Release {
	assets := make([]Asset, 0, len(gr.Assets))
	for _, ga := range gr.Assets {
		assets = append(assets, Asset(ga))
	}

	return Release{
		TagName: gr.TagName,
		Name:    gr.Name,
		HTMLURL: gr.HTMLURL,
		Assets:  assets,
	}
}

// isGitHubHost reports whether reqURL targets a known GitHub host, so the
// auth token can be safely attached. It matches the configured API base URL
// host and, when the base is api.github.com, also trusts github.com for
// asset downloads.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	if strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com") {
		return true
	}
	return false
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
