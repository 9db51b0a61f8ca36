// Package release talks to the remote release source: it resolves the latest
// published tag for a repository and fetches raw artifact files.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"
)

// ErrNoRelease signals the repository was not found or has no published
// releases. Callers treat it as "latest version unknown", never as fatal.
var ErrNoRelease = errors.New("repository not found or has no releases")

// Release is the subset of release metadata the updater cares about.
type Release struct {
	Tag   string
	Notes string
}

// Client resolves releases against a GitHub-compatible API and serves raw
// artifact content from a raw-file host. It performs exactly one request per
// call and never retries; pacing lives in the scheduler's stagger delays.
type Client struct {
	apiURL     string
	rawURL     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets a bearer token for API and raw requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client, e.g. in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a release client. apiURL serves the release-listing API
// (e.g. https://api.github.com) and rawURL serves raw artifact files
// (e.g. https://raw.githubusercontent.com).
func NewClient(apiURL, rawURL string, opts ...Option) *Client {
	c := &Client{
		apiURL:     apiURL,
		rawURL:     rawURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// latestRelease mirrors the fields of the releases/latest API response.
type latestRelease struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
}

// Latest fetches the most recent published release for owner/repo. A remote
// "not found" (no repository, or no releases yet) logs a warning and returns
// ErrNoRelease; any other transport or parse failure logs an error and is
// returned as-is. Either way the caller only learns "no latest version".
func (c *Client) Latest(ctx context.Context, owner, repo string) (*Release, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/releases/latest", owner, repo)
	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Release lookup failed", "owner", owner, "repo", repo, "error", err)
		return nil, fmt.Errorf("fetch latest release for %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("No releases found", "owner", owner, "repo", repo)
		return nil, ErrNoRelease
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("Release lookup failed", "owner", owner, "repo", repo, "status", resp.Status)
		return nil, fmt.Errorf("fetch latest release for %s/%s: %s", owner, repo, resp.Status)
	}

	var rel latestRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		c.logger.Error("Release response unparseable", "owner", owner, "repo", repo, "error", err)
		return nil, fmt.Errorf("decode latest release for %s/%s: %w", owner, repo, err)
	}
	if rel.TagName == "" {
		c.logger.Warn("Release has no tag", "owner", owner, "repo", repo)
		return nil, ErrNoRelease
	}

	return &Release{Tag: rel.TagName, Notes: rel.Body}, nil
}

// FetchArtifact downloads the raw artifact at
// <raw>/{owner}/{repo}/{tag}/{relPath}. relPath must already use forward
// slashes; the transaction normalizes local paths before calling.
func (c *Client) FetchArtifact(ctx context.Context, owner, repo, tag, relPath string) ([]byte, error) {
	u, err := url.Parse(c.rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid raw base URL: %w", err)
	}
	u.Path = path.Join(u.Path, owner, repo, tag, relPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact %s: %w", u.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch artifact %s: %s", u.String(), resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", u.String(), err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	u.Path = path.Join(u.Path, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	c.setHeaders(req)
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Plugwatch/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
