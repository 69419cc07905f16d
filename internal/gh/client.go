package gh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	Status  int
	Message string
	URL     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s returned %d: %s", e.URL, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsNotFastForward reports whether err is the rejection of a non-force ref
// update because the branch moved. GitHub answers 422 with a message
// containing "fast forward".
func IsNotFastForward(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiErr.Message), "fast forward")
}

// Client implements Transport against the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a GitHub API client. The token is sent as a bearer
// token; an empty token issues unauthenticated requests (rate-limited,
// public repositories only).
func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// NewClientWithBaseURL creates a client against a non-default API endpoint
// (GitHub Enterprise, test servers).
func NewClientWithBaseURL(baseURL, token string, logger *slog.Logger) *Client {
	c := NewClient(token, logger)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "vaultsyncd")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("github request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 100<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, URL: u}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetTree implements Transport.
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) ([]TreeEntry, error) {
	var tree Tree
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))
	if err := c.do(ctx, http.MethodGet, path, nil, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		return nil, fmt.Errorf("github: tree listing for %s/%s@%s is truncated", owner, repo, ref)
	}
	return tree.Entries, nil
}

// GetContents implements Transport.
func (c *Client) GetContents(ctx context.Context, owner, repo, filePath, ref string) (*Blob, error) {
	var blob Blob
	path := fmt.Sprintf("/repos/%s/%s/contents/%s",
		url.PathEscape(owner), url.PathEscape(repo), escapeRepoPath(filePath))
	if ref != "" {
		path += "?ref=" + url.QueryEscape(ref)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &blob); err != nil {
		return nil, err
	}
	return &blob, nil
}

// CreateBlob implements Transport.
func (c *Client) CreateBlob(ctx context.Context, owner, repo, content string) (string, error) {
	body := map[string]string{"content": content, "encoding": "base64"}
	var created struct {
		SHA string `json:"sha"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/blobs", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.do(ctx, http.MethodPost, path, body, &created); err != nil {
		return "", err
	}
	return created.SHA, nil
}

// GetRef implements Transport. The ref is given without the "refs/" prefix,
// e.g. "heads/main".
func (c *Client) GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error) {
	var r Ref
	path := fmt.Sprintf("/repos/%s/%s/git/ref/%s",
		url.PathEscape(owner), url.PathEscape(repo), escapeRepoPath(ref))
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetCommit implements Transport.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	var payload struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
		Tree    struct {
			SHA string `json:"sha"`
		} `json:"tree"`
		Parents []struct {
			SHA string `json:"sha"`
		} `json:"parents"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/commits/%s",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	commit := &Commit{SHA: payload.SHA, Message: payload.Message, TreeSHA: payload.Tree.SHA}
	for _, p := range payload.Parents {
		commit.Parents = append(commit.Parents, p.SHA)
	}
	return commit, nil
}

// CreateTree implements Transport.
func (c *Client) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []TreeSpec) (*Tree, error) {
	body := map[string]any{"base_tree": baseTree, "tree": entries}
	var tree Tree
	path := fmt.Sprintf("/repos/%s/%s/git/trees", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.do(ctx, http.MethodPost, path, body, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// CreateCommit implements Transport.
func (c *Client) CreateCommit(ctx context.Context, owner, repo, message, tree string, parents []string) (*Commit, error) {
	body := map[string]any{"message": message, "tree": tree, "parents": parents}
	var payload struct {
		SHA  string `json:"sha"`
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/commits", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.do(ctx, http.MethodPost, path, body, &payload); err != nil {
		return nil, err
	}
	return &Commit{SHA: payload.SHA, Message: message, TreeSHA: payload.Tree.SHA, Parents: parents}, nil
}

// UpdateRef implements Transport.
func (c *Client) UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*Ref, error) {
	body := map[string]any{"sha": sha, "force": force}
	var r Ref
	path := fmt.Sprintf("/repos/%s/%s/git/refs/%s",
		url.PathEscape(owner), url.PathEscape(repo), escapeRepoPath(ref))
	if err := c.do(ctx, http.MethodPatch, path, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// escapeRepoPath escapes each path segment while keeping separators.
func escapeRepoPath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
