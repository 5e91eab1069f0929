// Package gh provides a read-only GitHub API client for listing repository issues.
package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/JohanCodinha/issuesync/internal/logger"
)

const (
	apiBaseURL = "https://api.github.com"

	// DefaultPageSize is the largest page GitHub serves for the issues endpoint.
	DefaultPageSize = 100
)

var log = logger.For("github")

// Label represents a GitHub issue label.
type Label struct {
	Name string `json:"name"`
}

// PullRequestRef is present on issue records that are backed by a pull request.
// The issues endpoint returns pull requests in the same feed.
type PullRequestRef struct {
	URL string `json:"url,omitempty"`
}

// Issue represents a raw issue record from the GitHub REST API.
type Issue struct {
	ID          int64           `json:"id"`     // global identifier
	Number      int             `json:"number"` // repository-scoped
	Title       string          `json:"title"`
	Body        *string         `json:"body"` // null when the issue has no description
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	Labels      []Label         `json:"labels"`
	CreatedAt   time.Time       `json:"created_at"`
	PullRequest *PullRequestRef `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether the record is a pull request rather than an issue.
func (i Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

// LabelNames returns the names of the issue's labels in API order.
func (i Issue) LabelNames() []string {
	names := make([]string, len(i.Labels))
	for idx, l := range i.Labels {
		names[idx] = l.Name
	}
	return names
}

// ListOptions controls the issues listing.
type ListOptions struct {
	// State is "open", "closed" or "all". Empty means "all".
	State string
	// PerPage is the page size. Zero means DefaultPageSize.
	PerPage int
}

// Client is a GitHub API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// New creates a new GitHub API client with the given token.
func New(token string) *Client {
	return NewWithBaseURL(token, apiBaseURL)
}

// NewWithBaseURL creates a GitHub API client with a custom base URL (for testing).
func NewWithBaseURL(token, baseURL string) *Client {
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an authenticated GET request and returns the response.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// checkRateLimit logs rate limit information from response headers.
func checkRateLimit(resp *http.Response) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	reset := resp.Header.Get("X-RateLimit-Reset")

	if remaining == "0" && reset != "" {
		resetTime, err := strconv.ParseInt(reset, 10, 64)
		if err == nil {
			resetAt := time.Unix(resetTime, 0)
			log.Warn("API rate limit exceeded, resets at %s", resetAt.Format(time.RFC3339))
		}
	}
}

// ListIssues fetches every issue record of the repository, following the Link
// header page by page. Pull requests are returned too; callers filter them
// with Issue.IsPullRequest.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error) {
	state := opts.State
	if state == "" {
		state = "all"
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}

	params := url.Values{}
	params.Set("state", state)
	params.Set("per_page", strconv.Itoa(perPage))
	next := fmt.Sprintf("%s/repos/%s/%s/issues?%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), params.Encode())

	var allIssues []Issue
	for page := 1; next != ""; page++ {
		resp, err := c.doRequest(ctx, next)
		if err != nil {
			return nil, err
		}

		checkRateLimit(resp)

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("GitHub API error: %s - %s", resp.Status, string(body))
		}

		var issues []Issue
		if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		// Parse Link header for pagination before closing
		next = getNextPageURL(resp.Header.Get("Link"))
		resp.Body.Close()

		log.Debug("page %d: %d records", page, len(issues))
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// getNextPageURL extracts the next page URL from the Link header.
// Link header format: <url>; rel="next", <url>; rel="last"
func getNextPageURL(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}

	matches := linkNextPattern.FindStringSubmatch(linkHeader)
	if len(matches) >= 2 {
		return matches[1]
	}

	return ""
}
