// Package notion provides a minimal Notion API client for reading and writing
// database rows.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JohanCodinha/issuesync/internal/logger"
)

const (
	apiBaseURL = "https://api.notion.com/v1"

	// APIVersion is the Notion-Version header sent with every request.
	APIVersion = "2022-06-28"
)

var log = logger.For("notion")

// Client is a Notion API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Notion API client with the given integration token.
func New(token string) *Client {
	return NewWithBaseURL(token, apiBaseURL)
}

// NewWithBaseURL creates a Notion API client with a custom base URL (for testing).
func NewWithBaseURL(token, baseURL string) *Client {
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do performs an authenticated request, encoding payload as JSON when non-nil
// and decoding a 2xx response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(data)
	}
	// the body's status field is authoritative only when present
	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	return apiErr
}

// QueryDatabase returns one page of rows of the database, starting at cursor.
// An empty cursor starts from the beginning.
func (c *Client) QueryDatabase(ctx context.Context, databaseID, cursor string) (*QueryResult, error) {
	payload := map[string]interface{}{}
	if cursor != "" {
		payload["start_cursor"] = cursor
	}

	var result QueryResult
	path := "/databases/" + url.PathEscape(databaseID) + "/query"
	if err := c.do(ctx, http.MethodPost, path, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to query database %s: %w", databaseID, err)
	}

	log.Debug("queried database %s: %d rows, has_more=%v", databaseID, len(result.Results), result.HasMore)
	return &result, nil
}

// GetPageProperty retrieves a single property value of a page. propertyID is
// used as Notion returns it in page objects, which is already URL-encoded
// (":UPp" arrives as "%3AUPp"), so it goes into the path unchanged.
func (c *Client) GetPageProperty(ctx context.Context, pageID, propertyID string) (*PropertyItem, error) {
	var item PropertyItem
	path := "/pages/" + url.PathEscape(pageID) + "/properties/" + propertyID
	if err := c.do(ctx, http.MethodGet, path, nil, &item); err != nil {
		return nil, fmt.Errorf("failed to get property %s of page %s: %w", propertyID, pageID, err)
	}
	return &item, nil
}

// CreatePage creates a row in the database.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error) {
	payload := map[string]interface{}{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": props,
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", payload, &page); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &page, nil
}

// UpdatePage updates the given properties of a row. Properties not present
// in props are left untouched.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props Properties) (*Page, error) {
	payload := map[string]interface{}{
		"properties": props,
	}

	var page Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), payload, &page); err != nil {
		return nil, fmt.Errorf("failed to update page %s: %w", pageID, err)
	}
	return &page, nil
}
