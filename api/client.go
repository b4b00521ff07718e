// Package api is a typed client for the RFCx metadata API: paginated
// listing endpoints for projects, streams, stream segments, annotations and
// detections.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the metadata API base, overridable via
	// RFCX_API_URL.
	DefaultBaseURL = "https://api.rfcx.org"

	// DefaultPageLimit is the page size used by the fetch-all helpers.
	DefaultPageLimit = 1000

	// maxListLimit is the largest limit the server accepts on the
	// annotation and detection endpoints.
	maxListLimit = 1000

	metadataTimeout = 30 * time.Second
)

// TimeFormat is the timestamp format the API expects in query parameters.
const TimeFormat = "2006-01-02T15:04:05Z"

// FormatTime renders a timestamp the way the API expects it.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeFormat)
}

// DefaultRange returns the default query time range: the last 30 days.
func DefaultRange() (start, end time.Time) {
	end = time.Now().UTC()
	return end.AddDate(0, 0, -30), end
}

// Error is a non-2xx metadata API response. Message carries the server's
// own error message when it sent one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: request failed: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: request failed: status %d", e.Status)
}

// PageError is a failed page request inside a paginated fetch-all. The
// whole fetch is all-or-nothing: no partial result accompanies it.
type PageError struct {
	Offset int
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("api: failed to fetch page at offset %d: %v", e.Offset, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Client issues authenticated requests against the metadata API. The bearer
// token is read-only after construction; replacing a credential means
// constructing a new Client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	token string
}

// NewClient creates a metadata API client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: metadataTimeout},
		token:      token,
	}
}

// get issues one authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: failed to parse response: %w", err)
	}
	return nil
}

func errorFromResponse(status int, body []byte) *Error {
	var e struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &e)
	return &Error{Status: status, Message: e.Message}
}

func setPagination(q url.Values, limit, offset int) {
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
}

func addAll(q url.Values, key string, values []string) {
	for _, v := range values {
		q.Add(key, v)
	}
}
