// Package ingest uploads audio into the platform: request a signed upload
// URL, PUT the file bytes, then poll the upload status until the server
// finishes processing.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultUploadURL is the ingest service endpoint, overridable via
	// RFCX_INGEST_URL.
	DefaultUploadURL = "https://ingest.rfcx.org/uploads"

	uploadTimeout     = 120 * time.Second
	statusTimeout     = 30 * time.Second
	statusPollEvery   = 3 * time.Second
	statusFailedFloor = 30
)

// Upload statuses below statusFailedFloor that mean "still processing".
const (
	statusWaiting    = 0
	statusProcessing = 10
)

// Client performs uploads against the ingest service.
type Client struct {
	UploadURL  string
	HTTPClient *http.Client
	Log        zerolog.Logger

	// PollInterval is the wait between status checks while the server is
	// still processing an upload.
	PollInterval time.Duration

	// statusClient has a shorter timeout than HTTPClient; a status check
	// is a small JSON read, not a transfer.
	statusClient *http.Client
	token        string
}

// NewClient creates an ingest client. An empty uploadURL selects
// DefaultUploadURL.
func NewClient(uploadURL, token string, log zerolog.Logger) *Client {
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	return &Client{
		UploadURL:    uploadURL,
		HTTPClient:   &http.Client{Timeout: uploadTimeout},
		Log:          log,
		PollInterval: statusPollEvery,
		statusClient: &http.Client{Timeout: statusTimeout},
		token:        token,
	}
}

type signedUpload struct {
	URL      string `json:"url"`
	UploadID string `json:"uploadId"`
}

type uploadStatus struct {
	Status         int    `json:"status"`
	FailureMessage string `json:"failureMessage"`
}

// IngestFile uploads one local audio file into a stream at the given
// recording timestamp. It blocks until the server accepts or rejects the
// upload, polling status every few seconds; ctx cancels the wait.
func (c *Client) IngestFile(ctx context.Context, streamID, path string, timestamp time.Time) error {
	signed, err := c.requestSignedURL(ctx, streamID, filepath.Base(path), timestamp)
	if err != nil {
		return fmt.Errorf("ingest: failed to obtain upload url: %w", err)
	}

	if err := c.putFile(ctx, signed.URL, path); err != nil {
		return fmt.Errorf("ingest: upload failed: %w", err)
	}

	for {
		status, err := c.fetchStatus(ctx, signed.UploadID)
		if err != nil {
			return fmt.Errorf("ingest: status check failed: %w", err)
		}
		switch {
		case status.Status >= statusFailedFloor:
			return fmt.Errorf("ingest: server rejected upload (%d): %s", status.Status, status.FailureMessage)
		case status.Status == statusWaiting || status.Status == statusProcessing:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.PollInterval):
			}
		default:
			c.Log.Info().Str("path", path).Str("stream", streamID).Msg("Ingested file")
			return nil
		}
	}
}

// requestSignedURL asks the ingest service where to PUT the bytes.
func (c *Client) requestSignedURL(ctx context.Context, streamID, filename string, timestamp time.Time) (*signedUpload, error) {
	form := url.Values{
		"filename":  {filename},
		"timestamp": {timestamp.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")},
		"stream":    {streamID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var signed signedUpload
	if err := json.Unmarshal(body, &signed); err != nil {
		return nil, err
	}
	if signed.URL == "" || signed.UploadID == "" {
		return nil, fmt.Errorf("response missing url or uploadId")
	}
	return &signed, nil
}

// putFile streams the file bytes to the signed URL. The signed URL is
// pre-authorized; no bearer header is sent.
func (c *Client) putFile(ctx context.Context, signedURL, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	req.Header.Set("Content-Type", "audio/"+ext)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// fetchStatus reads the processing state of an accepted upload.
func (c *Client) fetchStatus(ctx context.Context, uploadID string) (*uploadStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UploadURL+"/"+uploadID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.statusClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var status uploadStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}
