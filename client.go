// Package rfcx is a client SDK for the RFCx bioacoustic monitoring
// platform: authenticate once, then list projects/streams, query
// detections and annotations, download audio segments, and ingest audio.
//
// Typical use:
//
//	client := rfcx.NewClient()
//	if err := client.Authenticate(ctx); err != nil {
//		// ...
//	}
//	streams, err := client.Streams(ctx, api.StreamsParams{})
package rfcx

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/rfcx/rfcx-sdk-go/api"
	"github.com/rfcx/rfcx-sdk-go/audio"
	"github.com/rfcx/rfcx-sdk-go/auth"
	"github.com/rfcx/rfcx-sdk-go/credentials"
	"github.com/rfcx/rfcx-sdk-go/ingest"
)

// Environment overrides for the service endpoints.
const (
	EnvAPIURL    = "RFCX_API_URL"
	EnvIngestURL = "RFCX_INGEST_URL"
)

// ErrNotAuthenticated is returned by calls that need a credential before
// Authenticate has succeeded.
var ErrNotAuthenticated = errors.New("rfcx: not authenticated")

// Client is the SDK entry point. It owns the resolved credential and hands
// it to every component that needs authentication; there is no ambient
// global state.
type Client struct {
	log       zerolog.Logger
	baseURL   string
	ingestURL string
	authOpts  []auth.Option

	cred       *credentials.Credential
	api        *api.Client
	downloader *audio.Downloader
	ingest     *ingest.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used by the client and its components.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithBaseURL overrides the metadata/media API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithIngestURL overrides the ingest service URL.
func WithIngestURL(u string) ClientOption {
	return func(c *Client) { c.ingestURL = u }
}

// WithAuthOptions forwards options to the session manager used by
// Authenticate (persistence, credential path, custom provider).
func WithAuthOptions(opts ...auth.Option) ClientOption {
	return func(c *Client) { c.authOpts = append(c.authOpts, opts...) }
}

// NewClient creates an unauthenticated client. Endpoint overrides are read
// from the environment unless set by options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		log:       zerolog.Nop(),
		baseURL:   os.Getenv(EnvAPIURL),
		ingestURL: os.Getenv(EnvIngestURL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate resolves a credential via the session manager (machine
// credentials, persisted record, refresh, or the interactive device flow)
// and wires up the API components with it. Calling it again after success
// is a no-op.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.cred != nil {
		return nil
	}
	opts := append([]auth.Option{auth.WithLogger(c.log)}, c.authOpts...)
	cred, err := auth.NewAuthenticator(opts...).Authenticate(ctx)
	if err != nil {
		return err
	}
	c.cred = cred
	c.api = api.NewClient(c.baseURL, cred.AccessToken)
	c.downloader = audio.NewDownloader(c.api, cred.AccessToken, c.log)
	c.ingest = ingest.NewClient(c.ingestURL, cred.AccessToken, c.log)
	return nil
}

// Credentials returns the resolved credential, or nil before Authenticate.
func (c *Client) Credentials() *credentials.Credential { return c.cred }

// Projects lists projects visible to the authenticated user.
func (c *Client) Projects(ctx context.Context, p api.ProjectsParams) ([]api.Project, error) {
	if c.api == nil {
		return nil, ErrNotAuthenticated
	}
	return c.api.Projects(ctx, p)
}

// Streams lists streams matching the filters.
func (c *Client) Streams(ctx context.Context, p api.StreamsParams) ([]api.Stream, error) {
	if c.api == nil {
		return nil, ErrNotAuthenticated
	}
	return c.api.Streams(ctx, p)
}

// Stream fetches a single stream by id.
func (c *Client) Stream(ctx context.Context, streamID string) (*api.Stream, error) {
	if c.api == nil {
		return nil, ErrNotAuthenticated
	}
	return c.api.Stream(ctx, streamID)
}

// StreamSegments fetches the complete set of segments for a stream in the
// given range, transparently paging. Zero times default to the last 30
// days.
func (c *Client) StreamSegments(ctx context.Context, streamID string, start, end time.Time) ([]api.StreamSegment, error) {
	if c.api == nil {
		return nil, ErrNotAuthenticated
	}
	start, end = defaultRange(start, end)
	return c.api.AllStreamSegments(ctx, streamID, api.FormatTime(start), api.FormatTime(end))
}

// Annotations lists annotations in a time range. Zero times default to the
// last 30 days.
func (c *Client) Annotations(ctx context.Context, p api.AnnotationsParams) ([]api.Annotation, error) {
	if c.api == nil {
		return nil, ErrNotAuthenticated
	}
	p.Start, p.End = defaultRangeStrings(p.Start, p.End)
	return c.api.Annotations(ctx, p)
}

// Detections lists classifier detections in a time range. Zero times
// default to the last 30 days.
func (c *Client) Detections(ctx context.Context, p api.DetectionsParams) ([]api.Detection, error) {
	if c.api == nil {
		return nil, ErrNotAuthenticated
	}
	p.Start, p.End = defaultRangeStrings(p.Start, p.End)
	return c.api.Detections(ctx, p)
}

// DownloadSegment downloads one segment into destDir and returns the local
// path.
func (c *Client) DownloadSegment(ctx context.Context, destDir, streamID string, start time.Time, ext string) (string, error) {
	if c.downloader == nil {
		return "", ErrNotAuthenticated
	}
	return c.downloader.DownloadSegment(ctx, destDir, streamID, api.FormatTime(start), ext)
}

// DownloadSegments bulk-downloads every segment of a stream in a range,
// serially or over a bounded worker pool.
func (c *Client) DownloadSegments(ctx context.Context, p audio.BatchParams) error {
	if c.downloader == nil {
		return ErrNotAuthenticated
	}
	return c.downloader.DownloadSegments(ctx, p)
}

// Downloader exposes the underlying bulk downloader, e.g. to attach a
// progress callback or tune the parallelism bound.
func (c *Client) Downloader() *audio.Downloader { return c.downloader }

// IngestFile uploads a local audio file into a stream at the given
// recording timestamp and waits for the server to accept it.
func (c *Client) IngestFile(ctx context.Context, streamID, path string, timestamp time.Time) error {
	if c.ingest == nil {
		return ErrNotAuthenticated
	}
	return c.ingest.IngestFile(ctx, streamID, path, timestamp)
}

func defaultRange(start, end time.Time) (time.Time, time.Time) {
	defStart, defEnd := api.DefaultRange()
	if start.IsZero() {
		start = defStart
	}
	if end.IsZero() {
		end = defEnd
	}
	return start, end
}

func defaultRangeStrings(start, end string) (string, string) {
	defStart, defEnd := api.DefaultRange()
	if start == "" {
		start = api.FormatTime(defStart)
	}
	if end == "" {
		end = api.FormatTime(defEnd)
	}
	return start, end
}
