// Package audio materializes stream segments as local files, one at a time
// or fanned out over a bounded worker pool.
package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rfcx/rfcx-sdk-go/api"
)

const (
	// DefaultParallelism bounds in-flight downloads in parallel mode, to
	// avoid overwhelming the media endpoint or local file descriptors.
	DefaultParallelism = 100

	// DefaultFileExtension is used when a batch does not specify one.
	DefaultFileExtension = "wav"

	transferTimeout = 120 * time.Second
)

// Downloader fetches segment audio over the media-asset endpoint. The
// bearer token is read-only; all workers share it.
type Downloader struct {
	BaseURL     string
	HTTPClient  *http.Client
	Log         zerolog.Logger
	Parallelism int

	// Progress, when set, is called after each segment resolves
	// (downloaded or skipped) with the resolved and total counts. In
	// parallel mode it is invoked concurrently from the workers and must
	// be safe for concurrent use.
	Progress func(done, total int)

	api   *api.Client
	token string
}

// NewDownloader creates a Downloader sharing the metadata client's base URL
// and credential.
func NewDownloader(client *api.Client, token string, log zerolog.Logger) *Downloader {
	return &Downloader{
		BaseURL:     client.BaseURL,
		HTTPClient:  &http.Client{Timeout: transferTimeout},
		Log:         log,
		Parallelism: DefaultParallelism,
		api:         client,
		token:       token,
	}
}

// BatchParams describes one bulk download.
type BatchParams struct {
	StreamID      string
	Dest          string    // destination directory, default "./audios"
	Start         time.Time // zero means 30 days ago
	End           time.Time // zero means now
	FileExtension string    // default "wav"
	Parallel      bool
}

// SegmentFileName derives the deterministic local file name for a segment,
// so repeated downloads overwrite rather than duplicate.
func SegmentFileName(streamID, start, ext string) string {
	r := strings.NewReplacer(".000Z", "", "Z", "", ":", "-", ".", "-", "T", "_")
	return streamID + "_" + r.Replace(start) + "." + strings.TrimLeft(ext, ".")
}

// DownloadSegment fetches a single segment into destDir and returns the
// local path. destDir is created if absent.
func (d *Downloader) DownloadSegment(ctx context.Context, destDir, streamID, start, ext string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("audio: failed to create destination directory: %w", err)
	}
	return d.fetchSegment(ctx, destDir, streamID, start, ext)
}

// DownloadSegments fetches every segment of a stream in the given range.
// Individual segment failures are logged and skipped; only credential,
// metadata, or destination failures abort the batch.
func (d *Downloader) DownloadSegments(ctx context.Context, p BatchParams) error {
	if p.StreamID == "" {
		return fmt.Errorf("audio: stream id is required")
	}
	if p.Dest == "" {
		p.Dest = "./audios"
	}
	if p.FileExtension == "" {
		p.FileExtension = DefaultFileExtension
	}
	start, end := p.Start, p.End
	if start.IsZero() || end.IsZero() {
		defStart, defEnd := api.DefaultRange()
		if start.IsZero() {
			start = defStart
		}
		if end.IsZero() {
			end = defEnd
		}
	}
	startStr, endStr := api.FormatTime(start), api.FormatTime(end)

	stream, err := d.api.Stream(ctx, p.StreamID)
	if err != nil {
		return err
	}

	segments, err := d.api.AllStreamSegments(ctx, p.StreamID, startStr, endStr)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		d.Log.Info().
			Str("stream", stream.Name).
			Str("start", startStr).
			Str("end", endStr).
			Msg("No data found in this range")
		return nil
	}

	// Create the directory before any worker starts, so there is no race
	// between directory creation and the first file write.
	saveDir := filepath.Join(p.Dest, stream.Name)
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return fmt.Errorf("audio: failed to create destination directory: %w", err)
	}

	d.Log.Info().Int("segments", len(segments)).Str("stream", stream.Name).Msg("Downloading audio")

	var done int64
	resolve := func(segment api.StreamSegment, err error) {
		if err != nil {
			d.Log.Warn().
				Str("stream", p.StreamID).
				Str("start", segment.Start).
				Err(err).
				Msg("Skipping segment")
		}
		if d.Progress != nil {
			d.Progress(int(atomic.AddInt64(&done, 1)), len(segments))
		}
	}

	if p.Parallel {
		limit := d.Parallelism
		if limit <= 0 {
			limit = DefaultParallelism
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, segment := range segments {
			segment := segment
			g.Go(func() error {
				_, err := d.fetchSegment(gctx, saveDir, p.StreamID, segment.Start, p.FileExtension)
				resolve(segment, err)
				return nil
			})
		}
		// Per-segment failures are soft; Wait is a pure barrier here.
		_ = g.Wait()
	} else {
		for _, segment := range segments {
			_, err := d.fetchSegment(ctx, saveDir, p.StreamID, segment.Start, p.FileExtension)
			resolve(segment, err)
		}
	}

	d.Log.Info().Str("stream", stream.Name).Msg("Finished download")
	return nil
}

// fetchSegment issues one authenticated GET against the media endpoint and
// streams the body to the deterministic local path.
func (d *Downloader) fetchSegment(ctx context.Context, saveDir, streamID, start, ext string) (string, error) {
	u := fmt.Sprintf("%s/streams/%s/segments/%s/file", d.BaseURL, streamID, start)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", segmentError(resp)
	}

	localPath := filepath.Join(saveDir, SegmentFileName(streamID, start, ext))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("audio: failed to create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("audio: failed to write %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	d.Log.Debug().Str("path", localPath).Msg("Saved segment")
	return localPath, nil
}

// segmentError extracts the server's reason from a failed media response.
func segmentError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &e)
	if e.Message != "" {
		return fmt.Errorf("audio: download failed: %d %s", resp.StatusCode, e.Message)
	}
	return fmt.Errorf("audio: download failed: status %d", resp.StatusCode)
}
