package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ProjectsParams filters the project listing.
type ProjectsParams struct {
	Keyword     string
	CreatedBy   string // "", "me", or a collaborator id
	OnlyPublic  bool
	OnlyDeleted bool
	Limit       int
	Offset      int
}

// Projects lists projects visible to the credential.
func (c *Client) Projects(ctx context.Context, p ProjectsParams) ([]Project, error) {
	q := url.Values{}
	if p.Keyword != "" {
		q.Set("keyword", p.Keyword)
	}
	if p.CreatedBy != "" {
		q.Set("created_by", p.CreatedBy)
	}
	if p.OnlyPublic {
		q.Set("only_public", "true")
	}
	if p.OnlyDeleted {
		q.Set("only_deleted", "true")
	}
	setPagination(q, defaultLimit(p.Limit), p.Offset)

	var out []Project
	if err := c.get(ctx, "/projects", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamsParams filters the stream listing.
type StreamsParams struct {
	Organizations  []string
	Projects       []string
	CreatedBy      string // "", "me", or "collaborators"
	Name           string
	Keyword        string
	IncludePublic  bool
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Streams lists streams matching the filters.
func (c *Client) Streams(ctx context.Context, p StreamsParams) ([]Stream, error) {
	q := url.Values{}
	addAll(q, "organizations[]", p.Organizations)
	addAll(q, "projects[]", p.Projects)
	if p.CreatedBy != "" {
		q.Set("created_by", p.CreatedBy)
	}
	if p.Name != "" {
		q.Set("name", p.Name)
	}
	if p.Keyword != "" {
		q.Set("keyword", p.Keyword)
	}
	if p.IncludePublic {
		q.Set("include_public", "true")
	}
	if p.IncludeDeleted {
		q.Set("include_deleted", "true")
	}
	setPagination(q, defaultLimit(p.Limit), p.Offset)

	var out []Stream
	if err := c.get(ctx, "/streams", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stream fetches a single stream by id.
func (c *Client) Stream(ctx context.Context, streamID string) (*Stream, error) {
	var out Stream
	if err := c.get(ctx, "/streams/"+streamID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamSegments lists one page of audio segments for a stream in the given
// time range. Range bounds are API-format timestamps (see FormatTime).
func (c *Client) StreamSegments(ctx context.Context, streamID, start, end string, limit, offset int) ([]StreamSegment, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("end", end)
	setPagination(q, limit, offset)

	var out []StreamSegment
	if err := c.get(ctx, "/streams/"+streamID+"/stream-segments", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnnotationsParams filters the annotation listing.
type AnnotationsParams struct {
	Start           string
	End             string
	Classifications []string
	Stream          string
	Limit           int
	Offset          int
}

// Annotations lists one page of annotations.
func (c *Client) Annotations(ctx context.Context, p AnnotationsParams) ([]Annotation, error) {
	if p.Limit > maxListLimit {
		return nil, fmt.Errorf("api: annotation limit must be <= %d", maxListLimit)
	}
	q := url.Values{}
	q.Set("start", p.Start)
	q.Set("end", p.End)
	addAll(q, "classifications[]", p.Classifications)
	if p.Stream != "" {
		q.Set("stream_id", p.Stream)
	}
	setPagination(q, defaultListLimit(p.Limit), p.Offset)

	var out []Annotation
	if err := c.get(ctx, "/annotations", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DetectionsParams filters the detection listing.
type DetectionsParams struct {
	Start           string
	End             string
	Classifications []string
	Classifiers     []int
	Streams         []string
	MinConfidence   float64 // 0 means server default
	Limit           int
	Offset          int
}

// Detections lists one page of classifier detections.
func (c *Client) Detections(ctx context.Context, p DetectionsParams) ([]Detection, error) {
	if p.Limit > maxListLimit {
		return nil, fmt.Errorf("api: detection limit must be <= %d", maxListLimit)
	}
	q := url.Values{}
	q.Set("start", p.Start)
	q.Set("end", p.End)
	addAll(q, "classifications[]", p.Classifications)
	for _, id := range p.Classifiers {
		q.Add("classifiers[]", strconv.Itoa(id))
	}
	addAll(q, "streams[]", p.Streams)
	if p.MinConfidence > 0 {
		q.Set("min_confidence", strconv.FormatFloat(p.MinConfidence, 'f', -1, 64))
	}
	setPagination(q, defaultListLimit(p.Limit), p.Offset)

	var out []Detection
	if err := c.get(ctx, "/detections", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	return limit
}

func defaultListLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
