package api

import "context"

// fetchAll pages through a listing call with a fixed limit and increasing
// offset, concatenating results in arrival order. An empty page is the
// server's only end-of-data signal; there is no total-count field. Any page
// failure aborts the whole fetch and discards what was accumulated.
func fetchAll[T any](limit int, page func(offset int) ([]T, error)) ([]T, error) {
	var all []T
	for offset := 0; ; offset += limit {
		items, err := page(offset)
		if err != nil {
			return nil, &PageError{Offset: offset, Err: err}
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}

// AllStreamSegments fetches the complete set of segments for a stream in
// the given time range, transparently paging. An empty result means no data
// in the range, not an error.
func (c *Client) AllStreamSegments(ctx context.Context, streamID, start, end string) ([]StreamSegment, error) {
	return fetchAll(DefaultPageLimit, func(offset int) ([]StreamSegment, error) {
		return c.StreamSegments(ctx, streamID, start, end, DefaultPageLimit, offset)
	})
}

// AllAnnotations fetches every annotation matching the params,
// transparently paging. Limit and Offset in params are ignored.
func (c *Client) AllAnnotations(ctx context.Context, p AnnotationsParams) ([]Annotation, error) {
	return fetchAll(DefaultPageLimit, func(offset int) ([]Annotation, error) {
		p.Limit = DefaultPageLimit
		p.Offset = offset
		return c.Annotations(ctx, p)
	})
}

// AllDetections fetches every detection matching the params, transparently
// paging. Limit and Offset in params are ignored.
func (c *Client) AllDetections(ctx context.Context, p DetectionsParams) ([]Detection, error) {
	return fetchAll(DefaultPageLimit, func(offset int) ([]Detection, error) {
		p.Limit = DefaultPageLimit
		p.Offset = offset
		return c.Detections(ctx, p)
	})
}
