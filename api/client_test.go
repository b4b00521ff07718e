package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-token")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetSendsBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []Project{})
	}))

	_, err := c.Projects(context.Background(), ProjectsParams{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestGetSurfacesServerMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "You do not have permission to access this stream."})
	}))

	_, err := c.Stream(context.Background(), "abc")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "You do not have permission")
}

func TestGetNonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := c.Stream(context.Background(), "abc")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Message)
}

func TestStreamsQueryParameters(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []Stream{{ID: "s1", Name: "Forest edge"}})
	}))

	streams, err := c.Streams(context.Background(), StreamsParams{
		Projects:      []string{"p1", "p2"},
		Keyword:       "forest",
		IncludePublic: true,
		Limit:         25,
		Offset:        50,
	})
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "Forest edge", streams[0].Name)

	assert.Contains(t, gotQuery, "projects%5B%5D=p1")
	assert.Contains(t, gotQuery, "projects%5B%5D=p2")
	assert.Contains(t, gotQuery, "keyword=forest")
	assert.Contains(t, gotQuery, "include_public=true")
	assert.Contains(t, gotQuery, "limit=25")
	assert.Contains(t, gotQuery, "offset=50")
}

func TestAnnotationsRejectsOversizedLimit(t *testing.T) {
	c := NewClient("http://unused", "t")
	_, err := c.Annotations(context.Background(), AnnotationsParams{Limit: 1001})
	assert.ErrorContains(t, err, "limit must be <= 1000")
}

func TestDetectionsRejectsOversizedLimit(t *testing.T) {
	c := NewClient("http://unused", "t")
	_, err := c.Detections(context.Background(), DetectionsParams{Limit: 1001})
	assert.ErrorContains(t, err, "limit must be <= 1000")
}

func TestDetectionsQueryParameters(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []Detection{})
	}))

	_, err := c.Detections(context.Background(), DetectionsParams{
		Start:         "2020-01-01T00:00:00Z",
		End:           "2020-01-02T00:00:00Z",
		Classifiers:   []int{7},
		MinConfidence: 0.95,
	})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "classifiers%5B%5D=7")
	assert.Contains(t, gotQuery, "min_confidence=0.95")
	assert.Contains(t, gotQuery, "limit=50") // server default page size
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2020, 6, 1, 12, 30, 45, 999000000, time.UTC)
	assert.Equal(t, "2020-06-01T12:30:45Z", FormatTime(ts))
}

// pagingHandler serves segment pages of the given sizes, recording the
// offsets requested, then empty pages forever.
func pagingHandler(t *testing.T, sizes []int, offsets *[]int) http.Handler {
	next := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, err := parseIntParam(r, "offset")
		require.NoError(t, err)
		*offsets = append(*offsets, offset)

		size := 0
		if next < len(sizes) {
			size = sizes[next]
			next++
		}
		page := make([]StreamSegment, size)
		for i := range page {
			page[i] = StreamSegment{
				ID:            fmt.Sprintf("seg-%d-%d", offset, i),
				Start:         "2020-01-01T00:00:00.000Z",
				FileExtension: ".wav",
			}
		}
		writeJSON(w, http.StatusOK, page)
	})
}

func parseIntParam(r *http.Request, key string) (int, error) {
	var v int
	_, err := fmt.Sscanf(r.URL.Query().Get(key), "%d", &v)
	return v, err
}

func TestAllStreamSegmentsPagesUntilEmpty(t *testing.T) {
	var offsets []int
	c := newTestClient(t, pagingHandler(t, []int{DefaultPageLimit, DefaultPageLimit, 3}, &offsets))

	segments, err := c.AllStreamSegments(context.Background(), "s1", "2020-01-01T00:00:00Z", "2020-02-01T00:00:00Z")
	require.NoError(t, err)

	// Two full pages, one partial, one empty terminator. A partial page
	// does not end the fetch by itself.
	assert.Equal(t, []int{0, 1000, 2000, 3000}, offsets)
	require.Len(t, segments, 2*DefaultPageLimit+3)
	assert.Equal(t, "seg-0-0", segments[0].ID)
	assert.Equal(t, "seg-2000-2", segments[len(segments)-1].ID)
}

func TestAllStreamSegmentsEmptyFirstPage(t *testing.T) {
	var offsets []int
	c := newTestClient(t, pagingHandler(t, nil, &offsets))

	segments, err := c.AllStreamSegments(context.Background(), "s1", "2020-01-01T00:00:00Z", "2020-02-01T00:00:00Z")
	require.NoError(t, err)
	assert.Empty(t, segments)
	assert.Equal(t, []int{0}, offsets)
}

func TestAllStreamSegmentsDiscardsPartialOnError(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
			return
		}
		page := make([]StreamSegment, DefaultPageLimit)
		writeJSON(w, http.StatusOK, page)
	}))

	segments, err := c.AllStreamSegments(context.Background(), "s1", "a", "b")
	require.Error(t, err)
	assert.Nil(t, segments, "no partial result on a failed page")

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 1000, pageErr.Offset)

	var apiErr *Error
	assert.ErrorAs(t, err, &apiErr)
}

func TestAllAnnotationsPages(t *testing.T) {
	var limits []string
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		limits = append(limits, r.URL.Query().Get("limit"))
		if calls == 1 {
			writeJSON(w, http.StatusOK, []Annotation{{ID: "a1"}, {ID: "a2"}})
			return
		}
		writeJSON(w, http.StatusOK, []Annotation{})
	}))

	annotations, err := c.AllAnnotations(context.Background(), AnnotationsParams{
		Start: "2020-01-01T00:00:00Z",
		End:   "2020-02-01T00:00:00Z",
		Limit: 5, // ignored by the fetch-all path
	})
	require.NoError(t, err)
	require.Len(t, annotations, 2)
	assert.Equal(t, []string{"1000", "1000"}, limits)
}
