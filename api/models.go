package api

// Typed records for the metadata API's listing responses. The server returns
// JSON arrays; each element is validated once on parse at this boundary and
// passed around as a struct, never as an untyped map.

// Project is one monitoring project.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPublic   bool   `json:"is_public"`
	ExternalID int    `json:"external_id,omitempty"`
}

// Stream is one monitoring stream (site/guardian).
type Stream struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Start         string   `json:"start,omitempty"`
	End           string   `json:"end,omitempty"`
	IsPublic      bool     `json:"is_public"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Altitude      float64  `json:"altitude"`
	Timezone      string   `json:"timezone,omitempty"`
	MaxSampleRate int      `json:"max_sample_rate,omitempty"`
	ExternalID    int      `json:"external_id,omitempty"`
	Project       *Project `json:"project,omitempty"`
	CountryName   string   `json:"country_name,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// StreamSegment identifies one addressable unit of audio within a stream.
// Segments are produced by the paginated fetcher and consumed read-only by
// the downloader.
type StreamSegment struct {
	ID            string `json:"id"`
	Start         string `json:"start"`
	End           string `json:"end,omitempty"`
	FileExtension string `json:"file_extension"`
}

// Annotation is a human-made label on a time/frequency box of a stream.
type Annotation struct {
	ID           string  `json:"id"`
	StreamID     string  `json:"stream_id"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	FrequencyMin float64 `json:"frequency_min"`
	FrequencyMax float64 `json:"frequency_max"`
}

// Detection is a classifier hit on a slice of a stream.
type Detection struct {
	StreamID       string          `json:"stream_id"`
	Start          string          `json:"start"`
	End            string          `json:"end"`
	Confidence     float64         `json:"confidence"`
	Classification *Classification `json:"classification,omitempty"`
}

// Classification names the species/sound class of a detection.
type Classification struct {
	Value string `json:"value"`
	Title string `json:"title"`
}
