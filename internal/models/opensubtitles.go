package models

import (
	"strings"
	"time"
)

// SearchParams are the query parameters forwarded to the provider's /subtitles endpoint.
type SearchParams struct {
	Query     string `url:"query,omitempty"`
	Languages string `url:"languages,omitempty" validate:"omitempty,max=64"`
	IMDbID    string `url:"imdb_id,omitempty" validate:"required_without_all=Query TMDBID"`
	TMDBID    string `url:"tmdb_id,omitempty"`
	Page      int    `url:"page,omitempty"`
}

// PaginatedResponse defines the structure for paginated API responses.
type PaginatedResponse struct {
	TotalPages int `json:"total_pages"`
	TotalCount int `json:"total_count"`
	PerPage    int `json:"per_page"`
	Page       int `json:"page"`
}

// SubtitleFile represents a single downloadable file within a subtitle entry.
type SubtitleFile struct {
	FileID   int64  `json:"file_id"`
	CDNumber int    `json:"cd_number"`
	FileName string `json:"file_name"`
}

// FeatureDetails describes the movie or episode a subtitle belongs to.
type FeatureDetails struct {
	FeatureID   int    `json:"feature_id"`
	FeatureType string `json:"feature_type"`
	Year        int    `json:"year"`
	Title       string `json:"title"`
	MovieName   string `json:"movie_name"`
	IMDbID      int    `json:"imdb_id"`
	TMDBID      int    `json:"tmdb_id"`
}

// Uploader identifies who uploaded a subtitle.
type Uploader struct {
	UploaderID int    `json:"uploader_id"`
	Name       string `json:"name"`
	Rank       string `json:"rank"`
}

// SubtitleAttributes holds the details of a subtitle entry.
type SubtitleAttributes struct {
	SubtitleID        string         `json:"subtitle_id"`
	Language          string         `json:"language"`
	DownloadCount     int            `json:"download_count"`
	NewDownloadCount  int            `json:"new_download_count"`
	HearingImpaired   bool           `json:"hearing_impaired"`
	HD                bool           `json:"hd"`
	FPS               float64        `json:"fps"`
	Votes             int            `json:"votes"`
	Ratings           float64        `json:"ratings"`
	FromTrusted       bool           `json:"from_trusted"`
	ForeignPartsOnly  bool           `json:"foreign_parts_only"`
	AITranslated      bool           `json:"ai_translated"`
	MachineTranslated bool           `json:"machine_translated"`
	UploadDate        string         `json:"upload_date"`
	Release           string         `json:"release"`
	Comments          string         `json:"comments"`
	Uploader          Uploader       `json:"uploader"`
	FeatureDetails    FeatureDetails `json:"feature_details"`
	URL               string         `json:"url"`
	Files             []SubtitleFile `json:"files"`
}

// Subtitle is one entry of a search response.
type Subtitle struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Attributes SubtitleAttributes `json:"attributes"`
}

// SearchResponse wraps the paginated subtitle results.
type SearchResponse struct {
	PaginatedResponse
	Data []Subtitle `json:"data"`
}

// DownloadLinkRequest is the request body for the provider's /download endpoint.
type DownloadLinkRequest struct {
	FileID    int64  `json:"file_id"`
	SubFormat string `json:"sub_format,omitempty"`
}

// DownloadLink is the provider's answer to a download request: a temporary
// link plus, usually, the caller's remaining quota. The quota fields are
// optional and loosely formatted, so they never fail decoding.
type DownloadLink struct {
	Link         string `json:"link"`
	FileName     string `json:"file_name"`
	Requests     int    `json:"requests"`
	Remaining    *int   `json:"remaining"`
	Message      string `json:"message"`
	ResetTime    string `json:"reset_time"`
	ResetTimeUTC string `json:"reset_time_utc"`
}

// resetTimeLayouts are tried in order on reset_time_utc.
var resetTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z0700",
}

// Quota extracts the quota fields of the link response, or nil when the
// response carries no remaining count. An unreadable reset instant is left
// as the zero time.
func (d *DownloadLink) Quota() *QuotaInfo {
	if d.Remaining == nil {
		return nil
	}
	return &QuotaInfo{Remaining: *d.Remaining, ResetTimeUTC: parseResetTime(d.ResetTimeUTC)}
}

func parseResetTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range resetTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
