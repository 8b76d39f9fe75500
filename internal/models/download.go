package models

import (
	"encoding/json"
	"time"
)

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	FileIDs     []int64 `json:"fileIds" validate:"required,min=1,dive,gt=0"`
	SecurityKey string  `json:"securityKey"`
}

// DownloadOutcome is either DownloadSuccess or DownloadFailure.
type DownloadOutcome interface {
	isDownloadOutcome()
}

// DownloadSuccess holds the fetched subtitle and its sanitized filename.
type DownloadSuccess struct {
	Filename string
	Content  []byte
}

// DownloadFailure holds the reason a single file could not be downloaded.
type DownloadFailure struct {
	Reason string
}

func (DownloadSuccess) isDownloadOutcome() {}
func (DownloadFailure) isDownloadOutcome() {}

// DownloadResult is the outcome for one requested file identifier.
type DownloadResult struct {
	FileID  int64
	Outcome DownloadOutcome
}

// Succeeded reports whether the result carries content.
func (r DownloadResult) Succeeded() bool {
	_, ok := r.Outcome.(DownloadSuccess)
	return ok
}

// MarshalJSON renders the result as {fileId, success, fileName?, error?}.
// Content is never serialized.
func (r DownloadResult) MarshalJSON() ([]byte, error) {
	out := struct {
		FileID   int64  `json:"fileId"`
		Success  bool   `json:"success"`
		FileName string `json:"fileName,omitempty"`
		Error    string `json:"error,omitempty"`
	}{FileID: r.FileID}

	switch o := r.Outcome.(type) {
	case DownloadSuccess:
		out.Success = true
		out.FileName = o.Filename
	case DownloadFailure:
		out.Error = o.Reason
	}
	return json.Marshal(out)
}

// QuotaInfo mirrors the provider's download allowance.
type QuotaInfo struct {
	Remaining    int       `json:"remaining"`
	ResetTimeUTC time.Time `json:"reset_time_utc"`
}

// DownloadSummary is sent back in the X-Download-Results header.
type DownloadSummary struct {
	Total      int        `json:"total"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Quota      *QuotaInfo `json:"quota"`
}

// NewDownloadSummary counts successes and failures over results.
func NewDownloadSummary(results []DownloadResult, quota *QuotaInfo) DownloadSummary {
	summary := DownloadSummary{Total: len(results), Quota: quota}
	for _, r := range results {
		if r.Succeeded() {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// BatchResult is what the orchestrator hands to the archive builder.
type BatchResult struct {
	Results []DownloadResult
	Quota   *QuotaInfo
}

// Successes returns the successful outcomes in request order.
func (b *BatchResult) Successes() []DownloadSuccess {
	var out []DownloadSuccess
	for _, r := range b.Results {
		if s, ok := r.Outcome.(DownloadSuccess); ok {
			out = append(out, s)
		}
	}
	return out
}

// Summary derives the DownloadSummary for this batch.
func (b *BatchResult) Summary() DownloadSummary {
	return NewDownloadSummary(b.Results, b.Quota)
}

// Payload is the body chosen for a download response.
type Payload struct {
	Filename    string
	ContentType string
	Content     []byte
	Archive     bool
}
