package models

import "time"

// SubtitleInfo is the descriptive metadata shown next to a selected subtitle.
type SubtitleInfo struct {
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Language string `json:"language"`
	Release  string `json:"release"`
}

// SelectedSubtitle is one entry of the user's download selection.
// FileID is the unique key.
type SelectedSubtitle struct {
	FileID       int64        `json:"file_id"`
	FileName     string       `json:"file_name"`
	CDNumber     int          `json:"cd_number"`
	SubtitleInfo SubtitleInfo `json:"subtitle_info"`
}

// StoredQuota is the quota record the client keeps between runs.
type StoredQuota struct {
	RemainingDownloads int       `json:"remaining_downloads"`
	LastUpdated        time.Time `json:"last_updated"`
	RechargeDate       time.Time `json:"recharge_date"`
}

// NewStoredQuota converts the quota reported by the server into the client record.
func NewStoredQuota(q QuotaInfo, now time.Time) StoredQuota {
	return StoredQuota{
		RemainingDownloads: q.Remaining,
		LastUpdated:        now,
		RechargeDate:       q.ResetTimeUTC,
	}
}

// IsRecharged reports whether the reset instant has passed.
func (q StoredQuota) IsRecharged(now time.Time) bool {
	return now.After(q.RechargeDate)
}

// DisplayRemaining is the count shown to the user: the full daily allowance
// once recharged, the stored count otherwise.
func (q StoredQuota) DisplayRemaining(now time.Time, dailyLimit int) int {
	if q.IsRecharged(now) {
		return dailyLimit
	}
	return q.RemainingDownloads
}

// SelectionFromSearch builds a selection entry for one file of a search result.
func SelectionFromSearch(sub Subtitle, file SubtitleFile) SelectedSubtitle {
	return SelectedSubtitle{
		FileID:   file.FileID,
		FileName: file.FileName,
		CDNumber: file.CDNumber,
		SubtitleInfo: SubtitleInfo{
			Title:    sub.Attributes.FeatureDetails.Title,
			Year:     sub.Attributes.FeatureDetails.Year,
			Language: sub.Attributes.Language,
			Release:  sub.Attributes.Release,
		},
	}
}
