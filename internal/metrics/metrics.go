package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Download pipeline metrics
var (
	// SubtitleDownloadsTotal counts individual files by outcome ("success" or "error").
	SubtitleDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_downloads_total",
			Help: "Total number of subtitle file downloads.",
		},
		[]string{"status"},
	)

	// DownloadBatchesTotal counts download requests by how they were answered:
	// "single", "archive", "failed" or "rejected".
	DownloadBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_download_batches_total",
			Help: "Total number of download requests by result.",
		},
		[]string{"result"},
	)

	DownloadBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subtitle_download_batch_duration_seconds",
			Help:    "Time spent fetching every file of a download request.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// QuotaRemaining is the last remaining-downloads value reported by the provider.
	QuotaRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opensubtitles_quota_remaining",
			Help: "Remaining provider downloads as last reported.",
		},
	)
)

// Provider call metrics
var (
	// UpstreamRequestsTotal counts provider calls by operation and status code.
	// Transport failures and timeouts use status "error".
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opensubtitles_requests_total",
			Help: "Total number of requests sent to the subtitle provider.",
		},
		[]string{"operation", "status"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_search_requests_total",
			Help: "Total number of search requests by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		SubtitleDownloadsTotal,
		DownloadBatchesTotal,
		DownloadBatchDuration,
		QuotaRemaining,
		UpstreamRequestsTotal,
		SearchRequestsTotal,
	)
}
