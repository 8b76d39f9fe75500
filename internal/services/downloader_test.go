package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/client"
	"github.com/subgrab/subgrab/internal/models"
	"github.com/subgrab/subgrab/internal/testutil"
)

const scenarioContent = "1\n00:00:01,000 --> 00:00:02,000\nHi"

func newTestDownloader(t *testing.T, provider *testutil.FakeProvider, opts ...DownloaderOption) *DefaultSubtitleDownloader {
	t.Helper()
	cfg := provider.Config()
	return NewSubtitleDownloader(NewDownloaderConfig(cfg), client.NewClient(cfg), opts...)
}

func TestDownload_SingleFile_FallbackName(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(101, testutil.FakeFile{Content: scenarioContent})

	batch, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{101},
		SecurityKey: "right123",
	}, "10.0.0.1")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	successes := batch.Successes()
	if len(successes) != 1 {
		t.Fatalf("Expected one success, got %d", len(successes))
	}
	if successes[0].Filename != "subtitle_101.srt" {
		t.Errorf("Expected fallback filename, got %q", successes[0].Filename)
	}
	if string(successes[0].Content) != scenarioContent {
		t.Errorf("Unexpected content %q", successes[0].Content)
	}
}

func TestDownload_PreservesOrderAndDuplicates(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(1, testutil.FakeFile{Content: "one", FileName: "One Movie.srt"})
	provider.AddFile(2, testutil.FakeFile{Content: "two", FileName: "two.srt"})

	ids := []int64{2, 1, 999, 2}
	batch, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     ids,
		SecurityKey: "right123",
	}, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if len(batch.Results) != len(ids) {
		t.Fatalf("Expected %d results, got %d", len(ids), len(batch.Results))
	}
	for i, r := range batch.Results {
		if r.FileID != ids[i] {
			t.Errorf("Result %d: expected file id %d, got %d", i, ids[i], r.FileID)
		}
	}
	if batch.Results[2].Succeeded() {
		t.Error("Expected unknown file 999 to fail")
	}
	if s, ok := batch.Results[1].Outcome.(models.DownloadSuccess); !ok || s.Filename != "One_Movie.srt" {
		t.Errorf("Expected sanitized filename for file 1, got %+v", batch.Results[1].Outcome)
	}

	calls := provider.DownloadCalls()
	if len(calls) != 4 || calls[0] != 2 || calls[1] != 1 || calls[2] != 999 || calls[3] != 2 {
		t.Errorf("Expected sequential provider calls in request order, got %v", calls)
	}

	summary := batch.Summary()
	if summary.Total != 4 || summary.Successful != 3 || summary.Failed != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestDownload_PartialFailure(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(101, testutil.FakeFile{DropConnection: true})
	provider.AddFile(202, testutil.FakeFile{Content: "ok", FileName: "b.srt"})

	batch, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{101, 202},
		SecurityKey: "right123",
	}, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	failure, ok := batch.Results[0].Outcome.(models.DownloadFailure)
	if !ok || failure.Reason == "" {
		t.Errorf("Expected a failure with a reason for 101, got %+v", batch.Results[0].Outcome)
	}
	if !batch.Results[1].Succeeded() {
		t.Error("Expected 202 to succeed")
	}
}

func TestDownload_QuotaFromFirstSuccess(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	// Each successful link decrements the reported remaining count from 20.
	provider.AddFile(1, testutil.FakeFile{FetchStatus: http.StatusInternalServerError})
	provider.AddFile(2, testutil.FakeFile{Content: "a"})
	provider.AddFile(3, testutil.FakeFile{Content: "b"})

	batch, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{1, 2, 3},
		SecurityKey: "right123",
	}, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if batch.Quota == nil {
		t.Fatal("Expected quota to be captured")
	}
	if batch.Quota.Remaining != 18 {
		t.Errorf("Expected quota of the first success (18), got %d", batch.Quota.Remaining)
	}
}

func TestDownload_QuotaFromFirstSuccessThatReportsOne(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(1, testutil.FakeFile{Content: "a", OmitQuota: true})
	provider.AddFile(2, testutil.FakeFile{Content: "b", ResetTimeUTC: "not a date"})
	provider.AddFile(3, testutil.FakeFile{Content: "c"})

	batch, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{1, 2, 3},
		SecurityKey: "right123",
	}, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	for _, r := range batch.Results {
		if !r.Succeeded() {
			t.Errorf("Expected %d to succeed despite its quota fields, got %+v", r.FileID, r.Outcome)
		}
	}
	if batch.Quota == nil {
		t.Fatal("Expected quota from the second file")
	}
	if batch.Quota.Remaining != 18 {
		t.Errorf("Expected remaining 18, got %d", batch.Quota.Remaining)
	}
	if !batch.Quota.ResetTimeUTC.IsZero() {
		t.Errorf("Expected unreadable reset time to stay zero, got %v", batch.Quota.ResetTimeUTC)
	}
}

func TestDownload_NoQuotaReported(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(1, testutil.FakeFile{Content: "a", OmitQuota: true})

	batch, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{1},
		SecurityKey: "right123",
	}, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if batch.Quota != nil {
		t.Errorf("Expected no quota, got %+v", batch.Quota)
	}
	if summary := batch.Summary(); summary.Quota != nil {
		t.Errorf("Expected summary quota to be null, got %+v", summary.Quota)
	}
}

func TestDownload_AllFail(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(1, testutil.FakeFile{LinkStatus: http.StatusNotAcceptable})

	_, err := newTestDownloader(t, provider).Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{1, 2, 3},
		SecurityKey: "right123",
	}, "")

	var aggregate *apperrors.ErrAggregateFailure
	if !errors.As(err, &aggregate) {
		t.Fatalf("Expected ErrAggregateFailure, got %v", err)
	}
	if aggregate.Message != "No subtitles could be downloaded" {
		t.Errorf("Unexpected message %q", aggregate.Message)
	}
	details, ok := aggregate.Details.([]models.DownloadResult)
	if !ok || len(details) != 3 {
		t.Fatalf("Expected 3 itemized details, got %#v", aggregate.Details)
	}
	if apperrors.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", apperrors.StatusCode(err))
	}
}

func TestDownload_Rejections(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)

	tests := []struct {
		name    string
		cfg     func(*DownloaderConfig)
		req     models.DownloadRequest
		message string
		status  int
	}{
		{
			name:    "missing api key",
			cfg:     func(c *DownloaderConfig) { c.APIKey = "" },
			req:     models.DownloadRequest{FileIDs: []int64{1}, SecurityKey: "right123"},
			message: "Missing API configuration",
			status:  http.StatusInternalServerError,
		},
		{
			name:    "missing app name",
			cfg:     func(c *DownloaderConfig) { c.AppName = "" },
			req:     models.DownloadRequest{FileIDs: []int64{1}, SecurityKey: "right123"},
			message: "Missing API configuration",
			status:  http.StatusInternalServerError,
		},
		{
			name:    "missing security configuration",
			cfg:     func(c *DownloaderConfig) { c.SecurityKey = "" },
			req:     models.DownloadRequest{FileIDs: []int64{1}, SecurityKey: "right123"},
			message: "Security configuration missing",
			status:  http.StatusInternalServerError,
		},
		{
			name:    "configuration checked before input",
			cfg:     func(c *DownloaderConfig) { c.APIKey = "" },
			req:     models.DownloadRequest{},
			message: "Missing API configuration",
			status:  http.StatusInternalServerError,
		},
		{
			name:    "missing key",
			req:     models.DownloadRequest{FileIDs: []int64{1}},
			message: "Security key is required",
			status:  http.StatusUnauthorized,
		},
		{
			name:    "key checked before ids",
			req:     models.DownloadRequest{SecurityKey: "wrong"},
			message: "Invalid security key",
			status:  http.StatusForbidden,
		},
		{
			name:    "empty ids",
			req:     models.DownloadRequest{FileIDs: []int64{}, SecurityKey: "right123"},
			message: "File IDs array is required",
			status:  http.StatusBadRequest,
		},
		{
			name:    "nil ids",
			req:     models.DownloadRequest{SecurityKey: "right123"},
			message: "File IDs array is required",
			status:  http.StatusBadRequest,
		},
		{
			name:    "non-positive id",
			req:     models.DownloadRequest{FileIDs: []int64{5, 0}, SecurityKey: "right123"},
			message: "File IDs must be positive integers",
			status:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDownloaderConfig(provider.Config())
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			d := NewSubtitleDownloader(cfg, client.NewClient(provider.Config()))

			_, err := d.Download(context.Background(), tt.req, "")
			if err == nil {
				t.Fatal("Expected an error")
			}
			if err.Error() != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, err.Error())
			}
			if got := apperrors.StatusCode(err); got != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, got)
			}
		})
	}

	if calls := provider.DownloadCalls(); len(calls) != 0 {
		t.Errorf("Expected no provider calls for rejected requests, got %v", calls)
	}
}

func TestDownload_KeyComparisonIsExact(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	provider.AddFile(1, testutil.FakeFile{Content: "x"})
	d := newTestDownloader(t, provider)

	for _, key := range []string{"Right123", "right123 ", " right123", "right12", "right1234", "RIGHT123"} {
		_, err := d.Download(context.Background(), models.DownloadRequest{FileIDs: []int64{1}, SecurityKey: key}, "")
		if !errors.Is(err, &apperrors.ErrAuthorization{}) {
			t.Errorf("Key %q: expected ErrAuthorization, got %v", key, err)
		}
	}
}

func TestDownload_InvalidKeyLogIsRedacted(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	var buf bytes.Buffer
	d := newTestDownloader(t, provider, WithLogger(zerolog.New(&buf)))

	_, err := d.Download(context.Background(), models.DownloadRequest{
		FileIDs:     []int64{1},
		SecurityKey: "wrong",
	}, "203.0.113.9")
	if !errors.Is(err, &apperrors.ErrAuthorization{}) {
		t.Fatalf("Expected ErrAuthorization, got %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, `"provided_key":"wro***"`) {
		t.Errorf("Expected redacted key in log, got %s", line)
	}
	if strings.Contains(line, "wrong") {
		t.Errorf("Log leaked the provided key: %s", line)
	}
	if strings.Contains(line, "right123") {
		t.Errorf("Log leaked the expected key: %s", line)
	}
	if !strings.Contains(line, `"origin":"203.0.113.9"`) {
		t.Errorf("Expected origin in log, got %s", line)
	}
}

func TestDownload_InvalidKeyUnknownOrigin(t *testing.T) {
	t.Parallel()
	provider := testutil.NewFakeProvider(t)
	var buf bytes.Buffer
	d := newTestDownloader(t, provider, WithLogger(zerolog.New(&buf)))

	_, _ = d.Download(context.Background(), models.DownloadRequest{FileIDs: []int64{1}, SecurityKey: "nope"}, "")

	if !strings.Contains(buf.String(), `"origin":"unknown"`) {
		t.Errorf("Expected unknown origin in log, got %s", buf.String())
	}
}
