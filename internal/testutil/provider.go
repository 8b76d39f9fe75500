package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/subgrab/subgrab/internal/config"
)

// FakeFile configures how the fake provider answers for one file identifier.
type FakeFile struct {
	Content     string
	FileName    string
	ContentType string
	// LinkStatus, when non-zero, is returned by POST /download instead of a link.
	LinkStatus int
	// FetchStatus, when non-zero, is returned when the temporary link is fetched.
	FetchStatus int
	// DropConnection closes the connection while fetching, simulating a network error.
	DropConnection bool
	// Delay is slept before answering the fetch.
	Delay time.Duration
	// OmitQuota leaves remaining and reset_time_utc out of the /download answer.
	OmitQuota bool
	// ResetTimeUTC, when set, is sent verbatim as reset_time_utc.
	ResetTimeUTC string
}

// FakeProvider is an httptest server speaking the subset of the OpenSubtitles
// REST API used by the client. Files not registered answer 404 on /download.
// This is a test helper and should not be used in production code.
type FakeProvider struct {
	Server *httptest.Server

	mu             sync.Mutex
	files          map[int64]FakeFile
	remaining      int
	resetTime      time.Time
	searchBody     string
	searchCalls    int
	downloadCalls  []int64
	lastSearchURL  string
	lastAPIKey     string
	lastUserAgent  string
	lastDownloadCT string
}

// NewFakeProvider starts a fake provider that is closed with the test.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()
	p := &FakeProvider{
		files:      make(map[int64]FakeFile),
		remaining:  20,
		resetTime:  time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		searchBody: `{"total_pages":1,"total_count":0,"per_page":60,"page":1,"data":[]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/subtitles", p.handleSearch)
	mux.HandleFunc("POST /api/v1/download", p.handleDownload)
	mux.HandleFunc("GET /files/{id}", p.handleFile)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// BaseURL is the API root to configure the client with.
func (p *FakeProvider) BaseURL() string {
	return p.Server.URL + "/api/v1"
}

// Config returns a configuration pointing at the fake provider.
func (p *FakeProvider) Config() *config.Config {
	cfg := &config.Config{}
	cfg.OpenSubtitles.APIKey = "test-api-key"
	cfg.OpenSubtitles.AppName = "subgrab-test"
	cfg.OpenSubtitles.BaseURL = p.BaseURL()
	cfg.OpenSubtitles.SubFormat = "srt"
	cfg.DownloadSecurityKey = "right123"
	cfg.ClientTimeout = "5s"
	return cfg
}

// AddFile registers a file identifier.
func (p *FakeProvider) AddFile(id int64, f FakeFile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[id] = f
}

// SetSearchBody replaces the JSON returned by the search endpoint.
func (p *FakeProvider) SetSearchBody(body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchBody = body
}

// SetQuota sets the remaining count and reset instant reported by /download.
// Each successful link request decrements the remaining count.
func (p *FakeProvider) SetQuota(remaining int, reset time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remaining = remaining
	p.resetTime = reset
}

// SearchCalls returns how many times the search endpoint was hit.
func (p *FakeProvider) SearchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searchCalls
}

// DownloadCalls returns the file identifiers requested from /download, in order.
func (p *FakeProvider) DownloadCalls() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.downloadCalls...)
}

// LastSearchQuery returns the raw query string of the last search.
func (p *FakeProvider) LastSearchQuery() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSearchURL
}

// LastHeaders returns the Api-Key and User-Agent of the last provider call.
func (p *FakeProvider) LastHeaders() (apiKey, userAgent string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAPIKey, p.lastUserAgent
}

// LastDownloadContentType returns the Content-Type of the last /download body.
func (p *FakeProvider) LastDownloadContentType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDownloadCT
}

func (p *FakeProvider) handleSearch(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.searchCalls++
	p.lastSearchURL = r.URL.RawQuery
	p.lastAPIKey = r.Header.Get("Api-Key")
	p.lastUserAgent = r.Header.Get("User-Agent")
	body := p.searchBody
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (p *FakeProvider) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID    int64  `json:"file_id"`
		SubFormat string `json:"sub_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.downloadCalls = append(p.downloadCalls, req.FileID)
	p.lastAPIKey = r.Header.Get("Api-Key")
	p.lastUserAgent = r.Header.Get("User-Agent")
	p.lastDownloadCT = r.Header.Get("Content-Type")
	f, ok := p.files[req.FileID]
	if ok && f.LinkStatus == 0 {
		p.remaining--
	}
	remaining, reset := p.remaining, p.resetTime
	p.mu.Unlock()

	if !ok {
		http.Error(w, `{"message":"file not found"}`, http.StatusNotFound)
		return
	}
	if f.LinkStatus != 0 {
		http.Error(w, `{"message":"refused"}`, f.LinkStatus)
		return
	}

	answer := map[string]any{
		"link":           fmt.Sprintf("%s/files/%d", p.Server.URL, req.FileID),
		"file_name":      f.FileName,
		"requests":       1,
		"remaining":      remaining,
		"message":        "ok",
		"reset_time":     "23 hours",
		"reset_time_utc": reset.Format(time.RFC3339),
	}
	if f.ResetTimeUTC != "" {
		answer["reset_time_utc"] = f.ResetTimeUTC
	}
	if f.OmitQuota {
		delete(answer, "remaining")
		delete(answer, "reset_time_utc")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(answer)
}

func (p *FakeProvider) handleFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	p.mu.Lock()
	f, ok := p.files[id]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if f.DropConnection {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, err := hj.Hijack()
			if err == nil {
				_ = conn.Close()
			}
		}
		return
	}
	if f.FetchStatus != 0 {
		w.WriteHeader(f.FetchStatus)
		return
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write([]byte(f.Content))
}
