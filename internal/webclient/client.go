// Package webclient talks to a running subgrab server on behalf of the CLI.
package webclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/models"
)

// resultsHeader matches the header the server sets on download responses.
const resultsHeader = "X-Download-Results"

// ResponseError is a non-2xx answer from the server.
type ResponseError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Download is a file or archive returned by the server.
type Download struct {
	Filename    string
	ContentType string
	Content     []byte
	Summary     *models.DownloadSummary
}

// Client calls the /api routes of a subgrab server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     config.GetLogger(),
	}
}

// SearchRaw returns the provider's search JSON as relayed by the server.
func (c *Client) SearchRaw(ctx context.Context, params models.SearchParams) ([]byte, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search parameters: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/search?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("query", values.Encode()).Msg("Searching subtitles")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

// Search decodes the search JSON.
func (c *Client) Search(ctx context.Context, params models.SearchParams) (*models.SearchResponse, error) {
	body, err := c.SearchRaw(ctx, params)
	if err != nil {
		return nil, err
	}
	var out models.SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &out, nil
}

// Download requests fileIDs and returns the attachment with its summary.
func (c *Client) Download(ctx context.Context, fileIDs []int64, securityKey string) (*Download, error) {
	payload, err := json.Marshal(models.DownloadRequest{FileIDs: fileIDs, SecurityKey: securityKey})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/download", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Int("files", len(fileIDs)).Msg("Requesting download")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp.StatusCode, body)
	}

	out := &Download{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Content:     body,
	}
	if raw := resp.Header.Get(resultsHeader); raw != "" {
		var summary models.DownloadSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			c.logger.Warn().Err(err).Msg("Ignoring malformed download summary")
		} else {
			out.Summary = &summary
		}
	}
	return out, nil
}

// attachmentName extracts the filename parameter, falling back to
// "subtitles" when the header is missing or malformed.
func attachmentName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return "subtitles"
	}
	return params["filename"]
}

func responseError(status int, body []byte) error {
	var payload struct {
		Error   string          `json:"error"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return &ResponseError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &ResponseError{StatusCode: status, Message: payload.Error, Details: payload.Details}
}
