package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/rs/zerolog"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/cache"
	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/metrics"
	"github.com/subgrab/subgrab/internal/models"
)

// maxResponseBytes caps any single body read from the provider.
const maxResponseBytes = 10 << 20

// Client defines the interface for talking to the subtitle provider.
type Client interface {
	// Search forwards the parameters to the provider's search endpoint and
	// returns its JSON body untouched.
	Search(ctx context.Context, params models.SearchParams) ([]byte, error)

	// RequestDownload asks the provider for a temporary link to fileID.
	RequestDownload(ctx context.Context, fileID int64) (*models.DownloadLink, error)

	// FetchContent downloads the subtitle at a temporary link and returns it as UTF-8.
	FetchContent(ctx context.Context, link string) ([]byte, error)

	// Close releases any resources held by the client (e.g., cache connections).
	Close() error
}

// Option customizes a client at construction.
type Option func(*client)

// WithSearchCache memoizes search responses in c.
func WithSearchCache(c cache.Cache) Option {
	return func(cl *client) {
		cl.searchCache = c
	}
}

// WithHTTPClient replaces the HTTP client built from configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(cl *client) {
		cl.httpClient = hc
	}
}

// client implements the Client interface
type client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	userAgent   string
	subFormat   string
	callTimeout time.Duration
	searchCache cache.Cache
	logger      zerolog.Logger
}

// NewClient creates a new client instance with proxy configuration if provided
func NewClient(cfg *config.Config, opts ...Option) Client {
	logger := config.GetLogger()

	// Set up base transport with optional proxy
	// Clone DefaultTransport to preserve all its settings (timeouts, connection pooling, HTTP/2, etc.)
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.ProxyConnectionString != "" {
		proxyURL, err := url.Parse(cfg.ProxyConnectionString)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", cfg.ProxyConnectionString).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			baseTransport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	baseURL := cfg.OpenSubtitles.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	c := &client{
		// The per-call deadline is enforced by the failsafe timeout policy in
		// execute, so the http.Client itself carries none.
		httpClient:  &http.Client{Transport: newCompressionTransport(baseTransport)},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.OpenSubtitles.APIKey,
		userAgent:   cfg.UserAgent(),
		subFormat:   cfg.OpenSubtitles.SubFormat,
		callTimeout: config.Duration(cfg.ClientTimeout, 30*time.Second),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the search cache, if any.
func (c *client) Close() error {
	if c.searchCache == nil {
		return nil
	}
	return c.searchCache.Close()
}

// call describes one request to the provider.
type call struct {
	operation string
	method    string
	target    string
	query     url.Values
	body      any
	provider  bool // send Api-Key and JSON headers
}

// execute runs a single request under the per-call timeout policy and returns
// the full response body. Non-2xx answers become *apperrors.ErrUpstream.
func (c *client) execute(ctx context.Context, cl call) ([]byte, string, error) {
	policy := timeout.New[[]byte](c.callTimeout)

	var contentType string
	body, err := failsafe.With[[]byte](policy).WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[[]byte]) ([]byte, error) {
		req, err := c.newRequest(exec.Context(), cl)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(cl.operation, "error").Inc()
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()
		metrics.UpstreamRequestsTotal.WithLabelValues(cl.operation, strconv.Itoa(resp.StatusCode)).Inc()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if len(data) > maxResponseBytes {
			return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &apperrors.ErrUpstream{
				Operation:  cl.operation,
				StatusCode: resp.StatusCode,
				Body:       truncate(string(data), 200),
			}
		}

		contentType = resp.Header.Get("Content-Type")
		return data, nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

func (c *client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	target := cl.target
	if cl.query != nil {
		target += "?" + cl.query.Encode()
	}

	var reqBody io.Reader
	if cl.body != nil {
		jsonData, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if cl.provider {
		req.Header.Set("Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	return req, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
