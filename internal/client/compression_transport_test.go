package client

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func encodeGzip(t *testing.T, w io.Writer, data []byte) {
	t.Helper()
	gw := gzip.NewWriter(w)
	_, _ = gw.Write(data)
	_ = gw.Close()
}

func encodeBrotli(t *testing.T, w io.Writer, data []byte) {
	t.Helper()
	bw := brotli.NewWriter(w)
	_, _ = bw.Write(data)
	_ = bw.Close()
}

func encodeZstd(t *testing.T, w io.Writer, data []byte) {
	t.Helper()
	// zstd.NewWriter() with default options never fails
	zw, _ := zstd.NewWriter(w)
	_, _ = zw.Write(data)
	_ = zw.Close()
}

func TestCompressionTransport_Decodes(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		encode   func(*testing.T, io.Writer, []byte)
	}{
		{"gzip", "gzip", encodeGzip},
		{"brotli", "br", encodeBrotli},
		{"zstd", "zstd", encodeZstd},
		{"uppercase token", "GZIP", encodeGzip},
		{"outermost of list", "identity, br", encodeBrotli},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testData := []byte("1\n00:00:01,000 --> 00:00:02,000\nencoded with " + tt.name + "\n")

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Accept-Encoding"); got != acceptEncoding {
					t.Errorf("Expected Accept-Encoding %q, got %q", acceptEncoding, got)
				}
				w.Header().Set("Content-Encoding", tt.encoding)
				w.WriteHeader(http.StatusOK)
				tt.encode(t, w, testData)
			}))
			defer server.Close()

			client := &http.Client{Transport: newCompressionTransport(nil)}
			resp, err := client.Get(server.URL)
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("Failed to read response body: %v", err)
			}
			if !bytes.Equal(body, testData) {
				t.Errorf("Expected body %q, got %q", testData, body)
			}
			if resp.Header.Get("Content-Encoding") != "" {
				t.Errorf("Expected Content-Encoding header to be removed, got %q", resp.Header.Get("Content-Encoding"))
			}
			if resp.ContentLength != -1 {
				t.Errorf("Expected ContentLength -1 after decoding, got %d", resp.ContentLength)
			}
		})
	}
}

func TestCompressionTransport_PassesThroughUnknownEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "compress")
		_, _ = w.Write([]byte("raw"))
	}))
	defer server.Close()

	client := &http.Client{Transport: newCompressionTransport(nil)}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "raw" {
		t.Errorf("Expected raw body, got %q", body)
	}
	if resp.Header.Get("Content-Encoding") != "compress" {
		t.Errorf("Expected unknown Content-Encoding to be kept, got %q", resp.Header.Get("Content-Encoding"))
	}
}

func TestCompressionTransport_KeepsCallerAcceptEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept-Encoding"); got != "identity" {
			t.Errorf("Expected caller Accept-Encoding to be kept, got %q", got)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("Accept-Encoding", "identity")

	client := &http.Client{Transport: newCompressionTransport(nil)}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	_ = resp.Body.Close()
}

func TestCompressionTransport_DoesNotMutateRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	client := &http.Client{Transport: newCompressionTransport(nil)}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	_ = resp.Body.Close()

	if req.Header.Get("Accept-Encoding") != "" {
		t.Errorf("Expected original request to be untouched, got Accept-Encoding %q", req.Header.Get("Accept-Encoding"))
	}
}

func TestOuterEncoding(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"simple gzip", "gzip", "gzip"},
		{"simple brotli", "br", "br"},
		{"with both whitespace", " gzip ", "gzip"},
		{"comma list - identity, gzip", "identity, gzip", "gzip"},
		{"comma list - gzip, br", "gzip, br", "br"},
		{"comma list with whitespace", "identity , zstd ", "zstd"},
		{"mixed case", "GzIp", "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outerEncoding(tt.header); got != tt.expected {
				t.Errorf("outerEncoding(%q) = %q, expected %q", tt.header, got, tt.expected)
			}
		})
	}
}
