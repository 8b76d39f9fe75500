package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.OpenSubtitles.BaseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %q, got %q", DefaultBaseURL, cfg.OpenSubtitles.BaseURL)
	}
	if cfg.OpenSubtitles.SubFormat != "srt" {
		t.Errorf("Expected sub format srt, got %q", cfg.OpenSubtitles.SubFormat)
	}
	if cfg.Cache.Provider != "memory" {
		t.Errorf("Expected memory cache provider, got %q", cfg.Cache.Provider)
	}
	if cfg.DailyQuota() != DefaultDailyQuota {
		t.Errorf("Expected daily quota %d, got %d", DefaultDailyQuota, cfg.DailyQuota())
	}
}

func TestLoadConfig_HistoricalEnvironmentNames(t *testing.T) {
	t.Setenv("OPENSUBTITLES_API_KEY", "api-key")
	t.Setenv("OPENSUBTITLES_APP_NAME", "subgrab")
	t.Setenv("DOWNLOAD_SECURITY_KEY", "right123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.OpenSubtitles.APIKey != "api-key" {
		t.Errorf("Expected API key from environment, got %q", cfg.OpenSubtitles.APIKey)
	}
	if cfg.OpenSubtitles.AppName != "subgrab" {
		t.Errorf("Expected app name from environment, got %q", cfg.OpenSubtitles.AppName)
	}
	if cfg.DownloadSecurityKey != "right123" {
		t.Errorf("Expected security key from environment, got %q", cfg.DownloadSecurityKey)
	}
	if cfg.UserAgent() != "subgrab v1.0.0" {
		t.Errorf("Expected user agent 'subgrab v1.0.0', got %q", cfg.UserAgent())
	}
}

func TestLoadConfig_PrefixedNestedKeys(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "8088")
	t.Setenv("APP_CACHE_TTL", "1h")
	t.Setenv("APP_QUOTA_DAILY_LIMIT", "20")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 8088 {
		t.Errorf("Expected server port 8088, got %d", cfg.Server.Port)
	}
	if cfg.Cache.TTL != "1h" {
		t.Errorf("Expected cache TTL 1h, got %q", cfg.Cache.TTL)
	}
	if cfg.DailyQuota() != 20 {
		t.Errorf("Expected daily quota 20, got %d", cfg.DailyQuota())
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"empty", "", 5 * time.Second},
		{"valid", "2m", 2 * time.Minute},
		{"invalid", "soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Duration(tt.value, 5*time.Second); got != tt.expected {
				t.Errorf("Duration(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}
