package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/client"
	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/metrics"
	"github.com/subgrab/subgrab/internal/models"
)

// DownloaderConfig is the configuration the orchestrator checks before
// touching caller input.
type DownloaderConfig struct {
	APIKey      string
	AppName     string
	SecurityKey string
}

// NewDownloaderConfig extracts the orchestrator settings from cfg.
func NewDownloaderConfig(cfg *config.Config) DownloaderConfig {
	return DownloaderConfig{
		APIKey:      cfg.OpenSubtitles.APIKey,
		AppName:     cfg.OpenSubtitles.AppName,
		SecurityKey: cfg.DownloadSecurityKey,
	}
}

// SubtitleDownloader fetches every requested file from the provider.
type SubtitleDownloader interface {
	// Configured reports a ConfigurationError when credentials or the
	// security key are missing.
	Configured() error

	// Download authorizes and validates req, then fetches each file in order.
	// Individual failures are recorded in the batch; an error is returned only
	// when the request is rejected or nothing could be downloaded.
	Download(ctx context.Context, req models.DownloadRequest, origin string) (*models.BatchResult, error)
}

// DefaultSubtitleDownloader fetches files sequentially through a provider client.
type DefaultSubtitleDownloader struct {
	cfg      DownloaderConfig
	client   client.Client
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

// DownloaderOption customizes a DefaultSubtitleDownloader.
type DownloaderOption func(*DefaultSubtitleDownloader)

// WithLogger replaces the process logger.
func WithLogger(logger zerolog.Logger) DownloaderOption {
	return func(d *DefaultSubtitleDownloader) {
		d.logger = logger
	}
}

// NewSubtitleDownloader creates a downloader over c.
func NewSubtitleDownloader(cfg DownloaderConfig, c client.Client, opts ...DownloaderOption) *DefaultSubtitleDownloader {
	d := &DefaultSubtitleDownloader{
		cfg:      cfg,
		client:   c,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   config.GetLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download implements SubtitleDownloader.
func (d *DefaultSubtitleDownloader) Download(ctx context.Context, req models.DownloadRequest, origin string) (*models.BatchResult, error) {
	if err := d.authorize(req.SecurityKey, origin); err != nil {
		metrics.DownloadBatchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := d.validateIDs(req); err != nil {
		metrics.DownloadBatchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	batchID := uuid.NewString()
	logger := d.logger.With().Str("batch_id", batchID).Logger()
	logger.Info().Int("files", len(req.FileIDs)).Str("origin", origin).Msg("Starting subtitle download batch")

	start := time.Now()
	batch := &models.BatchResult{Results: make([]models.DownloadResult, 0, len(req.FileIDs))}
	for _, fileID := range req.FileIDs {
		result, quota := d.fetch(ctx, fileID)
		batch.Results = append(batch.Results, result)

		if failure, ok := result.Outcome.(models.DownloadFailure); ok {
			metrics.SubtitleDownloadsTotal.WithLabelValues("error").Inc()
			logger.Warn().Int64("file_id", fileID).Str("reason", failure.Reason).Msg("Subtitle download failed")
			continue
		}

		metrics.SubtitleDownloadsTotal.WithLabelValues("success").Inc()
		logger.Debug().Int64("file_id", fileID).Msg("Subtitle downloaded")
		if batch.Quota == nil && quota != nil {
			batch.Quota = quota
			metrics.QuotaRemaining.Set(float64(quota.Remaining))
		}
	}
	metrics.DownloadBatchDuration.Observe(time.Since(start).Seconds())

	summary := batch.Summary()
	logger.Info().
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("Subtitle download batch finished")

	if summary.Successful == 0 {
		metrics.DownloadBatchesTotal.WithLabelValues("failed").Inc()
		return nil, &apperrors.ErrAggregateFailure{
			Message: "No subtitles could be downloaded",
			Details: batch.Results,
			Count:   summary.Failed,
		}
	}
	return batch, nil
}

// Configured implements SubtitleDownloader.
func (d *DefaultSubtitleDownloader) Configured() error {
	if d.cfg.APIKey == "" || d.cfg.AppName == "" {
		return apperrors.NewConfigurationError("Missing API configuration")
	}
	if d.cfg.SecurityKey == "" {
		return apperrors.NewConfigurationError("Security configuration missing")
	}
	return nil
}

// authorize checks configuration first, then the caller's key.
func (d *DefaultSubtitleDownloader) authorize(key, origin string) error {
	if err := d.Configured(); err != nil {
		return err
	}
	if key == "" {
		return apperrors.NewMissingCredentialError("Security key is required")
	}

	if subtle.ConstantTimeCompare([]byte(key), []byte(d.cfg.SecurityKey)) != 1 {
		if origin == "" {
			origin = "unknown"
		}
		d.logger.Warn().
			Str("provided_key", redactKey(key)).
			Time("timestamp", d.now().UTC()).
			Str("origin", origin).
			Msg("Invalid security key attempt")
		return apperrors.NewAuthorizationError("Invalid security key")
	}
	return nil
}

func (d *DefaultSubtitleDownloader) validateIDs(req models.DownloadRequest) error {
	if len(req.FileIDs) == 0 {
		return apperrors.NewValidationError("File IDs array is required")
	}
	if err := d.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return apperrors.NewValidationError("File IDs must be positive integers")
		}
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// fetch resolves a temporary link for fileID and downloads it. The quota is
// returned only on success.
func (d *DefaultSubtitleDownloader) fetch(ctx context.Context, fileID int64) (models.DownloadResult, *models.QuotaInfo) {
	result := models.DownloadResult{FileID: fileID}

	link, err := d.client.RequestDownload(ctx, fileID)
	if err != nil {
		result.Outcome = models.DownloadFailure{Reason: err.Error()}
		return result, nil
	}

	content, err := d.client.FetchContent(ctx, link.Link)
	if err != nil {
		result.Outcome = models.DownloadFailure{Reason: err.Error()}
		return result, nil
	}

	result.Outcome = models.DownloadSuccess{
		Filename: SanitizeFilename(link.FileName, fileID),
		Content:  content,
	}
	return result, link.Quota()
}
