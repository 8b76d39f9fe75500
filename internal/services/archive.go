package services

import (
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/metrics"
	"github.com/subgrab/subgrab/internal/models"
)

const (
	singleFileContentType = "text/plain; charset=utf-8"
	archiveContentType    = "application/zip"
	archiveTimeLayout     = "2006-01-02T15-04-05"
)

// ArchiveBuilder turns a download batch into the response payload.
type ArchiveBuilder struct {
	now func() time.Time
}

// ArchiveOption customizes an ArchiveBuilder.
type ArchiveOption func(*ArchiveBuilder)

// WithClock sets the clock used to name archives.
func WithClock(now func() time.Time) ArchiveOption {
	return func(b *ArchiveBuilder) {
		b.now = now
	}
}

// NewArchiveBuilder creates a builder using the wall clock unless overridden.
func NewArchiveBuilder(opts ...ArchiveOption) *ArchiveBuilder {
	b := &ArchiveBuilder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Package returns the raw file when exactly one file was requested and it
// succeeded, and a zip of every success otherwise. requested is the number of
// identifiers in the original request.
func (b *ArchiveBuilder) Package(requested int, batch *models.BatchResult) (*models.Payload, error) {
	successes := batch.Successes()
	if len(successes) == 0 {
		return nil, &apperrors.ErrArchiveBuild{Err: errors.New("no downloaded files to package")}
	}

	if requested == 1 && len(successes) == 1 {
		metrics.DownloadBatchesTotal.WithLabelValues("single").Inc()
		return &models.Payload{
			Filename:    successes[0].Filename,
			ContentType: singleFileContentType,
			Content:     successes[0].Content,
		}, nil
	}

	now := b.now().UTC()
	var buf bytes.Buffer
	if err := writeArchive(&buf, successes, now); err != nil {
		return nil, err
	}

	payload := &models.Payload{
		Filename:    "subtitles_" + now.Format(archiveTimeLayout) + ".zip",
		ContentType: archiveContentType,
		Content:     buf.Bytes(),
		Archive:     true,
	}
	metrics.DownloadBatchesTotal.WithLabelValues("archive").Inc()
	logger := config.GetLogger()
	logger.Debug().
		Str("filename", payload.Filename).
		Int("entries", len(successes)).
		Int("size", len(payload.Content)).
		Msg("Built subtitle archive")
	return payload, nil
}

// writeArchive streams one deflated entry per file into w. Entry names are
// used as given; duplicates are written twice.
func writeArchive(w io.Writer, files []models.DownloadSuccess, modified time.Time) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, f := range files {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Filename,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return &apperrors.ErrArchiveBuild{Entry: f.Filename, Err: err}
		}
		if _, err := entry.Write(f.Content); err != nil {
			return &apperrors.ErrArchiveBuild{Entry: f.Filename, Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return &apperrors.ErrArchiveBuild{Err: err}
	}
	return nil
}
