package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/models"
)

var fixedNow = time.Date(2026, 10, 19, 14, 5, 9, 123456789, time.FixedZone("CEST", 2*60*60))

func success(id int64, name, content string) models.DownloadResult {
	return models.DownloadResult{FileID: id, Outcome: models.DownloadSuccess{Filename: name, Content: []byte(content)}}
}

func failure(id int64, reason string) models.DownloadResult {
	return models.DownloadResult{FileID: id, Outcome: models.DownloadFailure{Reason: reason}}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	out := make(map[string]string, len(r.File))
	for _, f := range r.File {
		if f.Method != zip.Deflate {
			t.Errorf("Expected entry %s to be deflated, got method %d", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(b)
	}
	return out
}

func TestArchiveBuilder_SingleFile(t *testing.T) {
	t.Parallel()
	b := NewArchiveBuilder(WithClock(func() time.Time { return fixedNow }))

	payload, err := b.Package(1, &models.BatchResult{Results: []models.DownloadResult{
		success(101, "subtitle_101.srt", "1\n00:00:01,000 --> 00:00:02,000\nHi"),
	}})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	if payload.Archive {
		t.Error("Expected a raw file, got an archive")
	}
	if payload.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("Unexpected content type %q", payload.ContentType)
	}
	if payload.Filename != "subtitle_101.srt" {
		t.Errorf("Unexpected filename %q", payload.Filename)
	}
	if string(payload.Content) != "1\n00:00:01,000 --> 00:00:02,000\nHi" {
		t.Errorf("Expected content unmodified, got %q", payload.Content)
	}
}

func TestArchiveBuilder_MultipleFiles(t *testing.T) {
	t.Parallel()
	b := NewArchiveBuilder(WithClock(func() time.Time { return fixedNow }))

	payload, err := b.Package(3, &models.BatchResult{Results: []models.DownloadResult{
		success(1, "a.srt", "first"),
		failure(2, "failed to fetch subtitle content: 500"),
		success(3, "b.srt", "second"),
	}})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	if !payload.Archive || payload.ContentType != "application/zip" {
		t.Errorf("Expected zip payload, got archive=%v type=%q", payload.Archive, payload.ContentType)
	}
	if payload.Filename != "subtitles_2026-10-19T12-05-09.zip" {
		t.Errorf("Unexpected archive name %q", payload.Filename)
	}

	entries := readZip(t, payload.Content)
	if len(entries) != 2 || entries["a.srt"] != "first" || entries["b.srt"] != "second" {
		t.Errorf("Unexpected entries %v", entries)
	}
}

func TestArchiveBuilder_SingleRequestedButOthersPresent(t *testing.T) {
	t.Parallel()
	b := NewArchiveBuilder()

	// Two requested, one succeeded: still an archive.
	payload, err := b.Package(2, &models.BatchResult{Results: []models.DownloadResult{
		failure(101, "network"),
		success(202, "b.srt", "x"),
	}})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if !payload.Archive {
		t.Error("Expected an archive when more than one file was requested")
	}
}

func TestArchiveBuilder_DuplicateNamesStayReadable(t *testing.T) {
	t.Parallel()
	b := NewArchiveBuilder()

	payload, err := b.Package(2, &models.BatchResult{Results: []models.DownloadResult{
		success(5, "same.srt", "one"),
		success(5, "same.srt", "two"),
	}})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(payload.Content), int64(len(payload.Content)))
	if err != nil {
		t.Fatalf("Archive with duplicate names is not readable: %v", err)
	}
	if len(r.File) != 2 {
		t.Errorf("Expected both duplicate entries to be written, got %d", len(r.File))
	}
}

func TestArchiveBuilder_NoSuccesses(t *testing.T) {
	t.Parallel()
	_, err := NewArchiveBuilder().Package(1, &models.BatchResult{Results: []models.DownloadResult{failure(1, "x")}})
	if !errors.Is(err, &apperrors.ErrArchiveBuild{}) {
		t.Fatalf("Expected ErrArchiveBuild, got %v", err)
	}
}

type failingWriter struct {
	after int
	n     int
}

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.after {
		return 0, errDiskFull
	}
	w.n += len(p)
	return len(p), nil
}

func TestWriteArchive_StreamFailure(t *testing.T) {
	t.Parallel()
	files := []models.DownloadSuccess{
		{Filename: "a.srt", Content: bytes.Repeat([]byte("subtitle line\n"), 4096)},
		{Filename: "b.srt", Content: []byte("b")},
	}

	err := writeArchive(&failingWriter{after: 64}, files, fixedNow)
	var buildErr *apperrors.ErrArchiveBuild
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected ErrArchiveBuild, got %v", err)
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("Expected the stream error to be wrapped, got %v", err)
	}
}
