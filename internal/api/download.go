package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/models"
)

const unexpectedDownloadError = "An unexpected error occurred during download"

// maxDownloadBody bounds the JSON request body of POST /api/download.
const maxDownloadBody = 1 << 20

// downloadBody defers interpretation of fileIds so the security key is
// checked before the identifiers are.
type downloadBody struct {
	FileIDs     json.RawMessage `json:"fileIds"`
	SecurityKey string          `json:"securityKey"`
}

// handleDownload serves POST /api/download.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.downloader.Configured(); err != nil {
		s.fail(w, r, err)
		return
	}

	var body downloadBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDownloadBody)).Decode(&body); err != nil {
		s.fail(w, r, apperrors.NewValidationError("Invalid request body"))
		return
	}

	req := models.DownloadRequest{
		FileIDs:     parseFileIDs(body.FileIDs),
		SecurityKey: body.SecurityKey,
	}

	batch, err := s.downloader.Download(r.Context(), req, origin(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payload, err := s.packager.Package(len(req.FileIDs), batch)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := writePayload(w, payload, batch.Summary()); err != nil {
		s.logger.Error().Err(err).Str("filename", payload.Filename).Msg("Failed to write download response")
	}
}

// fail maps err to its status and writes the error body. Aggregate failures
// carry the per-file results; other server errors carry a generic detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusCode(err)

	var details any
	var aggregate *apperrors.ErrAggregateFailure
	switch {
	case errors.As(err, &aggregate):
		details = aggregate.Details
		writeError(w, status, aggregate.Message, details)
		s.logger.Error().Err(err).Msg("Download failed for every file")
		report(r, err)
		return
	case status >= http.StatusInternalServerError:
		details = unexpectedDownloadError
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Download request failed")
		report(r, err)
	} else {
		s.logger.Warn().Err(err).Int("status", status).Msg("Download request rejected")
	}
	writeError(w, status, err.Error(), details)
}

// parseFileIDs decodes the fileIds member. Anything that is not a JSON array
// yields nil. Elements that are not integers become 0 so validation rejects
// them.
func parseFileIDs(raw json.RawMessage) []int64 {
	var items []json.Number
	if err := json.Unmarshal(raw, &items); err != nil {
		var loose []any
		if json.Unmarshal(raw, &loose) != nil {
			return nil
		}
		return make([]int64, len(loose))
	}

	ids := make([]int64, len(items))
	for i, n := range items {
		if v, err := n.Int64(); err == nil {
			ids[i] = v
			continue
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) && f > 0 && f <= math.MaxInt64 {
			ids[i] = int64(f)
		}
	}
	return ids
}
