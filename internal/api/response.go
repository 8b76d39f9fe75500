package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/models"
)

// DownloadResultsHeader carries the JSON DownloadSummary of a download response.
const DownloadResultsHeader = "X-Download-Results"

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger := config.GetLogger()
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// writePayload sends a downloaded file or archive as an attachment together
// with the batch summary. Content-Length is set for archives only.
func writePayload(w http.ResponseWriter, payload *models.Payload, summary models.DownloadSummary) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", payload.ContentType)
	h.Set("Content-Disposition", `attachment; filename="`+payload.Filename+`"`)
	if payload.Archive {
		h.Set("Content-Length", strconv.Itoa(len(payload.Content)))
	}
	h.Set(DownloadResultsHeader, string(encoded))

	w.WriteHeader(http.StatusOK)
	_, err = w.Write(payload.Content)
	return err
}
