package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/subgrab/subgrab/internal/metrics"
	"github.com/subgrab/subgrab/internal/models"
)

const missingCriteriaMessage = "Query, IMDB ID, or TMDB ID is required"

// handleSearch proxies GET /api/search to the provider and returns its JSON
// untouched.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.OpenSubtitles.APIKey == "" || s.cfg.OpenSubtitles.AppName == "" {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "Missing API configuration", nil)
		return
	}

	params := searchParamsFromQuery(r)
	if err := s.validate.Struct(params); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, searchValidationMessage(err), nil)
		return
	}

	body, err := s.client.Search(r.Context(), params)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("query", r.URL.RawQuery).Msg("Search failed")
		report(r, err)
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// searchParamsFromQuery reads the search criteria. A page that is not a
// positive integer is dropped.
func searchParamsFromQuery(r *http.Request) models.SearchParams {
	q := r.URL.Query()
	params := models.SearchParams{
		Query:     q.Get("query"),
		Languages: q.Get("languages"),
		IMDbID:    q.Get("imdb_id"),
		TMDBID:    q.Get("tmdb_id"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		params.Page = page
	}
	return params
}

func searchValidationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required_without_all" {
			return missingCriteriaMessage
		}
	}
	return "Invalid " + fieldErrs[0].Field() + " parameter"
}
