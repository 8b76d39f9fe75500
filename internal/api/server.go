// Package api is the HTTP boundary: the search proxy, the download route and
// the response composer.
package api

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/subgrab/subgrab/internal/client"
	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/metrics"
	"github.com/subgrab/subgrab/internal/models"
	"github.com/subgrab/subgrab/internal/services"
)

// Packager turns a finished batch into the response payload.
type Packager interface {
	Package(requested int, batch *models.BatchResult) (*models.Payload, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg        *config.Config
	client     client.Client
	downloader services.SubtitleDownloader
	packager   Packager
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, c client.Client, d services.SubtitleDownloader, p Packager) *Server {
	return &Server{
		cfg:        cfg,
		client:     c,
		downloader: d,
		packager:   p,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     config.GetLogger(),
	}
}

// Router sets up the routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	// Inside Recoverer so panics are reported before being turned into a 500.
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true, Timeout: 2 * time.Second}).Handle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/download", s.handleDownload)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

// report sends a 5xx error to Sentry. It is a no-op when Sentry is not
// initialized.
func report(r *http.Request, err error) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
