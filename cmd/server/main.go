package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/subgrab/subgrab/internal/api"
	"github.com/subgrab/subgrab/internal/cache"
	"github.com/subgrab/subgrab/internal/client"
	"github.com/subgrab/subgrab/internal/config"
	grpcserver "github.com/subgrab/subgrab/internal/grpc"
	"github.com/subgrab/subgrab/internal/metrics"
	"github.com/subgrab/subgrab/internal/services"
)

func main() {
	if err := run(); err != nil {
		logger := config.GetLogger()
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.ConfigureLogger(cfg)

	logger.Info().
		Str("server_address", cfg.Server.Address).
		Int("server_port", cfg.Server.Port).
		Str("base_url", cfg.OpenSubtitles.BaseURL).
		Bool("proxy", cfg.ProxyConnectionString != "").
		Str("cache_provider", cfg.Cache.Provider).
		Bool("metrics", cfg.Metrics.Enabled).
		Bool("grpc", cfg.GRPC.Enabled).
		Msg("Application started with configuration")

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to initialize Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	var opts []client.Option
	searchCache, err := cache.FromConfig(cfg, "search")
	if err != nil {
		logger.Warn().Err(err).Msg("Search cache unavailable, continuing without it")
	} else {
		opts = append(opts, client.WithSearchCache(searchCache))
	}

	httpClient := client.NewClient(cfg, opts...)
	defer httpClient.Close()

	downloader := services.NewSubtitleDownloader(services.NewDownloaderConfig(cfg), httpClient)
	if err := downloader.Configured(); err != nil {
		logger.Warn().Err(err).Msg("Downloads will be refused until configuration is complete")
	}

	apiServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:           api.NewServer(cfg, httpClient, downloader, services.NewArchiveBuilder()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	shutdownTimeout := config.Duration(cfg.Server.ShutdownTimeout, 15*time.Second)

	servers := []*http.Server{apiServer}
	if cfg.Metrics.Enabled {
		servers = append(servers, metrics.NewHTTPServer(cfg.Server.Address, cfg.Metrics.Port))
	}
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info().Str("address", srv.Addr).Msg("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.GRPC.Enabled {
		grpcServer := grpcserver.NewGRPCServer(grpcserver.Checks{
			grpcserver.SearchService: func() error {
				if cfg.OpenSubtitles.APIKey == "" || cfg.OpenSubtitles.AppName == "" {
					return errors.New("missing API configuration")
				}
				return nil
			},
			grpcserver.DownloadService: downloader.Configured,
		})
		address := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", address)
		if err != nil {
			return fmt.Errorf("failed to create gRPC listener on %s: %w", address, err)
		}

		g.Go(func() error {
			logger.Info().Str("address", address).Msg("Starting gRPC health server")
			return grpcServer.Serve(listener)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	<-gctx.Done()
	logger.Info().Msg("Shutting down")
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Server stopped gracefully")
	return nil
}
