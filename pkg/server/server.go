package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	"github.com/ethpandaops/iovcalib/pkg/api"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/geometry"
	"github.com/ethpandaops/iovcalib/pkg/observability"
	"github.com/ethpandaops/iovcalib/pkg/provider"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server represents the main application server
type Server struct {
	log    logrus.FieldLogger
	config *Config

	provider *provider.Provider
	api      api.Service

	pprofServer  *http.Server
	healthServer *http.Server
}

// NewProvider builds the calibration cache described by config.
// In default mode the channels come from the configured geometry.
func NewProvider(ctx context.Context, log logrus.FieldLogger, config *Config) (*provider.Provider, error) {
	var deps provider.Dependencies

	if config.ElectronicsCalib.Source() == datasource.Default {
		channels, err := geometry.NewStatic(&config.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to build geometry: %w", err)
		}

		deps.Channels = channels
	}

	p, err := provider.New(ctx, log, &config.ElectronicsCalib, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create calibration provider: %w", err)
	}

	return p, nil
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, log logrus.FieldLogger, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p, err := NewProvider(ctx, log, config)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:   config,
		log:      log,
		provider: p,
		api:      api.NewService(&config.API, p, log),
	}, nil
}

// Provider returns the calibration cache served by the server
func (s *Server) Provider() *provider.Provider {
	return s.provider
}

// Start starts the server and all its components
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	s.log.WithFields(logrus.Fields{
		"source":      s.provider.DataSource().String(),
		"api_enabled": s.config.API.Enabled,
	}).Debug("Server component states")

	// Start metrics server
	g.Go(func() error {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.WithField("panic", recovered).Error("Panic in metrics server goroutine")
			}
		}()
		observability.StartMetricsServer(ctx, s.config.MetricsAddr)
		<-ctx.Done()

		return nil
	})

	// Start pprof server if configured
	if s.config.PProfAddr != nil {
		g.Go(func() error {
			if err := s.startPProf(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			<-ctx.Done()

			return nil
		})
	}

	// Start health check server if configured
	if s.config.HealthCheckAddr != nil {
		g.Go(func() error {
			if err := s.startHealthCheck(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			<-ctx.Done()

			return nil
		})
	}

	if err := s.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start api: %w", err)
	}

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		// Use a fresh context for cleanup since the current one is canceled
		cleanupCtx := context.Background()

		return s.stop(cleanupCtx)
	})

	return g.Wait()
}

func (s *Server) stop(ctx context.Context) error {
	cleanupCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("Starting graceful shutdown...")

	if err := s.api.Stop(); err != nil {
		s.log.WithError(err).Error("failed to shutdown API server")
	}

	// Shutdown HTTP servers
	if s.pprofServer != nil {
		if err := s.pprofServer.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to shutdown pprof server")
		}
	}

	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to shutdown health server")
		}
	}

	if err := s.provider.Close(); err != nil {
		s.log.WithError(err).Error("failed to close calibration folder")
	}

	// Stop metrics server using observability package
	if err := observability.StopMetricsServer(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to stop metrics server")
	}

	s.log.Info("Server stopped gracefully")

	return nil
}

func (s *Server) startPProf() error {
	s.log.WithField("addr", *s.config.PProfAddr).Info("Starting pprof server")

	s.pprofServer = &http.Server{
		Addr:              *s.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	return s.pprofServer.ListenAndServe()
}

func (s *Server) startHealthCheck() error {
	s.log.WithField("addr", *s.config.HealthCheckAddr).Info("Starting healthcheck server")

	s.healthServer = &http.Server{
		Addr:              *s.config.HealthCheckAddr,
		ReadHeaderTimeout: 120 * time.Second,
		Handler:           s.healthHandler(),
	}

	return s.healthServer.ListenAndServe()
}

// healthHandler reports the published snapshot; the cache is healthy once constructed
func (s *Server) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := s.provider.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"source":     s.provider.DataSource().String(),
			"generation": snap.Generation().String(),
			"interval":   snap.Interval().String(),
			"channels":   snap.Len(),
		})
	})
}
