package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/iovcalib/pkg/api/handlers"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Service defines the API service interface
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type service struct {
	app      *fiber.App
	server   *http.Server
	config   *Config
	provider handlers.CalibrationProvider
	log      logrus.FieldLogger
}

// NewService creates a new API service
func NewService(cfg *Config, provider handlers.CalibrationProvider, log logrus.FieldLogger) Service {
	return &service{
		config:   cfg,
		provider: provider,
		log:      log.WithField("service", "api"),
	}
}

// NewApp validates the embedded OpenAPI document and builds the Fiber app with all routes
func NewApp(ctx context.Context, provider handlers.CalibrationProvider, log logrus.FieldLogger) (*fiber.App, error) {
	doc, err := LoadOpenAPI(ctx)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		AppName:      fmt.Sprintf("%s %s", doc.Info.Title, doc.Info.Version),
	})

	setupMiddleware(app, log)

	server := handlers.NewServer(provider, openAPIDocument, log)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/snapshot", server.GetSnapshot)
	apiV1.Get("/channels", server.ListChannels)
	apiV1.Get("/channels/:channel", server.GetChannel)
	apiV1.Post("/refresh", server.Refresh)
	apiV1.Get("/openapi.json", server.GetOpenAPI)

	return app, nil
}

// Start initializes and starts the API server
func (s *service) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API service is disabled")
		return nil
	}

	app, err := NewApp(ctx, s.provider, s.log)
	if err != nil {
		return err
	}

	s.app = app

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           adaptor.FiberApp(s.app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", s.config.Addr).Info("Starting API server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server failed to start")
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server
func (s *service) Stop() error {
	if s.server == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
