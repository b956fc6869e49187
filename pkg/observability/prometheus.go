// Package observability provides Prometheus metrics and the metrics server
package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//nolint:gochecknoglobals // Singleton pattern for metrics server
var (
	metricsServerInstance *http.Server
	metricsMu             sync.Mutex
)

// StartMetricsServer starts a Prometheus metrics server if it hasn't been started already.
// The server is shut down when ctx is cancelled.
func StartMetricsServer(ctx context.Context, addr string) {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if metricsServerInstance != nil {
		return
	}

	sm := http.NewServeMux()
	sm.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 15 * time.Second,
		Handler:           sm,
	}
	metricsServerInstance = srv

	go func() {
		logrus.Infof("Starting metrics server on %s", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = StopMetricsServer(shutdownCtx)
	}()
}

// StopMetricsServer shuts down the metrics server if it is running
func StopMetricsServer(ctx context.Context) error {
	metricsMu.Lock()
	srv := metricsServerInstance
	metricsServerInstance = nil
	metricsMu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}
