package alert

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrometheusExporter exposes detector metrics over HTTP on a dedicated
// listener.
type PrometheusExporter struct {
	server  *http.Server
	metrics *Metrics
	logger  *logrus.Logger
	port    string
}

// NewPrometheusExporter builds an exporter with its own registry so
// repeated construction in tests never double-registers.
func NewPrometheusExporter(port string, logger *logrus.Logger) (*PrometheusExporter, error) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	return &PrometheusExporter{
		server:  server,
		metrics: metrics,
		logger:  logger,
		port:    port,
	}, nil
}

// Start serves metrics until ctx is cancelled, then shuts down.
func (e *PrometheusExporter) Start(ctx context.Context) error {
	e.logger.Infof("Starting Prometheus exporter on port %s", e.port)
	e.logger.Infof("Metrics available at: http://localhost:%s/metrics", e.port)

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Errorf("Failed to start Prometheus exporter: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.logger.Info("Shutting down Prometheus exporter...")
	return e.server.Shutdown(shutdownCtx)
}

// GetMetrics returns the instrument set shared with the pipeline.
func (e *PrometheusExporter) GetMetrics() *Metrics {
	return e.metrics
}
