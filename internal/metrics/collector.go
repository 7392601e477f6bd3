// Package metrics serves the adapter's Prometheus registry over HTTP.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/config"
)

type Collector struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry

	uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewCollector wires the registry that the storage client's instruments are
// registered on and adds process-level collectors.
func NewCollector(cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry) (*Collector, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:    cfg,
		logger:    logger,
		registry:  registry,
		startTime: time.Now(),
	}

	c.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "evs_process_uptime_seconds",
		Help: "Seconds since the adapter process started",
	}, func() float64 {
		return time.Since(c.startTime).Seconds()
	})

	registry.MustRegister(
		c.uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c, nil
}

// Registry exposes the underlying registry for client instrumentation.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics on the configured port until Stop is called.
func (c *Collector) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.config.Monitoring.MetricsPort),
		Handler: mux,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	c.logger.Info("metrics server started",
		zap.Int("port", c.config.Monitoring.MetricsPort),
	)

	return nil
}

// Stop shuts the metrics server down gracefully.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
