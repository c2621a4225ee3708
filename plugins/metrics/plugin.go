// Package metrics exports scanner activity as Prometheus metrics.
//
// The plugin is also a scanner.EventHandler: registered with WithMetrics it
// counts engine phase transitions, capture session transitions, detections
// and failures. When Config.Addr is set it serves /metrics while the scanner
// is started.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/scanner"
)

// Config holds configuration options for the metrics plugin.
type Config struct {
	// Addr is the listen address for the /metrics endpoint, e.g. ":9090".
	// Empty disables the endpoint; metrics are still collected.
	Addr string

	// Namespace prefixes every metric name.
	// Default: "barscan"
	Namespace string

	// ShutdownTimeout bounds the graceful stop of the endpoint.
	// Default: 5 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Namespace:       "barscan",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Plugin collects scanner metrics into its own registry.
type Plugin struct {
	scanner.BaseEventHandler

	cfg      Config
	registry *prometheus.Registry

	phase            prometheus.Gauge
	phaseTransitions *prometheus.CounterVec
	sessionStatus    *prometheus.CounterVec
	detections       *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec

	mu       sync.Mutex
	logger   log.Logger
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a metrics plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Namespace == "" {
		cfg.Namespace = "barscan"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	p := &Plugin{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		logger:   log.NewNoopLogger(),

		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "engine_phase",
			Help:      "Current engine phase (0=uninitialized, 1=loading, 2=ready, 3=failed)",
		}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "engine_phase_transitions_total",
			Help:      "Total number of engine phase transitions",
		}, []string{"from", "to"}),
		sessionStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "capture_session_transitions_total",
			Help:      "Total number of capture session status transitions by target status",
		}, []string{"status"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "detections_total",
			Help:      "Total number of decoded barcodes by source",
		}, []string{"source"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "errors_total",
			Help:      "Total number of failed operations by operation and error kind",
		}, []string{"op", "kind"}),
	}

	p.registry.MustRegister(
		p.phase,
		p.phaseTransitions,
		p.sessionStatus,
		p.detections,
		p.errorsTotal,
	)
	return p
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "metrics"
}

// Registry returns the registry holding the scanner metrics.
func (p *Plugin) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns the /metrics HTTP handler.
func (p *Plugin) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Initialize starts the metrics endpoint when an address is configured.
func (p *Plugin) Initialize(ctx context.Context, cfg scanner.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = log.OrNoop(cfg.Logger)
	if cfg.Coordinator != nil {
		p.phase.Set(float64(cfg.Coordinator.Phase()))
	}

	if p.cfg.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	p.listener = ln

	p.wg.Add(1)
	go func(srv *http.Server) {
		defer p.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics endpoint stopped", log.Err(err))
		}
	}(p.server)

	p.logger.Info("metrics endpoint listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound endpoint address, or "" when the endpoint is not
// running.
func (p *Plugin) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown stops the metrics endpoint.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.listener = nil
	p.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	p.wg.Wait()
	return err
}

// OnPhaseChange implements scanner.EventHandler.
func (p *Plugin) OnPhaseChange(event scanner.PhaseChangeEvent) {
	p.phase.Set(float64(event.Current))
	p.phaseTransitions.WithLabelValues(event.Previous.String(), event.Current.String()).Inc()
}

// OnSessionStatus implements scanner.EventHandler.
func (p *Plugin) OnSessionStatus(event scanner.SessionStatusEvent) {
	p.sessionStatus.WithLabelValues(event.Current.String()).Inc()
}

// OnDetection implements scanner.EventHandler.
func (p *Plugin) OnDetection(event scanner.DetectionEvent) {
	p.detections.WithLabelValues(string(event.Source)).Inc()
}

// OnError implements scanner.EventHandler.
func (p *Plugin) OnError(event scanner.ErrorEvent) {
	p.errorsTotal.WithLabelValues(event.Op, engine.KindOf(event.Err).String()).Inc()
}

// Ensure Plugin implements scanner.Plugin and scanner.EventHandler.
var (
	_ scanner.Plugin       = (*Plugin)(nil)
	_ scanner.EventHandler = (*Plugin)(nil)
)
