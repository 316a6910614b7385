package daemon

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aresch/deluge/internal/component"
	"github.com/aresch/deluge/internal/logging"
)

// MetricsServer exposes a prometheus gatherer over HTTP as a managed
// component.
type MetricsServer struct {
	component.BaseHooks

	addr     string
	gatherer prometheus.Gatherer
	logger   *logging.Logger

	srv     *http.Server
	boundTo net.Addr
}

// NewMetricsServer creates a metrics endpoint component for addr, serving
// the given gatherer on /metrics.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *MetricsServer {
	return &MetricsServer{
		addr:     addr,
		gatherer: gatherer,
		logger:   logging.New("daemon.metrics"),
	}
}

// Start binds the HTTP listener and begins serving.
func (m *MetricsServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Handler: mux}
	m.boundTo = ln.Addr()

	go func() {
		if serr := m.srv.Serve(ln); serr != nil && serr != http.ErrServerClosed {
			m.logger.Error("metrics server failed: %v", serr)
		}
	}()

	m.logger.Info("metrics listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listener address, or nil when not started.
func (m *MetricsServer) Addr() net.Addr {
	return m.boundTo
}

// Stop shuts the HTTP server down, honoring the context deadline.
func (m *MetricsServer) Stop(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	err := m.srv.Shutdown(ctx)
	m.srv = nil
	m.boundTo = nil
	return err
}
