package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
)

// ProbeServer serves the orchestrator probes and the metrics endpoint. It
// only ever reads the readiness state.
type ProbeServer struct {
	config    HealthConfig
	readiness *ReadinessState
	srv       *http.Server
	ln        net.Listener
}

func NewProbeServer(cfg HealthConfig, readiness *ReadinessState, gatherer prometheus.Gatherer) *ProbeServer {
	p := &ProbeServer{
		config:    cfg,
		readiness: readiness,
	}

	p.srv = &http.Server{
		Handler:           p.routes(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return p
}

func (p *ProbeServer) routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", p.handleLive)
	r.Get("/health/ready", p.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (p *ProbeServer) Handler() http.Handler {
	return p.srv.Handler
}

func (p *ProbeServer) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

func (p *ProbeServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !p.readiness.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(notReadyBody)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

// Listen binds the configured host and port.
func (p *ProbeServer) Listen() error {
	addr := net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	p.ln = ln
	return nil
}

// Addr returns the bound address, or "" before Listen succeeded.
func (p *ProbeServer) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

// Serve blocks until Shutdown is called.
func (p *ProbeServer) Serve() error {
	if p.ln == nil {
		return errors.New("probe server is not listening")
	}

	log.Info().Str("addr", p.Addr()).Msg("Health check server listening")
	if err := p.srv.Serve(p.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server. It is safe to call before Serve started, in
// which case the listener is closed here.
func (p *ProbeServer) Shutdown(ctx context.Context) error {
	err := p.srv.Shutdown(ctx)
	if p.ln != nil {
		p.ln.Close()
	}
	return err
}
