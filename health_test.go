package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProbeServer(readiness *ReadinessState) *ProbeServer {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	return NewProbeServer(HealthConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: time.Second,
	}, readiness, reg)
}

func probe(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec.Code, rec.Body.String()
}

func TestProbeEndpoints(t *testing.T) {
	readiness := NewReadinessState()
	h := newTestProbeServer(readiness).Handler()

	code, body := probe(t, h, http.MethodGet, "/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = probe(t, h, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body)

	readiness.SetReady(true)
	code, body = probe(t, h, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	readiness.SetReady(false)
	code, _ = probe(t, h, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	// liveness does not depend on readiness
	code, _ = probe(t, h, http.MethodGet, "/health/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestProbeUnknownRoutes(t *testing.T) {
	h := newTestProbeServer(NewReadinessState()).Handler()

	code, _ := probe(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = probe(t, h, http.MethodPost, "/health/live")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestProbeMetrics(t *testing.T) {
	h := newTestProbeServer(NewReadinessState()).Handler()

	code, body := probe(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "sqs_worker_ready")
	assert.Contains(t, body, "sqs_worker_poll_errors_total")
}

func TestProbeServerLifecycle(t *testing.T) {
	readiness := NewReadinessState()
	readiness.SetReady(true)
	p := newTestProbeServer(readiness)

	assert.Empty(t, p.Addr())
	require.NoError(t, p.Listen())
	require.NotEmpty(t, p.Addr())

	served := make(chan error, 1)
	go func() {
		served <- p.Serve()
	}()

	resp, err := http.Get("http://" + p.Addr() + "/health/ready")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
}

func TestProbeServerListenConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	p := NewProbeServer(HealthConfig{Host: "127.0.0.1", Port: port}, NewReadinessState(), prometheus.NewRegistry())

	assert.Error(t, p.Listen())
	assert.Empty(t, p.Addr())
	assert.Error(t, p.Serve())
}

func TestProbeServerShutdownBeforeServe(t *testing.T) {
	p := newTestProbeServer(NewReadinessState())
	require.NoError(t, p.Listen())
	addr := p.Addr()

	require.NoError(t, p.Shutdown(context.Background()))

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}
