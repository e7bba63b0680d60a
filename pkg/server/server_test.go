package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/health"
	"github.com/telemetry-agent/pkg/metrics"
)

type fixedChecker health.Status

func (f fixedChecker) Health() health.Status { return health.Status(f) }

// blockingChecker 进入后通知 entered，阻塞直到 release 关闭
type blockingChecker struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingChecker) Health() health.Status {
	close(b.entered)
	<-b.release
	return health.Status{State: health.StateUp}
}

func newTestServer(t *testing.T, st health.Status) *httptest.Server {
	t.Helper()
	reg := metrics.NewAgentRegistry(false)
	m := metrics.NewMetricFactory(metrics.NewPromRegistry(reg)).NewSet()
	m.Deliveries.WithLabelValues("agents", "ok").Inc()

	cfg := config.ServerConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewHTTPServer(cfg, zaptest.NewLogger(t), reg, fixedChecker(st))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthUp(t *testing.T) {
	ts := newTestServer(t, health.Status{State: health.StateUp, Details: map[string]string{"agent_id": "svc-A"}})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, health.StateUp, body.State)
	assert.Equal(t, "svc-A", body.Details["agent_id"])
}

func TestHealthDownIs503(t *testing.T) {
	ts := newTestServer(t, health.Status{State: health.StateDown, Details: map[string]string{"status": "degraded"}})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"DOWN","details":{"status":"degraded"}}`, string(raw))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, health.Status{State: health.StateUp})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `agent_deliveries_total{result="ok",topic="agents"} 1`)
}

func TestIndexAndUnknownRoute(t *testing.T) {
	ts := newTestServer(t, health.Status{State: health.StateUp})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	cfg := config.ServerConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewHTTPServer(cfg, zaptest.NewLogger(t), metrics.NewAgentRegistry(false), fixedChecker{State: health.StateUp})

	require.NoError(t, srv.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestShutdownHonoursCallerDeadline(t *testing.T) {
	cfg := config.ServerConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	checker := blockingChecker{entered: make(chan struct{}), release: make(chan struct{})}
	defer close(checker.release)
	srv := NewHTTPServer(cfg, zap.NewNop(), metrics.NewAgentRegistry(false), checker)
	require.NoError(t, srv.Start())

	go func() {
		resp, err := http.Get("http://" + srv.Addr() + "/health")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-checker.entered

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
}
