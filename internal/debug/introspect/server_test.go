package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbus/go-flightbus/internal/core/metrics"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/pkg/types"
)

func newBus(t *testing.T) *sb.Bus {
	t.Helper()
	cfg := sb.DefaultConfig()
	cfg.Pool.BufferCount = 8
	cfg.Pool.BufferSize = 256
	b, err := sb.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0" // 使用随机端口
	server := New(cfg)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func getJSON(t *testing.T, server *Server, path string, v interface{}) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.NotNil(t, server)
	assert.Equal(t, DefaultAddr, server.config.Addr)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)

	addr := server.Addr()
	assert.NotEmpty(t, addr)
	assert.NotEqual(t, "127.0.0.1:0", addr)

	// 重复启动应该无效
	require.NoError(t, server.Start(ctx))

	require.NoError(t, server.Stop())
	assert.False(t, server.running)

	// 重复停止应该无效
	require.NoError(t, server.Stop())
}

func TestServer_HealthEndpoint(t *testing.T) {
	t.Run("without bus", func(t *testing.T) {
		server := startServer(t, Config{})

		var health HealthResponse
		getJSON(t, server, "/health", &health)
		assert.Equal(t, "degraded", health.Status)
		assert.NotEmpty(t, health.Uptime)
	})

	t.Run("with bus", func(t *testing.T) {
		id := types.NewInstanceID()
		server := startServer(t, Config{Bus: newBus(t), InstanceID: id})

		var health HealthResponse
		getJSON(t, server, "/health", &health)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, id, health.InstanceID)
	})
}

func TestServer_StatsAndPipes(t *testing.T) {
	bus := newBus(t)
	pid, err := bus.CreatePipe(4, "APP_PIPE")
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(0x0100, pid))

	server := startServer(t, Config{Bus: bus})

	var stats types.BusStats
	getJSON(t, server, "/debug/sb/stats", &stats)
	assert.Equal(t, 1, stats.PipesInUse)
	assert.Equal(t, 1, stats.SubscriptionsInUse)

	var pipes []types.PipeInfo
	getJSON(t, server, "/debug/sb/pipes", &pipes)
	require.Len(t, pipes, 1)
	assert.Equal(t, "APP_PIPE", pipes[0].Name)
	assert.Equal(t, 4, pipes[0].Depth)
}

func TestServer_RoutesEndpoint(t *testing.T) {
	bus := newBus(t)
	a, err := bus.CreatePipe(4, "A")
	require.NoError(t, err)
	b, err := bus.CreatePipe(4, "B")
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(0x0100, a))
	require.NoError(t, bus.SubscribeEx(0x0100, b, types.Qos{Priority: types.PriorityHigh}, 2))
	require.NoError(t, bus.DisableRoute(0x0100, b))

	server := startServer(t, Config{Bus: bus})

	var routes []RouteEntry
	getJSON(t, server, "/debug/sb/routes", &routes)
	require.Len(t, routes, 1)
	assert.Equal(t, "0x0100", routes[0].MsgID)
	require.Len(t, routes[0].Destinations, 2)

	byName := map[string]DestinationEntry{}
	for _, d := range routes[0].Destinations {
		byName[d.PipeName] = d
	}
	assert.True(t, byName["A"].Active)
	assert.False(t, byName["B"].Active)
	assert.Equal(t, 2, byName["B"].MsgLimit)
	assert.Equal(t, types.PriorityHigh.String(), byName["B"].Priority)
}

func TestServer_NoBus(t *testing.T) {
	server := startServer(t, Config{})

	for _, path := range []string{"/debug/sb/stats", "/debug/sb/pipes", "/debug/sb/routes"} {
		resp, err := http.Get("http://" + server.Addr() + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}

	var report Report
	getJSON(t, server, "/debug/sb", &report)
	assert.Nil(t, report.Stats)
	assert.NotNil(t, report.Runtime)
}

func TestServer_ReportEndpoint(t *testing.T) {
	bus := newBus(t)
	_, err := bus.CreatePipe(2, "P")
	require.NoError(t, err)
	server := startServer(t, Config{Bus: bus})

	var report Report
	getJSON(t, server, "/debug/sb", &report)
	assert.NotEmpty(t, report.Uptime)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 1, report.Stats.PipesInUse)
	assert.Len(t, report.Pipes, 1)
	assert.NotNil(t, report.Runtime)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	bus := newBus(t)
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(bus, clock.NewMock()))

	server := startServer(t, Config{Bus: bus, Gatherer: reg})

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flightbus_sb_buffers_max 8")
}

func TestServer_MetricsDisabledWithoutGatherer(t *testing.T) {
	server := startServer(t, Config{})

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RuntimeEndpoint(t *testing.T) {
	server := startServer(t, Config{})

	var info RuntimeInfo
	getJSON(t, server, "/debug/sb/runtime", &info)
	assert.NotEmpty(t, info.GoVersion)
	assert.Greater(t, info.NumGoroutine, 0)
	assert.Greater(t, info.NumCPU, 0)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server := startServer(t, Config{})

	// 使用 POST 方法（应该被拒绝）
	resp, err := http.Post("http://"+server.Addr()+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_CustomHandlers(t *testing.T) {
	customCalled := false
	server := startServer(t, Config{
		CustomHandlers: map[string]http.HandlerFunc{
			"/custom": func(w http.ResponseWriter, r *http.Request) {
				customCalled = true
				w.Write([]byte("custom response"))
			},
		},
	})

	resp, err := http.Get("http://" + server.Addr() + "/custom")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, customCalled)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "custom response", string(body))
}

func TestServer_PprofEndpoint(t *testing.T) {
	server := startServer(t, Config{})

	resp, err := http.Get("http://" + server.Addr() + "/debug/pprof/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Addr(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:8888"})

	// 未启动时返回配置地址
	assert.Equal(t, "127.0.0.1:8888", server.Addr())

	server = startServer(t, Config{})
	addr := server.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)
	assert.Contains(t, addr, "127.0.0.1:")
}
