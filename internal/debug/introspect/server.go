package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// ============================================================================
//                              配置
// ============================================================================

// BusSource 总线快照来源
//
// interfaces.SoftwareBus 满足该接口。
type BusSource interface {
	Stats() types.BusStats
	Pipes() []types.PipeInfo
	Routes() []types.RouteInfo
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Bus 可选的软件总线
	Bus BusSource

	// Gatherer 可选的指标来源，为 nil 时不挂载 /metrics
	Gatherer prometheus.Gatherer

	// InstanceID 执行实例标识
	InstanceID types.InstanceID

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	server   *http.Server
	listener net.Listener

	running   bool
	startTime time.Time

	mu sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		config:    cfg,
		startTime: time.Now(),
	}
}

// Handler 返回路由，Start 使用同一路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/sb", s.handleReport)
	mux.HandleFunc("/debug/sb/stats", s.handleStats)
	mux.HandleFunc("/debug/sb/pipes", s.handlePipes)
	mux.HandleFunc("/debug/sb/routes", s.handleRoutes)
	mux.HandleFunc("/debug/sb/runtime", s.handleRuntime)

	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{
			ErrorLog: promLogger{},
		}))
	}

	// pprof 端点
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", s.handleHealth)

	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}
	return mux
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	logger.Info("自省服务已启动", "addr", listener.Addr().String(), "instance", s.config.InstanceID)
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// Report 完整诊断响应
type Report struct {
	Timestamp  time.Time        `json:"timestamp"`
	Uptime     string           `json:"uptime"`
	InstanceID types.InstanceID `json:"instance_id,omitempty"`
	Stats      *types.BusStats  `json:"stats,omitempty"`
	Pipes      []types.PipeInfo `json:"pipes,omitempty"`
	Routes     []RouteEntry     `json:"routes,omitempty"`
	Runtime    *RuntimeInfo     `json:"runtime,omitempty"`
}

// RouteEntry 路由表条目
//
// MsgID 以十六进制输出，PipeID 以 "index.gen" 输出，与日志格式一致。
type RouteEntry struct {
	MsgID        string             `json:"msg_id"`
	Sequence     uint16             `json:"sequence"`
	Destinations []DestinationEntry `json:"destinations"`
}

// DestinationEntry 路由目的地
type DestinationEntry struct {
	PipeID   string `json:"pipe_id"`
	PipeName string `json:"pipe_name,omitempty"`
	Priority string `json:"priority"`
	Reliable string `json:"reliability"`
	MsgLimit int    `json:"msg_limit"`
	Active   bool   `json:"active"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Uptime     string           `json:"uptime,omitempty"`
	InstanceID types.InstanceID `json:"instance_id,omitempty"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleReport 处理完整诊断请求
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	report := Report{
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startTime).String(),
		InstanceID: s.config.InstanceID,
		Runtime:    collectRuntimeInfo(),
	}
	if s.config.Bus != nil {
		st := s.config.Bus.Stats()
		report.Stats = &st
		report.Pipes = s.config.Bus.Pipes()
		report.Routes = s.collectRoutes(report.Pipes)
	}
	s.writeJSON(w, report)
}

// handleStats 处理总线统计请求
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.config.Bus == nil {
		http.Error(w, "Software bus not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.config.Bus.Stats())
}

// handlePipes 处理管道列表请求
func (s *Server) handlePipes(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.config.Bus == nil {
		http.Error(w, "Software bus not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.config.Bus.Pipes())
}

// handleRoutes 处理路由表请求
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.config.Bus == nil {
		http.Error(w, "Software bus not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.collectRoutes(s.config.Bus.Pipes()))
}

// handleRuntime 处理运行时信息请求
func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, collectRuntimeInfo())
}

// handleHealth 处理健康检查请求
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	health := HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startTime).String(),
		InstanceID: s.config.InstanceID,
	}
	if s.config.Bus == nil {
		health.Status = "degraded"
	}
	s.writeJSON(w, health)
}

// ============================================================================
//                              数据收集
// ============================================================================

// collectRoutes 收集路由表，并用管道名称标注目的地
func (s *Server) collectRoutes(pipes []types.PipeInfo) []RouteEntry {
	names := make(map[types.PipeID]string, len(pipes))
	for _, p := range pipes {
		names[p.ID] = p.Name
	}

	routes := s.config.Bus.Routes()
	out := make([]RouteEntry, 0, len(routes))
	for _, r := range routes {
		e := RouteEntry{
			MsgID:        r.MsgID.String(),
			Sequence:     r.Sequence,
			Destinations: make([]DestinationEntry, 0, len(r.Destinations)),
		}
		for _, d := range r.Destinations {
			e.Destinations = append(e.Destinations, DestinationEntry{
				PipeID:   d.PipeID.String(),
				PipeName: names[d.PipeID],
				Priority: d.Qos.Priority.String(),
				Reliable: d.Qos.Reliability.String(),
				MsgLimit: d.MsgLimit,
				Active:   d.Active,
			})
		}
		out = append(out, e)
	}
	return out
}

// collectRuntimeInfo 收集运行时信息
func collectRuntimeInfo() *RuntimeInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

// ============================================================================
//                              辅助方法
// ============================================================================

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// promLogger 将 promhttp 的错误输出接入日志
type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	logger.Warn("指标导出错误", "detail", v)
}
