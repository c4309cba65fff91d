// Package mockserver provides a fake agent that serves a /state endpoint
// with configurable resource figures.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ripor/slocheck/internal/agent"
	"github.com/ripor/slocheck/internal/otel"
)

// Config configures the mock agent.
type Config struct {
	Addr         string
	DeviceID     string
	AgentVersion string

	// CPUPct and MemMB are the figures reported on every read.
	CPUPct float64
	MemMB  float64
	// Jitter is the maximum absolute deviation added to CPUPct and MemMB.
	Jitter float64
	// FailEvery makes every Nth /state request fail with 503. Zero disables.
	FailEvery int
	// ReadyAfter makes /state fail with 503 until this long after Start.
	ReadyAfter time.Duration

	Tracer *otel.Tracer
}

func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:0",
		DeviceID:     "mock-device",
		AgentVersion: "0.0.0-mock",
		CPUPct:       0.5,
		MemMB:        40,
	}
}

// Server is the mock agent interface.
type Server interface {
	Start() error
	Stop(ctx context.Context)
	Addr() string
	BaseURL() string
	// Requests returns the number of /state requests served so far.
	Requests() int64
}

// New creates a new mock agent.
func New(config *Config) Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &mockServer{
		cfg: config,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartTestServer starts a server with cfg and returns cleanup. It panics
// if the server cannot listen.
func StartTestServer(cfg *Config) (server Server, cleanup func()) {
	srv := New(cfg)
	if err := srv.Start(); err != nil {
		panic(fmt.Sprintf("mockserver: start: %v", err))
	}
	cleanup = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}
	return srv, cleanup
}

type mockServer struct {
	cfg        *Config
	httpServer *http.Server
	addr       string
	started    time.Time
	requests   atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand
}

func (s *mockServer) Start() error {
	ln, err := net.Listen("tcp", normalizeAddr(s.cfg.Addr))
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.started = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/healthz", s.handleHealth)

	tracer := s.cfg.Tracer
	if tracer == nil {
		tracer = otel.NoopTracer()
	}
	s.httpServer = &http.Server{
		Handler:           otel.Middleware(tracer)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = s.httpServer.Serve(ln)
	}()

	return nil
}

func (s *mockServer) Stop(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	_ = s.httpServer.Shutdown(ctx)
}

func (s *mockServer) Addr() string {
	return s.addr
}

func (s *mockServer) BaseURL() string {
	if s.addr == "" {
		return ""
	}
	return "http://" + s.addr
}

func (s *mockServer) Requests() int64 {
	return s.requests.Load()
}

func (s *mockServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n := s.requests.Add(1)

	if s.cfg.ReadyAfter > 0 && time.Since(s.started) < s.cfg.ReadyAfter {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	if s.cfg.FailEvery > 0 && n%int64(s.cfg.FailEvery) == 0 {
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, agent.StatusSnapshot{
		DeviceID:      s.cfg.DeviceID,
		AgentVersion:  s.cfg.AgentVersion,
		CPUPct:        s.jittered(s.cfg.CPUPct),
		MemMB:         s.jittered(s.cfg.MemMB),
		ActivityState: "idle",
	})
}

func (s *mockServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *mockServer) jittered(v float64) float64 {
	if s.cfg.Jitter <= 0 {
		return v
	}
	s.mu.Lock()
	delta := (s.rng.Float64()*2 - 1) * s.cfg.Jitter
	s.mu.Unlock()
	return math.Max(0, v+delta)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return "127.0.0.1:0"
	}
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		return "127.0.0.1:" + port
	}
	return addr
}
