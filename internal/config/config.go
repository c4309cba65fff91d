// Package config holds the immutable settings of one slocheck run.
package config

import (
	"errors"
	"flag"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by Validate when an invariant does not hold.
var ErrInvalidConfig = errors.New("invalid config")

// Config is constructed once at startup and treated as read-only afterwards.
type Config struct {
	Duration        time.Duration
	Interval        time.Duration
	CPUThresholdPct float64
	MemThresholdMB  float64
	UseRunning      bool
	DebugBuild      bool
	JSONOut         string
	ChartOut        string

	// PanelURL is the agent status base URL; /state is appended to it.
	PanelURL     string
	ReadyTimeout time.Duration
	ReadTimeout  time.Duration
	ReadyBackoff time.Duration
	StopGrace    time.Duration

	BuildCommand []string
	TargetDir    string
	AgentBinary  string

	LogLevel     string
	OtelExporter string
	OtelEndpoint string
	OtelInsecure bool
}

// Default returns a Config populated with the stock thresholds and timings.
func Default() *Config {
	return &Config{
		Duration:        DefaultDuration,
		Interval:        DefaultInterval,
		CPUThresholdPct: DefaultCPUThresholdPct,
		MemThresholdMB:  DefaultMemThresholdMB,
		PanelURL:        DefaultPanelURL,
		ReadyTimeout:    DefaultReadyTimeout,
		ReadTimeout:     DefaultReadTimeout,
		ReadyBackoff:    DefaultReadyBackoff,
		StopGrace:       DefaultStopGrace,
		BuildCommand:    DefaultBuildCommand(),
		TargetDir:       DefaultTargetDir,
		AgentBinary:     defaultAgentBinary(runtime.GOOS),
		LogLevel:        "info",
		OtelExporter:    DefaultOtelExporter,
	}
}

func defaultAgentBinary(goos string) string {
	if goos == "windows" {
		return DefaultAgentPackage + ".exe"
	}
	return DefaultAgentPackage
}

// BindFlags registers every command-line flag on fs, writing into c.
// Time flags take seconds as a float ("0.5") or a Go duration ("500ms").
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.Var((*seconds)(&c.Duration), "duration", "sampling window in seconds")
	fs.Var((*seconds)(&c.Interval), "interval", "sampling interval in seconds")
	fs.Float64Var(&c.CPUThresholdPct, "cpu-threshold", c.CPUThresholdPct, "CPU p95 threshold (%)")
	fs.Float64Var(&c.MemThresholdMB, "mem-threshold", c.MemThresholdMB, "memory p95 threshold (MB)")
	fs.BoolVar(&c.UseRunning, "use-running", c.UseRunning, "do not launch the agent; measure one already running")
	fs.StringVar(&c.JSONOut, "json-out", c.JSONOut, "write the result JSON to this path")
	fs.BoolVar(&c.DebugBuild, "debug-build", c.DebugBuild, "use the debug build instead of release")

	fs.StringVar(&c.PanelURL, "panel-url", c.PanelURL, "agent panel base URL (overrides $"+PanelURLEnv+")")
	fs.Var((*seconds)(&c.ReadyTimeout), "ready-timeout", "seconds to wait for the agent to answer /state")
	fs.Var((*seconds)(&c.StopGrace), "stop-grace", "seconds to wait after a graceful stop before killing the agent")
	fs.StringVar(&c.TargetDir, "target-dir", c.TargetDir, "build output directory holding release/ and debug/")
	fs.StringVar(&c.AgentBinary, "agent-bin", c.AgentBinary, "agent executable name inside the target directory")
	fs.Var((*commandLine)(&c.BuildCommand), "build-cmd", "command that builds the agent (space separated)")
	fs.StringVar(&c.ChartOut, "chart-out", c.ChartOut, "write an HTML chart of the samples to this path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.OtelExporter, "otel-exporter", c.OtelExporter, "OpenTelemetry exporter (none, stdout, otlp-grpc, otlp-http)")
	fs.StringVar(&c.OtelEndpoint, "otel-endpoint", c.OtelEndpoint, "OTLP endpoint, e.g. localhost:4317")
	fs.BoolVar(&c.OtelInsecure, "otel-insecure", c.OtelInsecure, "disable TLS for OTLP exporters")
}

// ApplyEnv applies environment overrides read through getenv.
// It runs before flag parsing so explicit flags win.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(PanelURLEnv)); v != "" {
		c.PanelURL = v
	}
}

// Validate checks the Config invariants.
func (c *Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be > 0, got %s", ErrInvalidConfig, c.Duration)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be > 0, got %s", ErrInvalidConfig, c.Interval)
	case c.CPUThresholdPct < 0:
		return fmt.Errorf("%w: cpu threshold must be >= 0, got %v", ErrInvalidConfig, c.CPUThresholdPct)
	case c.MemThresholdMB < 0:
		return fmt.Errorf("%w: mem threshold must be >= 0, got %v", ErrInvalidConfig, c.MemThresholdMB)
	case c.ReadyTimeout <= 0:
		return fmt.Errorf("%w: ready timeout must be > 0, got %s", ErrInvalidConfig, c.ReadyTimeout)
	case c.ReadTimeout <= 0:
		return fmt.Errorf("%w: read timeout must be > 0, got %s", ErrInvalidConfig, c.ReadTimeout)
	case strings.TrimSpace(c.PanelURL) == "":
		return fmt.Errorf("%w: panel URL cannot be empty", ErrInvalidConfig)
	}
	if !c.UseRunning && len(c.BuildCommand) == 0 {
		return fmt.Errorf("%w: build command cannot be empty unless -use-running is set", ErrInvalidConfig)
	}
	return nil
}

// StateURL returns the absolute URL of the agent status endpoint.
func (c *Config) StateURL() string {
	return strings.TrimRight(c.PanelURL, "/") + "/state"
}

// seconds is a flag.Value storing float seconds into a time.Duration.
type seconds time.Duration

func (s *seconds) String() string {
	if s == nil {
		return "0"
	}
	return strconv.FormatFloat(time.Duration(*s).Seconds(), 'f', -1, 64)
}

func (s *seconds) Set(v string) error {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*s = seconds(time.Duration(f * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("expected seconds or a duration, got %q", v)
	}
	*s = seconds(d)
	return nil
}

type commandLine []string

func (c *commandLine) String() string {
	if c == nil {
		return ""
	}
	return strings.Join(*c, " ")
}

func (c *commandLine) Set(v string) error {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return errors.New("build command cannot be empty")
	}
	*c = fields
	return nil
}
