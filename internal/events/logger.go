package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EventLogger provides structured logging for key events in a slocheck run.
type EventLogger struct {
	logger *slog.Logger
	runID  string
}

// NewEventLogger creates a new EventLogger with JSON output to stderr.
// Stdout is reserved for the result document.
// It includes the base attribute run_id.
func NewEventLogger(runID string, level slog.Level) *EventLogger {
	return NewEventLoggerWithWriter(runID, os.Stderr, level)
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to a custom writer.
// Useful for testing or redirecting output.
func NewEventLoggerWithWriter(runID string, w io.Writer, level slog.Level) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler).With(
		"run_id", runID,
	)
	return &EventLogger{
		logger: logger,
		runID:  runID,
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// RunID returns the run identifier attached to every record.
func (el *EventLogger) RunID() string {
	return el.runID
}

// LogRunStarted logs the start of a measurement run.
// event: "run_started"
// Attributes: use_running, trace_id
func (el *EventLogger) LogRunStarted(useRunning bool, traceID string) {
	el.logger.Info("run_started",
		"use_running", useRunning,
		"trace_id", traceID,
	)
}

// LogBuildStarted logs the start of the agent build.
// event: "build_started"
// Attributes: command, release
func (el *EventLogger) LogBuildStarted(command []string, release bool) {
	el.logger.Info("build_started",
		"command", strings.Join(command, " "),
		"release", release,
	)
}

// LogAgentLaunched logs a successfully started agent process.
// event: "agent_launched"
// Attributes: pid, path
func (el *EventLogger) LogAgentLaunched(pid int, path string) {
	el.logger.Info("agent_launched",
		"pid", pid,
		"path", path,
	)
}

// LogLifecycleTransition logs a transition of the agent lifecycle.
// event: "lifecycle_transition"
// Attributes: from_state, to_state, reason
func (el *EventLogger) LogLifecycleTransition(fromState, toState, reason string) {
	el.logger.Debug("lifecycle_transition",
		"from_state", fromState,
		"to_state", toState,
		"reason", reason,
	)
}

// LogAgentReady logs the first successful status read.
// event: "agent_ready"
// Attributes: device_id, agent_version, wait_ms
func (el *EventLogger) LogAgentReady(deviceID, agentVersion string, waitMs int64) {
	el.logger.Info("agent_ready",
		"device_id", deviceID,
		"agent_version", agentVersion,
		"wait_ms", waitMs,
	)
}

// LogMeasurementStarted logs the start of the sampling window.
// event: "measurement_started"
// Attributes: duration_s, interval_s
func (el *EventLogger) LogMeasurementStarted(durationS, intervalS float64) {
	el.logger.Info("measurement_started",
		"duration_s", durationS,
		"interval_s", intervalS,
	)
}

// LogReadFailed logs a status read that failed during sampling.
// event: "read_failed"
// Attributes: tick, error
func (el *EventLogger) LogReadFailed(tick int, err error) {
	el.logger.Warn("read_failed",
		"tick", tick,
		"error", errString(err),
	)
}

// LogProbeFailed logs a failed external observation of the agent process.
// event: "probe_failed"
// Attributes: pid, error
func (el *EventLogger) LogProbeFailed(pid int, err error) {
	el.logger.Warn("probe_failed",
		"pid", pid,
		"error", errString(err),
	)
}

// LogResult logs the evaluated outcome.
// event: "slo_result"
// Attributes: samples, failed_reads, cpu_p95, mem_p95, pass
func (el *EventLogger) LogResult(samples, failedReads int, cpuP95, memP95 float64, pass bool) {
	level := slog.LevelInfo
	if !pass {
		level = slog.LevelWarn
	}
	el.logger.Log(context.Background(), level, "slo_result",
		"samples", samples,
		"failed_reads", failedReads,
		"cpu_p95", cpuP95,
		"mem_p95", memP95,
		"pass", pass,
	)
}

// LogTeardown logs how the agent process was stopped.
// event: "agent_teardown"
// Attributes: pid, method, error
func (el *EventLogger) LogTeardown(pid int, method string, err error) {
	if err != nil {
		el.logger.Error("agent_teardown",
			"pid", pid,
			"method", method,
			"error", err.Error(),
		)
		return
	}
	el.logger.Info("agent_teardown",
		"pid", pid,
		"method", method,
	)
}

// LogFatal logs an error that aborts the run.
// event: "run_aborted"
// Attributes: error
func (el *EventLogger) LogFatal(err error) {
	el.logger.Error("run_aborted",
		"error", errString(err),
	)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Global logger management
var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex

	noopOnce   sync.Once
	noopLogger *EventLogger
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance.
// If no logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns an event logger that discards all events.
// Useful for testing or when event logging is disabled.
func NoopEventLogger() *EventLogger {
	noopOnce.Do(func() {
		noopLogger = &EventLogger{
			logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		}
	})
	return noopLogger
}
