// Package lifecycle builds, launches, and stops the agent under test.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ripor/slocheck/internal/config"
	"github.com/ripor/slocheck/internal/events"
	"github.com/ripor/slocheck/internal/otel"
	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
)

const (
	logEnvVar     = "RUST_LOG"
	logEnvDefault = "warn"

	// killWait bounds how long teardown waits for the exit of a killed agent.
	killWait = 2 * time.Second
)

// Options configures a Manager.
type Options struct {
	BuildCommand []string
	Release      bool
	TargetDir    string
	AgentBinary  string
	StopGrace    time.Duration

	// Executable overrides <TargetDir>/<release|debug>/<AgentBinary>.
	Executable string
	Args       []string
	// Env defaults to os.Environ().
	Env []string
	// BuildOutput receives build stdout and stderr. Defaults to os.Stderr.
	BuildOutput io.Writer

	RunID   string
	Logger  *events.EventLogger
	Tracer  *otel.Tracer
	Metrics *otel.Metrics
}

// OptionsFromConfig derives Manager options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BuildCommand: cfg.BuildCommand,
		Release:      !cfg.DebugBuild,
		TargetDir:    cfg.TargetDir,
		AgentBinary:  cfg.AgentBinary,
		StopGrace:    cfg.StopGrace,
	}
}

// Manager owns the agent process from build until teardown.
type Manager struct {
	opts Options

	mu    sync.Mutex
	state State
}

// NewManager returns a Manager in StateNotStarted.
func NewManager(opts Options) *Manager {
	if opts.StopGrace <= 0 {
		opts.StopGrace = config.DefaultStopGrace
	}
	if opts.BuildOutput == nil {
		opts.BuildOutput = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = events.NoopEventLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.NoopTracer()
	}
	if opts.Metrics == nil {
		opts.Metrics = otel.NoopMetrics()
	}
	return &Manager{opts: opts, state: StateNotStarted}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ExecutablePath returns the path of the agent executable to launch.
func (m *Manager) ExecutablePath() string {
	if m.opts.Executable != "" {
		return m.opts.Executable
	}
	profile := "debug"
	if m.opts.Release {
		profile = "release"
	}
	return filepath.Join(m.opts.TargetDir, profile, m.opts.AgentBinary)
}

func (m *Manager) transition(to State, reason string) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return NewInvalidTransitionError(from, to)
	}
	m.state = to
	m.mu.Unlock()

	m.opts.Logger.LogLifecycleTransition(from.String(), to.String(), reason)
	m.opts.Metrics.SetLifecycleState(int(to))
	return nil
}

// Skip records that an already running agent is measured and nothing is
// owned.
func (m *Manager) Skip() error {
	return m.transition(StateSkipped, "use_running")
}

// Acquire builds and launches the agent. On success the caller owns the
// returned Handle and must Release it. On failure no process is left
// behind and the manager ends in StateTerminated.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	if err := m.transition(StateBuilding, "acquire"); err != nil {
		return nil, err
	}

	if err := m.build(ctx); err != nil {
		_ = m.transition(StateTerminated, "build_failed")
		return nil, err
	}

	h, err := m.launch(ctx)
	if err != nil {
		_ = m.transition(StateTerminated, "launch_failed")
		return nil, err
	}
	_ = m.transition(StateLaunched, "started")
	return h, nil
}

func (m *Manager) build(ctx context.Context) error {
	if len(m.opts.BuildCommand) == 0 {
		return nil
	}
	ctx, span := m.opts.Tracer.StartPhaseSpan(ctx, m.opts.RunID, otel.PhaseBuild,
		attribute.Bool("slocheck.build.release", m.opts.Release),
	)
	defer span.End()

	args := append([]string{}, m.opts.BuildCommand[1:]...)
	if m.opts.Release {
		args = append(args, "--release")
	}
	m.opts.Logger.LogBuildStarted(append([]string{m.opts.BuildCommand[0]}, args...), m.opts.Release)

	cmd := exec.CommandContext(ctx, m.opts.BuildCommand[0], args...)
	cmd.Env = m.environ()
	cmd.Stdout = m.opts.BuildOutput
	cmd.Stderr = m.opts.BuildOutput
	if err := cmd.Run(); err != nil {
		lcErr := NewBuildError(strings.Join(cmd.Args, " "), err)
		otel.RecordError(span, lcErr, "build", false)
		return lcErr
	}
	return nil
}

func (m *Manager) launch(ctx context.Context) (*Handle, error) {
	ctx, span := m.opts.Tracer.StartPhaseSpan(ctx, m.opts.RunID, otel.PhaseLaunch)
	defer span.End()

	path := m.ExecutablePath()
	cmd := exec.Command(path, m.opts.Args...)
	cmd.Env = withDefaultEnv(m.environ(), logEnvVar, logEnvDefault)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		lcErr := NewLaunchError(path, err)
		otel.RecordError(span, lcErr, "launch", false)
		return nil, lcErr
	}

	h := &Handle{
		m:    m,
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go h.reap()

	proc, err := process.NewProcessWithContext(ctx, int32(h.pid))
	if err == nil {
		h.proc = proc
	}

	span.SetAttributes(attribute.Int("slocheck.agent.pid", h.pid))
	m.opts.Logger.LogAgentLaunched(h.pid, path)
	return h, nil
}

func (m *Manager) environ() []string {
	if m.opts.Env != nil {
		return m.opts.Env
	}
	return os.Environ()
}

// withDefaultEnv sets key=value unless key is already present.
func withDefaultEnv(env []string, key, value string) []string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return env
		}
	}
	out := make([]string, 0, len(env)+1)
	out = append(out, env...)
	return append(out, prefix+value)
}

// Handle is exclusive ownership of a launched agent process.
type Handle struct {
	m    *Manager
	cmd  *exec.Cmd
	proc *process.Process
	pid  int

	done chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

func (h *Handle) reap() {
	_ = h.cmd.Wait()
	close(h.done)
}

// PID returns the agent process id, or 0 for a nil Handle.
func (h *Handle) PID() int {
	if h == nil {
		return 0
	}
	return h.pid
}

// State returns the lifecycle state of the owning manager.
func (h *Handle) State() State {
	if h == nil {
		return StateTerminated
	}
	return h.m.State()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Exited is closed once the agent process has exited and been reaped.
// A nil Handle reports an already closed channel.
func (h *Handle) Exited() <-chan struct{} {
	if h == nil {
		return closedChan
	}
	return h.done
}

// Release stops the agent: a graceful terminate, then a kill if the agent
// outlives the stop grace period. Release is idempotent and a nil Handle
// releases as a no-op.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.releaseOnce.Do(func() {
		h.releaseErr = h.stop(ctx)
	})
	return h.releaseErr
}

func (h *Handle) stop(ctx context.Context) error {
	m := h.m
	if err := m.transition(StateTerminating, "release"); err != nil {
		return err
	}
	ctx, span := m.opts.Tracer.StartPhaseSpan(ctx, m.opts.RunID, otel.PhaseTeardown,
		attribute.Int("slocheck.agent.pid", h.pid),
	)
	defer span.End()

	method, err := h.terminate(ctx)
	if err != nil {
		otel.RecordError(span, err, "teardown", false)
	}
	span.SetAttributes(attribute.String("slocheck.teardown.method", method))
	m.opts.Logger.LogTeardown(h.pid, method, err)
	_ = m.transition(StateTerminated, method)
	return err
}

func (h *Handle) terminate(ctx context.Context) (string, error) {
	if h.exited() {
		return "exited", nil
	}

	if termErr := h.signalTerminate(ctx); termErr != nil && !h.exited() {
		h.m.opts.Logger.LogTeardown(h.pid, "terminate", termErr)
	}

	grace := time.NewTimer(h.m.opts.StopGrace)
	defer grace.Stop()
	select {
	case <-h.done:
		return "terminate", nil
	case <-grace.C:
	case <-ctx.Done():
	}

	if killErr := h.signalKill(ctx); killErr != nil && !h.exited() {
		return "kill", NewTerminateError(h.pid, killErr)
	}

	wait := time.NewTimer(killWait)
	defer wait.Stop()
	select {
	case <-h.done:
		return "kill", nil
	case <-wait.C:
		return "kill", NewTerminateError(h.pid, errors.New("process still running after kill"))
	}
}

func (h *Handle) signalTerminate(ctx context.Context) error {
	if h.proc != nil {
		return h.proc.TerminateWithContext(ctx)
	}
	return h.cmd.Process.Signal(os.Interrupt)
}

func (h *Handle) signalKill(ctx context.Context) error {
	if h.proc != nil {
		return h.proc.KillWithContext(ctx)
	}
	return h.cmd.Process.Kill()
}

func (h *Handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
