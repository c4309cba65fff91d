package config

import "time"

// Default configuration constants for an idle measurement run
const (
	DefaultDuration        = 120 * time.Second
	DefaultInterval        = 1 * time.Second
	DefaultCPUThresholdPct = 1.0
	DefaultMemThresholdMB  = 60.0
	DefaultPanelURL        = "http://127.0.0.1:49219"
	DefaultReadyTimeout    = 10 * time.Second
	DefaultReadTimeout     = 2 * time.Second
	DefaultReadyBackoff    = 200 * time.Millisecond
	DefaultStopGrace       = 3 * time.Second
	DefaultTargetDir       = "target"
	DefaultAgentPackage    = "agent-daemon"
	DefaultOtelExporter    = "none"

	// PanelURLEnv names the environment variable holding the agent panel base URL.
	PanelURLEnv = "RIPOR_PANEL"
)

// DefaultBuildCommand is the command that compiles the agent daemon.
// "--release" is appended unless a debug build is requested.
func DefaultBuildCommand() []string {
	return []string{"cargo", "build", "-q", "-p", DefaultAgentPackage}
}
