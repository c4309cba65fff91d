// Package agent talks to the background agent under measurement.
// It reads the agent's self-reported status over HTTP and, when the
// harness owns the agent process, observes that process from outside.
package agent

// StatusSnapshot is one point-in-time read of the agent's /state endpoint.
type StatusSnapshot struct {
	// DeviceID identifies the device the agent is enrolled as.
	DeviceID string `json:"device_id"`

	// AgentVersion is the agent build version.
	AgentVersion string `json:"agent_version"`

	// CPUPct is the agent's own CPU usage percentage (not host-wide).
	CPUPct float64 `json:"cpu_pct"`

	// MemMB is the agent's resident memory in megabytes.
	MemMB float64 `json:"mem_mb"`

	// QueueLen is the number of events waiting to be uploaded.
	QueueLen int64 `json:"queue_len,omitempty"`

	// ActivityState is the agent's view of user activity ("active", "idle", ...).
	ActivityState string `json:"activity_state,omitempty"`

	// DroppedEvents counts events the agent discarded.
	DroppedEvents uint64 `json:"dropped_events,omitempty"`
}

// ProcessMetrics contains metrics for the agent process as seen by the harness.
type ProcessMetrics struct {
	// PID is the process ID.
	PID int `json:"pid"`

	// CPUPercent is the process CPU usage percentage.
	CPUPercent float64 `json:"cpu_percent"`

	// RSSMB is the resident set size in megabytes.
	RSSMB float64 `json:"rss_mb"`

	// NumThreads is the number of threads in the process.
	NumThreads int `json:"num_threads,omitempty"`
}

// HostMetrics describes the machine the measurement ran on.
type HostMetrics struct {
	// LogicalCPUs is the number of logical CPUs.
	LogicalCPUs int `json:"logical_cpus"`

	// MemTotalMB is the total system memory in megabytes.
	MemTotalMB float64 `json:"mem_total_mb"`

	// CPUPercent is the host-wide CPU usage percentage at capture time.
	CPUPercent float64 `json:"cpu_percent"`

	// LoadAvg1 is the 1-minute load average.
	LoadAvg1 float64 `json:"load_avg_1,omitempty"`

	// LoadAvg5 is the 5-minute load average.
	LoadAvg5 float64 `json:"load_avg_5,omitempty"`

	// LoadAvg15 is the 15-minute load average.
	LoadAvg15 float64 `json:"load_avg_15,omitempty"`
}

const bytesPerMB = 1024 * 1024
