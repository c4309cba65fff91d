// Package slo judges sampled resource usage against idle thresholds.
package slo

import (
	"github.com/ripor/slocheck/internal/agent"
	"github.com/ripor/slocheck/internal/stats"
)

// Percentile is the rank used to summarize a metric.
const Percentile = 95

// Exit codes reported for a completed measurement.
const (
	ExitPass = 0
	ExitFail = 2
)

// MetricStat summarizes one metric against its threshold.
type MetricStat struct {
	P95       float64 `json:"p95"`
	Avg       float64 `json:"avg"`
	Threshold float64 `json:"threshold"`
	OK        bool    `json:"ok"`
}

// ProcessStats summarizes the externally observed agent process.
// It is informational and never affects Pass.
type ProcessStats struct {
	PID        int     `json:"pid"`
	Samples    int     `json:"samples"`
	CPUP95     float64 `json:"cpu_p95"`
	CPUAvg     float64 `json:"cpu_avg"`
	RSSP95MB   float64 `json:"rss_p95_mb"`
	RSSAvgMB   float64 `json:"rss_avg_mb"`
	ProbeFails int     `json:"probe_failures,omitempty"`
}

// Result is the outcome of one idle measurement. It is built once when the
// sampling window closes and not modified after being emitted.
type Result struct {
	Samples   int        `json:"samples"`
	IntervalS float64    `json:"interval_s"`
	DurationS float64    `json:"duration_s"`
	CPU       MetricStat `json:"cpu"`
	Mem       MetricStat `json:"mem"`
	Pass      bool       `json:"pass"`

	RunID        string             `json:"run_id,omitempty"`
	DeviceID     string             `json:"device_id,omitempty"`
	AgentVersion string             `json:"agent_version,omitempty"`
	FailedReads  int                `json:"failed_reads,omitempty"`
	Process      *ProcessStats      `json:"process,omitempty"`
	Host         *agent.HostMetrics `json:"host,omitempty"`
}

// ExitCode returns ExitPass when every metric is within its threshold.
func (r *Result) ExitCode() int {
	if r.Pass {
		return ExitPass
	}
	return ExitFail
}

// Summarize computes the p95 and mean of values and checks the p95
// against threshold.
func Summarize(values []float64, threshold float64) MetricStat {
	p95 := stats.Percentile(values, Percentile)
	return MetricStat{
		P95:       p95,
		Avg:       stats.Average(values),
		Threshold: threshold,
		OK:        p95 <= threshold,
	}
}

// Evaluate builds a Result from the CPU and memory sample sequences.
// It has no side effects and depends only on its arguments.
func Evaluate(cpu, mem []float64, cpuThreshold, memThreshold float64) Result {
	cpuStat := Summarize(cpu, cpuThreshold)
	memStat := Summarize(mem, memThreshold)
	return Result{
		Samples: len(cpu),
		CPU:     cpuStat,
		Mem:     memStat,
		Pass:    cpuStat.OK && memStat.OK,
	}
}

// SummarizeProcess reduces externally observed process samples.
func SummarizeProcess(pid int, samples []agent.ProcessMetrics, failures int) *ProcessStats {
	cpu := make([]float64, len(samples))
	rss := make([]float64, len(samples))
	for i, s := range samples {
		cpu[i] = s.CPUPercent
		rss[i] = s.RSSMB
	}
	return &ProcessStats{
		PID:        pid,
		Samples:    len(samples),
		CPUP95:     stats.Percentile(cpu, Percentile),
		CPUAvg:     stats.Average(cpu),
		RSSP95MB:   stats.Percentile(rss, Percentile),
		RSSAvgMB:   stats.Average(rss),
		ProbeFails: failures,
	}
}
