package agent

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessProbe observes a single process through the OS rather than through
// the process's own reporting. CPU is measured between consecutive calls.
type ProcessProbe struct {
	pid  int
	proc *process.Process
}

// NewProcessProbe attaches to pid and primes the CPU delta counter.
func NewProcessProbe(ctx context.Context, pid int) (*ProcessProbe, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("attach to pid %d: %w", pid, err)
	}
	// The first zero-interval reading only records a baseline.
	_, _ = proc.PercentWithContext(ctx, 0)
	return &ProcessProbe{pid: pid, proc: proc}, nil
}

// PID returns the observed process ID.
func (p *ProcessProbe) PID() int {
	return p.pid
}

// Observe returns CPU usage since the previous call and current RSS.
func (p *ProcessProbe) Observe(ctx context.Context) (*ProcessMetrics, error) {
	cpuPct, err := p.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("cpu of pid %d: %w", p.pid, err)
	}
	memInfo, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory of pid %d: %w", p.pid, err)
	}

	metrics := &ProcessMetrics{
		PID:        p.pid,
		CPUPercent: cpuPct,
		RSSMB:      float64(memInfo.RSS) / bytesPerMB,
	}
	if n, err := p.proc.NumThreadsWithContext(ctx); err == nil {
		metrics.NumThreads = int(n)
	}
	return metrics, nil
}

// HostContext captures the host conditions a measurement ran under.
// Load averages are left zero where the platform has none.
func HostContext(ctx context.Context) (*HostMetrics, error) {
	host := &HostMetrics{}

	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu count: %w", err)
	}
	host.LogicalCPUs = counts

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil && memInfo != nil {
		host.MemTotalMB = float64(memInfo.Total) / bytesPerMB
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		host.CPUPercent = pct[0]
	}

	if loadAvg, err := load.AvgWithContext(ctx); err == nil && loadAvg != nil {
		host.LoadAvg1 = loadAvg.Load1
		host.LoadAvg5 = loadAvg.Load5
		host.LoadAvg15 = loadAvg.Load15
	}

	return host, nil
}
