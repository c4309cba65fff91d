package slo

import (
	"encoding/json"
	"testing"

	"github.com/ripor/slocheck/internal/agent"
)

func TestEvaluate_OutlierBreachesCPU(t *testing.T) {
	r := Evaluate([]float64{1, 2, 3, 4, 100}, []float64{10, 10, 10, 10, 10}, 3.0, 60)

	if r.CPU.P95 != 100 {
		t.Errorf("cpu p95 = %v, want 100", r.CPU.P95)
	}
	if r.CPU.OK {
		t.Error("expected cpu not ok")
	}
	if r.CPU.Avg != 22 {
		t.Errorf("cpu avg = %v, want 22", r.CPU.Avg)
	}
	if !r.Mem.OK {
		t.Error("expected mem ok")
	}
	if r.Pass {
		t.Error("expected overall fail")
	}
	if r.ExitCode() != ExitFail {
		t.Errorf("ExitCode = %d, want %d", r.ExitCode(), ExitFail)
	}
}

func TestEvaluate_SteadyIdlePasses(t *testing.T) {
	cpu := []float64{0.5, 0.5, 0.5}
	mem := []float64{40, 40, 40}
	r := Evaluate(cpu, mem, 1.0, 60.0)

	if r.Samples != 3 {
		t.Errorf("Samples = %d", r.Samples)
	}
	if r.CPU.P95 != 0.5 || r.Mem.P95 != 40 {
		t.Errorf("p95 = %v/%v", r.CPU.P95, r.Mem.P95)
	}
	if !r.Pass || r.ExitCode() != ExitPass {
		t.Errorf("expected pass, got %+v", r)
	}
}

func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	r := Evaluate([]float64{1}, []float64{60}, 1, 60)
	if !r.CPU.OK || !r.Mem.OK {
		t.Errorf("p95 equal to threshold must be ok: %+v", r)
	}
}

func TestEvaluate_NoSamples(t *testing.T) {
	r := Evaluate(nil, nil, 1, 60)
	if r.Samples != 0 {
		t.Errorf("Samples = %d", r.Samples)
	}
	if r.CPU.P95 != 0 || r.CPU.Avg != 0 || r.Mem.P95 != 0 || r.Mem.Avg != 0 {
		t.Errorf("expected zero stats, got %+v", r)
	}
	if !r.Pass {
		t.Error("zero-sample window evaluates against the 0 floor and passes")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	cpu := []float64{0.3, 0.9, 0.1, 0.4}
	mem := []float64{41, 39, 45, 40}
	a := Evaluate(cpu, mem, 1, 60)
	b := Evaluate(cpu, mem, 1, 60)
	if a != b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}

func TestResultJSONShape(t *testing.T) {
	r := Evaluate([]float64{0.5}, []float64{40}, 1, 60)
	r.IntervalS = 1
	r.DurationS = 3

	data, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"samples", "interval_s", "duration_s", "cpu", "mem", "pass"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	for _, key := range []string{"run_id", "process", "host", "failed_reads"} {
		if _, ok := doc[key]; ok {
			t.Errorf("optional key %q should be omitted when empty", key)
		}
	}
	cpu := doc["cpu"].(map[string]any)
	for _, key := range []string{"p95", "avg", "threshold", "ok"} {
		if _, ok := cpu[key]; !ok {
			t.Errorf("missing cpu.%s", key)
		}
	}
}

func TestSummarizeProcess(t *testing.T) {
	samples := []agent.ProcessMetrics{
		{PID: 7, CPUPercent: 0.2, RSSMB: 30},
		{PID: 7, CPUPercent: 0.4, RSSMB: 32},
	}
	ps := SummarizeProcess(7, samples, 1)
	if ps.PID != 7 || ps.Samples != 2 || ps.ProbeFails != 1 {
		t.Errorf("unexpected header: %+v", ps)
	}
	if ps.CPUP95 != 0.4 || ps.RSSP95MB != 32 {
		t.Errorf("p95 = %v/%v", ps.CPUP95, ps.RSSP95MB)
	}
	if ps.RSSAvgMB != 31 {
		t.Errorf("rss avg = %v", ps.RSSAvgMB)
	}
}
