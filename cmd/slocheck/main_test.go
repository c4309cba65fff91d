package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ripor/slocheck/internal/config"
	"github.com/ripor/slocheck/internal/mockserver"
	"github.com/ripor/slocheck/internal/slo"
)

func noEnv(string) string { return "" }

func runArgs(t *testing.T, ctx context.Context, getenv func(string) string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr, getenv)
	return code, stdout.String(), stderr.String()
}

func TestRun_PassAgainstMockAgent(t *testing.T) {
	srv, cleanup := mockserver.StartTestServer(nil)
	defer cleanup()

	dir := t.TempDir()
	jsonOut := filepath.Join(dir, "out", "slo.json")
	chartOut := filepath.Join(dir, "out", "slo.html")

	code, stdout, stderr := runArgs(t, context.Background(), noEnv,
		"-use-running",
		"-panel-url", srv.BaseURL(),
		"-duration", "0.3",
		"-interval", "0.1",
		"-json-out", jsonOut,
		"-chart-out", chartOut,
	)
	if code != slo.ExitPass {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	header, body, ok := strings.Cut(stdout, "\n")
	if !ok || header != "SLO results (idle):" {
		t.Fatalf("unexpected stdout:\n%s", stdout)
	}
	var result slo.Result
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("stdout body is not a result: %v\n%s", err, body)
	}
	if !result.Pass || result.CPU.Threshold != config.DefaultCPUThresholdPct {
		t.Fatalf("unexpected result: %+v", result)
	}

	for _, path := range []string{jsonOut, chartOut} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected output %s: %v", path, err)
		}
	}
	if !strings.Contains(stderr, `"msg":"slo_result"`) {
		t.Errorf("stderr missing structured result log:\n%s", stderr)
	}
}

func TestRun_FailExitCode(t *testing.T) {
	srv, cleanup := mockserver.StartTestServer(nil)
	defer cleanup()

	code, _, stderr := runArgs(t, context.Background(), noEnv,
		"-use-running",
		"-panel-url", srv.BaseURL(),
		"-duration", "0.2",
		"-interval", "0.1",
		"-mem-threshold", "10",
	)
	if code != slo.ExitFail {
		t.Fatalf("exit code = %d, want %d, stderr:\n%s", code, slo.ExitFail, stderr)
	}
}

func TestRun_PanelURLFromEnv(t *testing.T) {
	srv, cleanup := mockserver.StartTestServer(nil)
	defer cleanup()

	getenv := func(key string) string {
		if key == config.PanelURLEnv {
			return srv.BaseURL()
		}
		return ""
	}
	code, _, stderr := runArgs(t, context.Background(), getenv,
		"-use-running", "-duration", "0.2", "-interval", "0.1",
	)
	if code != slo.ExitPass {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if srv.Requests() == 0 {
		t.Fatal("mock agent was never read")
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"-bogus"}},
		{name: "zero interval", args: []string{"-use-running", "-interval", "0"}},
		{name: "negative duration", args: []string{"-use-running", "-duration", "-1"}},
		{name: "bad log level", args: []string{"-use-running", "-log-level", "loud"}},
		{name: "bad exporter", args: []string{"-use-running", "-otel-exporter", "carrier-pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runArgs(t, context.Background(), noEnv, tt.args...)
			if code != exitFatal {
				t.Fatalf("exit code = %d, want %d", code, exitFatal)
			}
			if stdout != "" {
				t.Fatalf("unexpected stdout: %q", stdout)
			}
		})
	}
}

func TestRun_UnreachableAgent(t *testing.T) {
	code, stdout, _ := runArgs(t, context.Background(), noEnv,
		"-use-running",
		"-panel-url", "http://127.0.0.1:1",
		"-ready-timeout", "0.3",
	)
	if code != exitFatal {
		t.Fatalf("exit code = %d, want %d", code, exitFatal)
	}
	if stdout != "" {
		t.Fatalf("result printed after readiness failure: %q", stdout)
	}
}

func TestRun_Interrupted(t *testing.T) {
	srv, cleanup := mockserver.StartTestServer(nil)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, stdout, _ := runArgs(t, ctx, noEnv,
		"-use-running", "-panel-url", srv.BaseURL(), "-duration", "5",
	)
	if code != exitInterrupted {
		t.Fatalf("exit code = %d, want %d", code, exitInterrupted)
	}
	if stdout != "" {
		t.Fatalf("result printed after interrupt: %q", stdout)
	}
}
