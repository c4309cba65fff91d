// Package main provides the slocheck binary.
// It launches the agent (or attaches to a running one), samples its
// self-reported CPU and memory, and checks the p95 of each against the
// idle thresholds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ripor/slocheck/internal/config"
	"github.com/ripor/slocheck/internal/events"
	"github.com/ripor/slocheck/internal/harness"
	"github.com/ripor/slocheck/internal/otel"
	"github.com/ripor/slocheck/internal/report"
)

const version = "0.1.0"

// Exit codes besides slo.ExitPass and slo.ExitFail.
const (
	exitFatal       = 1
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	cfg := config.Default()
	cfg.ApplyEnv(getenv)

	fs := flag.NewFlagSet("slocheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	level, err := events.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	exporter, err := otel.ParseExporterType(cfg.OtelExporter)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	logger := events.NewEventLoggerWithWriter(uuid.NewString(), stderr, level)
	events.SetGlobalEventLogger(logger)

	provider, err := otel.Setup(ctx, otel.Config{
		Exporter: exporter,
		Endpoint: cfg.OtelEndpoint,
		Insecure: cfg.OtelInsecure,
		Version:  version,
	})
	if err != nil {
		logger.LogFatal(err)
		return exitFatal
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	out, err := harness.RunDetailed(ctx, cfg, harness.Deps{Logger: logger, Provider: provider})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(stderr, "Interrupted")
			return exitInterrupted
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	fmt.Fprintln(stdout, "SLO results (idle):")
	if err := report.Render(stdout, out.Result); err != nil {
		logger.LogFatal(err)
		return exitFatal
	}

	if cfg.JSONOut != "" {
		if err := report.Save(cfg.JSONOut, out.Result); err != nil {
			logger.LogFatal(err)
			return exitFatal
		}
	}
	if cfg.ChartOut != "" {
		if err := report.SaveChart(cfg.ChartOut, out.Result, out.Series); err != nil {
			logger.LogFatal(err)
			return exitFatal
		}
	}

	return out.Result.ExitCode()
}
