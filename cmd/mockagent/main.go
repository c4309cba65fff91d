// Package main provides the slocheck-mockagent binary.
// It serves a fake agent /state endpoint for exercising slocheck without
// building the real agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ripor/slocheck/internal/config"
	"github.com/ripor/slocheck/internal/mockserver"
	"github.com/ripor/slocheck/internal/otel"
)

const version = "0.1.0"

func main() {
	cfg, otelCfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	provider, err := otel.Setup(context.Background(), otelCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting telemetry: %v\n", err)
		os.Exit(1)
	}
	cfg.Tracer = provider.Tracer

	server := mockserver.New(cfg)
	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting mock agent: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mock agent listening on %s\n", server.Addr())
	fmt.Printf("State endpoint: %s/state\n", server.BaseURL())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Stop(ctx)
	_ = provider.Shutdown(ctx)
	fmt.Printf("Mock agent stopped after %d requests\n", server.Requests())
}

func parseFlags(args []string, output io.Writer) (*mockserver.Config, otel.Config, error) {
	cfg := mockserver.DefaultConfig()
	cfg.Addr = strings.TrimPrefix(config.DefaultPanelURL, "http://")

	fs := flag.NewFlagSet("slocheck-mockagent", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.Float64Var(&cfg.CPUPct, "cpu", cfg.CPUPct, "reported CPU percentage")
	fs.Float64Var(&cfg.MemMB, "mem", cfg.MemMB, "reported memory in MB")
	fs.Float64Var(&cfg.Jitter, "jitter", 0, "maximum random deviation added to cpu and mem")
	fs.IntVar(&cfg.FailEvery, "fail-every", 0, "fail every Nth /state request with 503 (0 disables)")
	fs.DurationVar(&cfg.ReadyAfter, "ready-after", 0, "answer /state with 503 until this long after start")
	fs.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "reported device id")
	otelExporter := fs.String("otel-exporter", config.DefaultOtelExporter, "trace exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := fs.String("otel-endpoint", "", "OTLP collector endpoint")
	otelInsecure := fs.Bool("otel-insecure", false, "disable TLS for OTLP exporters")
	if err := fs.Parse(args); err != nil {
		return nil, otel.Config{}, err
	}

	exporter, err := otel.ParseExporterType(*otelExporter)
	if err != nil {
		return nil, otel.Config{}, err
	}
	return cfg, otel.Config{
		Exporter: exporter,
		Endpoint: *otelEndpoint,
		Insecure: *otelInsecure,
		Version:  version,
	}, nil
}
