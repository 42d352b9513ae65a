// Command dapserve is a reference wiring target for the response-builder
// pipeline: it loads configuration, wires the function-result cache and
// metrics, and builds one response against a small in-memory sample
// dataset. Dataset adapters, CE grammar, and HTTP/CLI transport are all out
// of scope (see SPEC_FULL.md §1); this binary exists only to demonstrate
// how the ambient stack (A1-A6) and domain stack (D1-D4) wire into the
// core components (C1-C8), the way dittofs's own cmd/dittofs wires its
// adapters into a DittoServer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/marmos91/dapserve/dapmodel"
	"github.com/marmos91/dapserve/internal/config"
	"github.com/marmos91/dapserve/internal/logger"
	"github.com/marmos91/dapserve/internal/rescache"
	"github.com/marmos91/dapserve/internal/telemetry"
	"github.com/marmos91/dapserve/pkg/metrics"
	"github.com/marmos91/dapserve/responsebuilder"

	// Registers the Prometheus constructors for BuilderMetrics/CacheMetrics.
	_ "github.com/marmos91/dapserve/pkg/metrics/prometheus"
)

func main() {
	configFile := flag.String("config", "", "path to config file (YAML); falls back to built-in defaults")
	ce := flag.String("ce", "", "constraint expression to evaluate against the sample dataset")
	kind := flag.String("kind", "data-dds", "response kind: das, dds, ddx, data-dds, data-ddx")
	logLevel := flag.String("log-level", "INFO", "DEBUG, INFO, WARN, or ERROR")
	withMetrics := flag.Bool("metrics", false, "enable Prometheus metrics collection")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *logLevel, Format: "text", Output: "stderr"}); err != nil {
		log.Fatalf("dapserve: failed to initialize logger: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("dapserve: failed to load configuration: %v", err)
	}
	if cfg.DatasetName == "" {
		cfg.DatasetName = "Sample"
	}

	if *withMetrics {
		metrics.InitRegistry()
		logger.Info("metrics enabled")
	}

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dapserve",
		ServiceVersion: "dev",
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		log.Fatalf("dapserve: failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("dapserve: telemetry shutdown failed", "error", err)
		}
	}()

	stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "dapserve",
		ServiceVersion: "dev",
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		log.Fatalf("dapserve: failed to initialize profiling: %v", err)
	}
	defer func() {
		if err := stopProfiling(); err != nil {
			logger.Warn("dapserve: profiling shutdown failed", "error", err)
		}
	}()

	lockProvider := rescache.NewUnixLockProvider()
	cache, err := rescache.Open(rescache.Config{
		RootDir:  cfg.Cache.RootDir,
		Prefix:   cfg.Cache.Prefix,
		MaxBytes: uint64(cfg.Cache.MaxBytes),
	}, lockProvider, metrics.NewCacheMetrics())
	if err != nil {
		log.Fatalf("dapserve: failed to open function-result cache: %v", err)
	}
	defer cache.Close()

	builder := responsebuilder.New(
		responsebuilder.Config{
			DefaultProtocol: cfg.DefaultProtocol,
			ResponseLimit:   uint64(cfg.ResponseLimit),
		},
		cache,
		metrics.NewBuilderMetrics(),
		nil,
		nil,
	)

	evaluator := newDemoEvaluator()
	req := responsebuilder.NewRequestContext(cfg.DatasetName, *ce, cfg.TimeoutSeconds, cfg.DefaultProtocol)

	logger.Info("building response", "dataset", cfg.DatasetName, "ce", *ce, "kind", *kind)

	if err := sendByKind(ctx, builder, req, *kind, evaluator); err != nil {
		fmt.Fprintf(os.Stderr, "dapserve: %v\n", err)
		os.Exit(1)
	}
}

func sendByKind(ctx context.Context, b *responsebuilder.Builder, req responsebuilder.RequestContext, kind string, evaluator dapmodel.CEEvaluator) error {
	tree := newSampleDataset()
	switch kind {
	case "das":
		return b.SendDAS(ctx, os.Stdout, tree, true)
	case "dds":
		return b.SendDDS(ctx, req, os.Stdout, tree, evaluator, true, true)
	case "ddx":
		return b.SendDDX(ctx, req, os.Stdout, tree, evaluator, true)
	case "data-dds":
		return b.SendDataDDS(ctx, req, os.Stdout, tree, evaluator, true)
	case "data-ddx":
		return b.SendDataDDX(ctx, req, os.Stdout, tree, evaluator, "dapserve-boundary", true)
	default:
		return fmt.Errorf("unrecognized response kind %q", kind)
	}
}
