package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torosent/vegasload/internal/config"
	"github.com/torosent/vegasload/internal/host"
	"github.com/torosent/vegasload/internal/httpclient"
	"github.com/torosent/vegasload/internal/logging"
	"github.com/torosent/vegasload/internal/metrics"
	"github.com/torosent/vegasload/internal/output"
	"github.com/torosent/vegasload/internal/params"
	"github.com/torosent/vegasload/internal/runner"
	"github.com/torosent/vegasload/internal/scenario"
	"github.com/torosent/vegasload/internal/threshold"
	"github.com/torosent/vegasload/internal/tracing"
)

const (
	progressInterval = time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := ulid.Make().String()
	logger = logger.With(zap.String("run_id", runID))

	tp, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector()
	recorders := metrics.Recorders{collector}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		prom, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return err
		}
		recorders = append(recorders, prom)
		_, stop, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	client := httpclient.NewClient(cfg.Timeout, cfg.MaxConnections*cfg.VUsers)
	builder := httpclient.NewRequestBuilder(cfg.UserAgent)
	inputs := params.Inputs{ServerHost: cfg.ServerHost, TestRunID: cfg.TestRunID}
	scenarioOpts := scenario.Options{
		Target:     scenario.Target{Scheme: cfg.Scheme, Port: cfg.Port},
		ScriptName: cfg.ScriptName,
		ThinkUnit:  cfg.ThinkTime,
		Seed:       cfg.Seed,
		Logger:     logger,
	}

	factory := func(id int) runner.VUser {
		adapter := host.NewAdapter(id, host.Options{
			Client:   client,
			Builder:  builder,
			Recorder: recorders,
			Tracing:  tp,
			Logger:   logger,
		})
		var vu runner.VUser = host.NewVUser(id, inputs, adapter, scenarioOpts)
		if cfg.Retries > 0 {
			vu = runner.WithRetry(vu, newRetryPolicy(cfg.Retries))
		}
		if cfg.LogErrors {
			vu = runner.WithLogging(vu, id, runner.ZapFailureLogger{Logger: logger})
		}
		return vu
	}

	r := runner.New(runner.Options{
		VUsers:              cfg.VUsers,
		Iterations:          cfg.Iterations,
		Duration:            cfg.Duration,
		IterationsPerSecond: cfg.Rate,
		ArrivalModel:        toRunnerArrivalModel(cfg.Arrival.Model),
		LoadPatterns:        toRunnerLoadPatterns(cfg.LoadPatterns),
		Factory:             factory,
		RandomSeed:          cfg.Seed,
	})

	logger.Info("starting load test",
		zap.String("target", scenarioOpts.Target.URL(cfg.ServerHost, "")),
		zap.Int("vusers", cfg.VUsers),
		zap.Int("iterations", cfg.Iterations),
		zap.Duration("planned_duration", r.PlannedDuration()),
	)

	var progress *output.ProgressReporter
	if !cfg.JSONOutput {
		progress = output.NewProgressReporter(collector, scenario.TxnSession, progressInterval, stdout)
		progress.Start()
	}

	result := r.Run(ctx)

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stdout)
	}

	stats := collector.Stats(result.Duration)
	report := output.Report{
		RunID:      runID,
		Result:     result,
		Stats:      stats,
		Thresholds: threshold.NewEvaluator(thresholds).Evaluate(stats),
	}
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
	}

	logger.Info("load test finished",
		zap.Int64("iterations", result.Total),
		zap.Int64("failed", result.Errors),
		zap.Int64("aborted", result.Aborted),
		zap.Duration("duration", result.Duration),
	)

	if !threshold.AllPassed(report.Thresholds) {
		return errThresholdsFailed
	}
	if result.Errors > 0 {
		return fmt.Errorf("%d iterations failed", result.Errors)
	}
	return nil
}

// serveMetrics exposes reg on addr until the returned stop func is called.
// It returns the address actually bound.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}

func toRunnerLoadPatterns(patterns []config.LoadPattern) []runner.LoadPattern {
	if len(patterns) == 0 {
		return nil
	}
	result := make([]runner.LoadPattern, len(patterns))
	for i, p := range patterns {
		result[i] = runner.LoadPattern{
			Name:     p.Name,
			Type:     runner.LoadPatternType(p.Type),
			FromRate: p.FromRate,
			ToRate:   p.ToRate,
			Rate:     p.Rate,
			Duration: p.Duration,
			Steps:    toRunnerLoadSteps(p.Steps),
		}
	}
	return result
}

func toRunnerLoadSteps(steps []config.LoadStep) []runner.LoadStep {
	if len(steps) == 0 {
		return nil
	}
	result := make([]runner.LoadStep, len(steps))
	for i, s := range steps {
		result[i] = runner.LoadStep{Rate: s.Rate, Duration: s.Duration}
	}
	return result
}

// newRetryPolicy retries failed iterations with capped exponential backoff
// and jitter. Cancelled iterations are never retried.
func newRetryPolicy(retries int) runner.RetryPolicy {
	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		DelayFunc: func(attempt int, _ error) time.Duration {
			return retryDelay(attempt, jitter)
		},
	}
}

func retryDelay(attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := maxRetryDelay
	if attempt <= 16 {
		backoff = min(time.Duration(1<<uint(attempt-1))*baseRetryDelay, maxRetryDelay)
	}
	return backoff + jitter(backoff/2)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
