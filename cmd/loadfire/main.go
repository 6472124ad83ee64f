package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/loadfire/loadfire/internal/config"
	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/history"
	"github.com/loadfire/loadfire/internal/httpclient"
	"github.com/loadfire/loadfire/internal/metrics"
	"github.com/loadfire/loadfire/internal/output"
	"github.com/loadfire/loadfire/internal/runner"
	"github.com/loadfire/loadfire/internal/threshold"
	"github.com/loadfire/loadfire/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second

	exitOK               = 0
	exitFailure          = 1
	exitThresholdsFailed = 2
	exitInterrupted      = 130
)

var errThresholdsFailed = errors.New("thresholds failed")

type stderrFailureLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one load test and maps its outcome to a process exit code.
// Failed requests alone do not change the exit code; a run that could not
// start, had to stop early or broke a threshold does.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := execute(ctx, args, stdout, stderr)
	switch {
	case err == nil, errors.Is(err, config.ErrHelpRequested):
		return exitOK
	case errors.Is(err, errThresholdsFailed):
		fmt.Fprintln(stderr, "[loadfire] one or more thresholds failed")
		return exitThresholdsFailed
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "[loadfire] interrupted")
		return exitInterrupted
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		return err
	}
	for _, warning := range cfg.Warnings() {
		fmt.Fprintf(stderr, "[loadfire] warning: %s\n", warning)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseAll(cfg.Thresholds)
	if err != nil {
		return err
	}

	tmpl, err := httpclient.NewTemplate(cfg)
	if err != nil {
		return err
	}

	var rows feeder.Feeder
	if cfg.DataFile == "" {
		// Validate cannot see inside body_file.
		if cols := tmpl.Columns(); len(cols) > 0 {
			return &runner.ConfigError{Reason: fmt.Sprintf("request references columns %s but no data_file is set", strings.Join(cols, ", "))}
		}
	} else {
		rows, err = feeder.Open(cfg.DataFile, cfg.DataType, cfg.DataSheet)
		if err != nil {
			return fmt.Errorf("data file: %w", err)
		}
		defer rows.Close()
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "[loadfire] tracing shutdown: %v\n", err)
		}
	}()

	concurrency := cfg.EffectiveConcurrency()
	sender := newSender(cfg, concurrency, provider.ShouldPropagate())

	collector := metrics.NewCollector()
	opts := runner.Options{
		Concurrency:   concurrency,
		TotalRequests: cfg.RequestCount,
		Template:      tmpl,
		Feeder:        rows,
		Sender:        sender,
		Timeout:       cfg.Timeout,
		Collector:     collector,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival),
		Tracer:        provider.Tracer(),
	}
	if cfg.LogErrors {
		opts.FailureLogger = &stderrFailureLogger{w: stderr}
	}

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, cfg.RequestCount, progressInterval, stderr)
		progress.Start()
	}

	result, runErr := runner.New(opts).Run(ctx)
	if progress != nil {
		progress.Stop()
	}

	var cfgErr *runner.ConfigError
	var resolveErr *runner.ResolveError
	if errors.As(runErr, &cfgErr) || errors.As(runErr, &resolveErr) {
		return runErr
	}

	stats := collector.Stats(result.Duration)
	if err := writeReport(stdout, cfg.Output, stats); err != nil {
		return err
	}

	results := threshold.Evaluate(thresholds, stats)
	if cfg.Output == config.OutputText {
		output.PrintThresholds(stdout, results)
	} else {
		output.PrintThresholds(stderr, results)
	}

	if cfg.HistoryFile != "" {
		summary := stderr
		if cfg.Output == config.OutputText {
			summary = stdout
		}
		recordHistory(cfg.HistoryFile, history.NewEntry(tmpl.URL(), tmpl.Method(), cfg.RequestCount, stats), summary, stderr)
	}
	if runErr == nil && len(threshold.Failed(results)) > 0 {
		return errThresholdsFailed
	}
	return runErr
}

// recordHistory compares the run with the last one against the same target
// and then appends it. History problems never fail the run.
func recordHistory(path string, entry history.Entry, summary, stderr io.Writer) {
	entries, err := history.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "[loadfire] history: %v\n", err)
	} else if prev, ok := history.Previous(entries, entry.Target, entry.Method); ok {
		output.PrintComparison(summary, prev.ID, prev.Stats, entry.Stats)
	}
	if err := history.Append(path, entry); err != nil {
		fmt.Fprintf(stderr, "[loadfire] history: %v\n", err)
	}
}

func newSender(cfg *config.Config, concurrency int, propagate bool) httpclient.Sender {
	var inject func(context.Context, http.Header)
	if propagate {
		inject = tracing.InjectHTTPHeaders
	}
	opts := httpclient.ClientOptions{MaxIdleConnsPerHost: concurrency}

	if cfg.Client == config.ClientFastHTTP {
		opts.MaxConnsPerHost = concurrency
		return &httpclient.FastHTTPSender{
			Client:          httpclient.NewFastHTTPClient(opts),
			RequestIDHeader: cfg.RequestIDHeader,
			Propagate:       inject,
		}
	}
	return &httpclient.HTTPSender{
		Client:          httpclient.NewClient(opts),
		RequestIDHeader: cfg.RequestIDHeader,
		Propagate:       inject,
	}
}

func writeReport(w io.Writer, format config.OutputFormat, stats metrics.Stats) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, stats)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, stats)
	default:
		output.PrintReport(w, stats)
		return nil
	}
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	if model == config.ArrivalModelPoisson {
		return runner.ArrivalModelPoisson
	}
	return runner.ArrivalModelUniform
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[loadfire] request failed: %v\n", err)
}
