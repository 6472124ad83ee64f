package runner_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/loadfire/loadfire/internal/config"
	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/httpclient"
	"github.com/loadfire/loadfire/internal/metrics"
	"github.com/loadfire/loadfire/internal/placeholders"
	"github.com/loadfire/loadfire/internal/runner"
)

// fakeSender simulates a request with fixed latency and records every URL it
// was asked to send, in call order.
type fakeSender struct {
	latency time.Duration
	fail    func(call int64) error
	block   bool

	calls int64
	mu    sync.Mutex
	urls  []string
}

func (f *fakeSender) Send(ctx context.Context, spec httpclient.Spec, _ time.Duration) (httpclient.Response, error) {
	call := atomic.AddInt64(&f.calls, 1)
	f.mu.Lock()
	f.urls = append(f.urls, spec.URL)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return httpclient.Response{}, ctx.Err()
	}
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return httpclient.Response{}, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return httpclient.Response{}, err
		}
	}
	return httpclient.Response{StatusCode: 200, Bytes: 2}, nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type resolverFunc func(feeder.Record) (httpclient.Spec, error)

func (f resolverFunc) Resolve(r feeder.Record) (httpclient.Spec, error) { return f(r) }

func newTemplate(t *testing.T, url string) *httpclient.Template {
	t.Helper()
	tmpl, err := httpclient.NewTemplate(&config.Config{URL: url})
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}
	return tmpl
}

func idRows(ids ...string) *feeder.MemoryFeeder {
	records := make([]feeder.Record, len(ids))
	for i, id := range ids {
		records[i] = feeder.Record{"id": id}
	}
	return feeder.NewMemoryFeeder(records)
}

func TestRunnerRecordsEachRequestExactlyOnce(t *testing.T) {
	const total = 10
	for _, concurrency := range []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 25} {
		sender := &fakeSender{latency: time.Millisecond}
		collector := metrics.NewCollector()
		r := runner.New(runner.Options{
			Concurrency:   concurrency,
			TotalRequests: total,
			Template:      newTemplate(t, "http://example.test/"),
			Sender:        sender,
			Collector:     collector,
		})

		res, err := r.Run(context.Background())
		if err != nil {
			t.Fatalf("concurrency %d: Run: %v", concurrency, err)
		}
		if res.Total != total || res.Errors != 0 {
			t.Errorf("concurrency %d: result = %+v", concurrency, res)
		}
		if got := atomic.LoadInt64(&sender.calls); got != total {
			t.Errorf("concurrency %d: sender called %d times, want %d", concurrency, got, total)
		}
		if got := collector.Total(); got != total {
			t.Errorf("concurrency %d: collector saw %d results, want %d", concurrency, got, total)
		}
	}
}

func TestRunnerCyclesDataRowsInOrder(t *testing.T) {
	sender := &fakeSender{}
	r := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 10,
		Template:      newTemplate(t, "http://example.test/items/{{id}}"),
		Feeder:        idRows("1", "2", "3"),
		Sender:        sender,
		Collector:     metrics.NewCollector(),
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var ids []string
	for _, u := range sender.sent() {
		ids = append(ids, strings.TrimPrefix(u, "http://example.test/items/"))
	}
	if got, want := strings.Join(ids, ","), "1,2,3,1,2,3,1,2,3,1"; got != want {
		t.Fatalf("row order = %s, want %s", got, want)
	}
}

func TestRunnerLatencyReflectsSender(t *testing.T) {
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency:   2,
		TotalRequests: 5,
		Template:      newTemplate(t, "http://example.test/"),
		Sender:        &fakeSender{latency: 10 * time.Millisecond},
		Collector:     collector,
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats := collector.Stats(res.Duration)
	if stats.Total != 5 || stats.Successes != 5 || stats.Failures != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	// Timer overshoot only ever adds latency.
	if stats.MeanLatency < 10*time.Millisecond || stats.MeanLatency > 15*time.Millisecond {
		t.Errorf("mean latency = %s, want 10ms (+5ms scheduling slack)", stats.MeanLatency)
	}
	if stats.MinLatency < 10*time.Millisecond {
		t.Errorf("min latency = %s, want >= 10ms", stats.MinLatency)
	}
	if stats.StatusCodes[200] != 5 || stats.BytesReceived != 10 {
		t.Errorf("status codes = %v, bytes = %d", stats.StatusCodes, stats.BytesReceived)
	}
}

func TestRunnerCountsTimeouts(t *testing.T) {
	var logged []string
	var mu sync.Mutex
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency:   2,
		TotalRequests: 5,
		Template:      newTemplate(t, "http://example.test/"),
		Sender: &fakeSender{fail: func(call int64) error {
			if call <= 2 {
				return context.DeadlineExceeded
			}
			return nil
		}},
		Collector: collector,
		FailureLogger: runner.LoggerFunc(func(err error) {
			mu.Lock()
			logged = append(logged, err.Error())
			mu.Unlock()
		}),
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 5 || res.Errors != 2 {
		t.Fatalf("result = %+v, want 5 total 2 errors", res)
	}

	stats := collector.Stats(0)
	if stats.Successes != 3 || stats.Failures != 2 {
		t.Errorf("successes/failures = %d/%d, want 3/2", stats.Successes, stats.Failures)
	}
	if stats.Errors[metrics.KindTimeout] != 2 {
		t.Errorf("errors = %v, want 2 timeouts", stats.Errors)
	}
	if len(logged) != 2 || !strings.Contains(logged[0], "(timeout)") {
		t.Errorf("logged = %v", logged)
	}
}

func TestRunnerEmptyFeederIsConfigError(t *testing.T) {
	sender := &fakeSender{}
	r := runner.New(runner.Options{
		TotalRequests: 3,
		Template:      newTemplate(t, "http://example.test/{{id}}"),
		Feeder:        idRows(),
		Sender:        sender,
		Collector:     metrics.NewCollector(),
	})

	_, err := r.Run(context.Background())
	var cfgErr *runner.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if sender.calls != 0 {
		t.Errorf("sender called %d times", sender.calls)
	}
}

func TestRunnerMissingOptionsIsConfigError(t *testing.T) {
	_, err := runner.New(runner.Options{TotalRequests: 1}).Run(context.Background())
	var cfgErr *runner.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestRunnerFirstResolveFailureIsFatal(t *testing.T) {
	sender := &fakeSender{}
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency:   2,
		TotalRequests: 4,
		Template:      newTemplate(t, "http://example.test/{{missing}}"),
		Feeder:        idRows("1", "2"),
		Sender:        sender,
		Collector:     collector,
	})

	res, err := r.Run(context.Background())
	var resolveErr *runner.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("err = %v, want ResolveError", err)
	}
	if resolveErr.Iteration != 0 {
		t.Errorf("iteration = %d, want 0", resolveErr.Iteration)
	}
	var missing *placeholders.MissingColumnError
	if !errors.As(err, &missing) || missing.Column != "missing" {
		t.Errorf("err = %v, want missing column error", err)
	}
	if res.Total != 0 || collector.Total() != 0 || sender.calls != 0 {
		t.Errorf("nothing should run: result %+v, recorded %d, sent %d", res, collector.Total(), sender.calls)
	}
}

func TestRunnerLaterResolveFailureIsRecorded(t *testing.T) {
	sender := &fakeSender{}
	collector := metrics.NewCollector()
	tmpl := resolverFunc(func(rec feeder.Record) (httpclient.Spec, error) {
		if rec["id"] == "bad" {
			return httpclient.Spec{}, errors.New("cannot resolve")
		}
		return httpclient.Spec{Method: "GET", URL: "http://example.test/" + rec["id"]}, nil
	})
	r := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 3,
		Template:      tmpl,
		Feeder:        idRows("1", "bad", "3"),
		Sender:        sender,
		Collector:     collector,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 3 || res.Errors != 1 {
		t.Errorf("result = %+v, want 3 total 1 error", res)
	}
	if sender.calls != 2 {
		t.Errorf("sender called %d times, want 2", sender.calls)
	}

	stats := collector.Stats(0)
	if stats.Failures != 1 || stats.Errors[metrics.KindTemplate] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunnerCancellationReturnsPartialResult(t *testing.T) {
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency:   4,
		TotalRequests: 100,
		Template:      newTemplate(t, "http://example.test/"),
		Sender:        &fakeSender{block: true},
		Collector:     collector,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Total == 0 || res.Total >= 100 {
		t.Errorf("total = %d, want a partial run", res.Total)
	}
	if collector.Total() != res.Total {
		t.Errorf("recorded %d results for %d scheduled iterations", collector.Total(), res.Total)
	}
	if stats := collector.Stats(0); int64(stats.Errors[metrics.KindCanceled]) != res.Total {
		t.Errorf("errors = %v, want all canceled", stats.Errors)
	}
}

func TestRunnerRateLimiterCapsThroughput(t *testing.T) {
	r := runner.New(runner.Options{
		Concurrency:   4,
		TotalRequests: 11,
		RatePerSecond: 100,
		LimiterFactory: func(rps int) *rate.Limiter {
			return rate.NewLimiter(rate.Limit(rps), 1)
		},
		Template:  newTemplate(t, "http://example.test/"),
		Sender:    &fakeSender{},
		Collector: metrics.NewCollector(),
	})

	start := time.Now()
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 11 requests at 100/s with burst 1 need at least 100ms.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("rate limiter not applied: %s", elapsed)
	}
}

func TestRunnerPoissonArrival(t *testing.T) {
	var samples int64
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		TotalRequests: 6,
		RatePerSecond: 1000,
		ArrivalModel:  runner.ArrivalModelPoisson,
		PoissonSampler: func() float64 {
			atomic.AddInt64(&samples, 1)
			return 1
		},
		Template:  newTemplate(t, "http://example.test/"),
		Sender:    &fakeSender{},
		Collector: collector,
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if samples != 6 || collector.Total() != 6 {
		t.Errorf("samples = %d, recorded = %d, want 6", samples, collector.Total())
	}
}

func TestRunnerEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := runner.New(runner.Options{
		TotalRequests: 3,
		Template:      newTemplate(t, "http://example.test/"),
		Sender:        &fakeSender{},
		Collector:     metrics.NewCollector(),
		Tracer:        tp.Tracer("test"),
	})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	for _, span := range spans {
		if span.Name != "HTTP GET" {
			t.Errorf("span name = %q", span.Name)
		}
	}
}
