package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/httpclient"
	"github.com/loadfire/loadfire/internal/metrics"
	"github.com/loadfire/loadfire/internal/tracing"
)

// Result captures execution summary.
type Result struct {
	Total    int64 // iterations scheduled
	Errors   int64 // iterations that ended without a response
	Duration time.Duration
}

// Runner dispatches a fixed number of requests over a bounded worker pool.
type Runner struct {
	opt  Options
	pace pacer
}

// job is one scheduled iteration. err is set when the request could not be
// resolved; the worker records it without sending.
type job struct {
	iteration int
	spec      httpclient.Spec
	err       error
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, pace: newPacer(opt)}
}

// Run issues the configured number of requests and returns once every
// scheduled iteration has been recorded exactly once.
//
// A fatal error (*ConfigError, or a *ResolveError on the first iteration)
// stops scheduling; requests already in flight finish and are recorded
// before the error is returned. Cancelling ctx stops scheduling as well and
// returns ctx.Err() with the partial result.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if err := r.opt.check(); err != nil {
		return Result{}, err
	}
	if r.opt.Feeder != nil && r.opt.Feeder.Len() == 0 {
		return Result{}, &ConfigError{Reason: "data source contains no rows"}
	}

	start := time.Now()
	var total int64
	var errs int64

	// Fatal errors stop the scheduler without cancelling in-flight requests.
	schedCtx, stopScheduling := context.WithCancel(ctx)
	defer stopScheduling()

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	fail := func(err error) {
		fatalOnce.Do(func() { fatalErr = err })
		stopScheduling()
	}

	jobs := make(chan job, r.opt.Concurrency)

	// Scheduler: serializes data rows, resolution and pacing so workers only
	// execute allocated iterations.
	go func() {
		defer close(jobs)
		for i := 0; i < r.opt.TotalRequests; i++ {
			if schedCtx.Err() != nil {
				return
			}
			if r.pace != nil {
				if err := r.pace.Wait(schedCtx); err != nil {
					return
				}
			}

			next, err := r.prepare(schedCtx, i)
			if err != nil {
				if schedCtx.Err() == nil {
					fail(err)
				}
				return
			}

			select {
			case jobs <- next:
				atomic.AddInt64(&total, 1)
			case <-schedCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if failed := r.execute(ctx, j); failed {
					atomic.AddInt64(&errs, 1)
				}
			}
		}()
	}
	wg.Wait()

	result := Result{
		Total:    atomic.LoadInt64(&total),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
	}

	if fatalErr != nil {
		return result, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// prepare pulls the data row for iteration i and resolves the template.
// Only errors that must stop the run are returned.
func (r *Runner) prepare(ctx context.Context, i int) (job, error) {
	record, err := r.nextRecord(ctx)
	if err != nil {
		return job{}, err
	}

	spec, err := r.opt.Template.Resolve(record)
	if err != nil {
		resolveErr := &ResolveError{Iteration: i, Err: err}
		if i == 0 {
			return job{}, resolveErr
		}
		return job{iteration: i, err: resolveErr}, nil
	}
	return job{iteration: i, spec: spec}, nil
}

// nextRecord returns the next data row, rewinding the feeder when it runs
// out so short data sets repeat in order.
func (r *Runner) nextRecord(ctx context.Context) (feeder.Record, error) {
	if r.opt.Feeder == nil {
		return nil, nil
	}

	record, err := r.opt.Feeder.Next(ctx)
	if errors.Is(err, feeder.ErrExhausted) {
		r.opt.Feeder.Reset()
		record, err = r.opt.Feeder.Next(ctx)
		if errors.Is(err, feeder.ErrExhausted) {
			return nil, &ConfigError{Reason: "data source contains no rows"}
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ConfigError{Reason: "read data row", Err: err}
	}
	return record, nil
}

// execute sends one job and records its outcome. It reports whether the
// iteration failed.
func (r *Runner) execute(ctx context.Context, j job) bool {
	started := time.Now()
	result := metrics.Result{
		Iteration: j.iteration,
		Timestamp: started,
		Bytes:     -1,
	}

	if j.err != nil {
		result.Err = j.err
		result.ErrorKind = metrics.KindTemplate
		r.opt.Collector.Record(result)
		r.logFailure(j.err)
		return true
	}

	reqCtx := ctx
	var span trace.Span
	if r.opt.Tracer != nil {
		reqCtx, span = tracing.StartRequestSpan(ctx, r.opt.Tracer, j.spec.Method, j.spec.URL, j.iteration)
	}

	resp, err := r.opt.Sender.Send(reqCtx, j.spec, r.opt.Timeout)
	result.Latency = time.Since(started)

	if err != nil {
		result.Err = err
		result.ErrorKind = metrics.ClassifyError(err)
	} else {
		result.StatusCode = resp.StatusCode
		result.Bytes = resp.Bytes
	}

	if span != nil {
		tracing.EndRequestSpan(span, result.StatusCode, err)
	}

	r.opt.Collector.Record(result)
	if err != nil {
		r.logFailure(fmt.Errorf("request %d (%s): %w", j.iteration, result.ErrorKind, err))
		return true
	}
	return false
}

func (r *Runner) logFailure(err error) {
	if r.opt.FailureLogger != nil {
		r.opt.FailureLogger.LogFailure(err)
	}
}
