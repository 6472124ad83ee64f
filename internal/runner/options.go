package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/httpclient"
	"github.com/loadfire/loadfire/internal/metrics"
)

// Resolver produces the concrete request for one data row.
type Resolver interface {
	Resolve(record feeder.Record) (httpclient.Spec, error)
}

// Recorder accepts one result per iteration. It must be safe for concurrent use.
type Recorder interface {
	Record(result metrics.Result)
}

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

// ArrivalModel selects how paced requests are spaced.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Runner.
type Options struct {
	Concurrency   int               // number of worker goroutines (0 means one per request)
	TotalRequests int               // requests to issue, at least 1
	Template      Resolver          // request template (required)
	Feeder        feeder.Feeder     // optional data rows, cycled when shorter than the run
	Sender        httpclient.Sender // transport (required)
	Timeout       time.Duration     // per-request timeout (0 disables)
	Collector     Recorder          // result sink (required)
	RatePerSecond int               // requests per second pacing (0 means unlimited)
	ArrivalModel  ArrivalModel      // pacing model when RatePerSecond > 0
	RandomSeed    int64             // seed for Poisson sampling
	FailureLogger FailureLogger     // optional
	Tracer        trace.Tracer      // optional per-request spans

	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	PoissonSampler func() float64              // optional injection for tests
}

func (o *Options) normalize() {
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.Concurrency <= 0 || o.Concurrency > o.TotalRequests {
		o.Concurrency = o.TotalRequests
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// One second of burst.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

func (o *Options) check() error {
	switch {
	case o.TotalRequests < 1:
		return &ConfigError{Reason: "request count must be at least 1"}
	case o.Template == nil:
		return &ConfigError{Reason: "request template is required"}
	case o.Sender == nil:
		return &ConfigError{Reason: "sender is required"}
	case o.Collector == nil:
		return &ConfigError{Reason: "collector is required"}
	case o.ArrivalModel != ArrivalModelUniform && o.ArrivalModel != ArrivalModelPoisson:
		return &ConfigError{Reason: "unsupported arrival model " + string(o.ArrivalModel)}
	}
	return nil
}

// LoggerFunc adapts a function to FailureLogger.
type LoggerFunc func(err error)

func (f LoggerFunc) LogFailure(err error) { f(err) }
