// Package threshold checks a run summary against pass/fail assertions such
// as "latency:p95 < 250" or "failures:rate <= 0.01".
//
// An assertion names a metric, an aggregate of it, a comparison operator and
// a number:
//
//	latency:p50|p90|p95|p99|mean|min|max   milliseconds
//	failures:count|rate                    requests without a response
//	http_errors:count|rate                 responses with status >= 400
//	requests:count|rate                    total requests, requests per second
//	errors:<kind>                          failures of one kind, e.g. errors:timeout
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/loadfire/loadfire/internal/metrics"
)

// Threshold is one parsed assertion.
type Threshold struct {
	Metric    string
	Aggregate string
	Operator  string
	Value     float64
	Raw       string
}

// Result is the outcome of checking one Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
}

func (r Result) String() string {
	mark := "PASS"
	if !r.Pass {
		mark = "FAIL"
	}
	return fmt.Sprintf("%s %s (actual %.2f)", mark, r.Threshold.Raw, r.Actual)
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9_]+)\s*(<=|>=|==|<|>)\s*([0-9]+(?:\.[0-9]+)?)$`)

type extractor func(metrics.Stats) float64

var extractors = map[string]map[string]extractor{
	"latency": {
		"p50":  func(s metrics.Stats) float64 { return s.P50LatencyMs },
		"p90":  func(s metrics.Stats) float64 { return s.P90LatencyMs },
		"p95":  func(s metrics.Stats) float64 { return s.P95LatencyMs },
		"p99":  func(s metrics.Stats) float64 { return s.P99LatencyMs },
		"mean": func(s metrics.Stats) float64 { return s.MeanLatencyMs },
		"min":  func(s metrics.Stats) float64 { return s.MinLatencyMs },
		"max":  func(s metrics.Stats) float64 { return s.MaxLatencyMs },
	},
	"failures": {
		"count": func(s metrics.Stats) float64 { return float64(s.Failures) },
		"rate":  func(s metrics.Stats) float64 { return ratio(s.Failures, s.Total) },
	},
	"http_errors": {
		"count": func(s metrics.Stats) float64 { return float64(s.HTTPErrors) },
		"rate":  func(s metrics.Stats) float64 { return ratio(s.HTTPErrors, s.Total) },
	},
	"requests": {
		"count": func(s metrics.Stats) float64 { return float64(s.Total) },
		"rate":  func(s metrics.Stats) float64 { return s.RequestsPerSec },
	},
}

func ratio(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Parse parses a single assertion.
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold")
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q (want metric:aggregate op value, e.g. 'latency:p95 < 500')", s)
	}
	t := Threshold{Metric: m[1], Aggregate: m[2], Operator: m[3], Raw: s}

	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", m[4], err)
	}
	t.Value = value

	if _, err := t.extractor(); err != nil {
		return Threshold{}, err
	}
	return t, nil
}

// ParseAll parses every assertion and reports all malformed ones together.
func ParseAll(raw []string) ([]Threshold, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]Threshold, 0, len(raw))
	var problems []string
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return out, nil
}

func (t Threshold) extractor() (extractor, error) {
	if t.Metric == "errors" {
		kind := t.Aggregate
		return func(s metrics.Stats) float64 { return float64(s.Errors[kind]) }, nil
	}
	aggregates, ok := extractors[t.Metric]
	if !ok {
		return nil, fmt.Errorf("unsupported metric %q (supported: latency, failures, http_errors, requests, errors)", t.Metric)
	}
	fn, ok := aggregates[t.Aggregate]
	if !ok {
		return nil, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
	}
	return fn, nil
}

// Evaluate checks each threshold against stats, in order.
func Evaluate(thresholds []Threshold, stats metrics.Stats) []Result {
	if len(thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		fn, err := t.extractor()
		if err != nil {
			results = append(results, Result{Threshold: t})
			continue
		}
		actual := fn(stats)
		results = append(results, Result{
			Threshold: t,
			Actual:    actual,
			Pass:      compare(actual, t.Operator, t.Value),
		})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r)
		}
	}
	return failed
}

const epsilon = 1e-9

func compare(actual float64, op string, expected float64) bool {
	switch op {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
