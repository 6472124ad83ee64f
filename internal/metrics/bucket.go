package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are tracked in microseconds from 1µs up to one hour with 3
// significant figures, bounding percentile error to 0.1%.
const (
	histogramMin     = 1
	histogramMax     = int64(time.Hour / time.Microsecond)
	histogramSigFigs = 3
)

// bucket holds the aggregate of a set of results. Combining buckets is
// commutative and associative, so any split of the same results across
// buckets reduces to the same totals.
type bucket struct {
	hist        *hdrhistogram.Histogram
	successes   int64
	failures    int64
	httpErrors  int64
	timed       int64
	sumLatency  int64
	minLatency  time.Duration
	maxLatency  time.Duration
	bytes       int64
	statusCodes map[int]int64
	errors      map[string]int64
	first       time.Time
	last        time.Time
}

func newBucket() *bucket {
	return &bucket{
		hist:        hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		statusCodes: make(map[int]int64),
		errors:      make(map[string]int64),
	}
}

func (b *bucket) record(r Result) {
	if r.Failed() {
		b.failures++
		kind := r.ErrorKind
		if kind == "" {
			kind = ClassifyError(r.Err)
		}
		b.errors[kind]++
	} else {
		b.successes++
	}

	if r.StatusCode > 0 {
		b.statusCodes[r.StatusCode]++
		if r.StatusCode >= 400 {
			b.httpErrors++
		}
	}
	if r.Bytes > 0 {
		b.bytes += r.Bytes
	}

	if !r.dispatched() {
		return
	}

	latency := r.Latency
	if latency < 0 {
		latency = 0
	}
	us := latency.Microseconds()
	if us < histogramMin {
		us = histogramMin
	}
	if us > histogramMax {
		us = histogramMax
	}
	_ = b.hist.RecordValue(us)

	if b.timed == 0 || latency < b.minLatency {
		b.minLatency = latency
	}
	if latency > b.maxLatency {
		b.maxLatency = latency
	}
	b.timed++
	b.sumLatency += int64(latency)

	if !r.Timestamp.IsZero() {
		if b.first.IsZero() || r.Timestamp.Before(b.first) {
			b.first = r.Timestamp
		}
		done := r.Timestamp.Add(latency)
		if done.After(b.last) {
			b.last = done
		}
	}
}

func (b *bucket) merge(o *bucket) {
	b.hist.Merge(o.hist)

	if o.timed > 0 {
		if b.timed == 0 || o.minLatency < b.minLatency {
			b.minLatency = o.minLatency
		}
		if o.maxLatency > b.maxLatency {
			b.maxLatency = o.maxLatency
		}
	}
	b.successes += o.successes
	b.failures += o.failures
	b.httpErrors += o.httpErrors
	b.timed += o.timed
	b.sumLatency += o.sumLatency
	b.bytes += o.bytes

	for code, n := range o.statusCodes {
		b.statusCodes[code] += n
	}
	for kind, n := range o.errors {
		b.errors[kind] += n
	}

	if !o.first.IsZero() && (b.first.IsZero() || o.first.Before(b.first)) {
		b.first = o.first
	}
	if o.last.After(b.last) {
		b.last = o.last
	}
}

func (b *bucket) stats(elapsed time.Duration) Stats {
	total := b.successes + b.failures
	stats := Stats{
		Total:         total,
		Successes:     b.successes,
		Failures:      b.failures,
		HTTPErrors:    b.httpErrors,
		BytesReceived: b.bytes,
		MinLatency:    b.minLatency,
		MaxLatency:    b.maxLatency,
	}

	if b.timed > 0 {
		stats.MeanLatency = time.Duration(b.sumLatency / b.timed)
	}

	if b.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(b.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(b.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(b.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(b.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	if elapsed <= 0 && !b.first.IsZero() && b.last.After(b.first) {
		elapsed = b.last.Sub(b.first)
	}
	stats.Duration = elapsed
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P95LatencyMs = toMillis(stats.P95Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)
	stats.DurationMs = toMillis(stats.Duration)

	if len(b.errors) > 0 {
		stats.Errors = make(map[string]int, len(b.errors))
		for k, v := range b.errors {
			stats.Errors[k] = int(v)
		}
	}
	if len(b.statusCodes) > 0 {
		stats.StatusCodes = make(map[int]int, len(b.statusCodes))
		for k, v := range b.statusCodes {
			stats.StatusCodes[k] = int(v)
		}
	}

	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
