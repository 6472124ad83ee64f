package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

type shard struct {
	mu     sync.Mutex
	bucket *bucket
}

// Collector records per-request results in a thread-safe manner.
// Results are spread over independently locked shards and combined on read.
type Collector struct {
	shards [shardCount]*shard
	next   atomic.Uint64
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	HTTPErrors     int64         `json:"http_errors" yaml:"http_errors"`
	BytesReceived  int64         `json:"bytes_received" yaml:"bytes_received"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64        `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms" yaml:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
	StatusCodes   map[int]int    `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
}

func NewCollector() *Collector {
	c := &Collector{}
	for i := range c.shards {
		c.shards[i] = &shard{bucket: newBucket()}
	}
	return c
}

// Record adds one request outcome.
func (c *Collector) Record(r Result) {
	s := c.shards[c.next.Add(1)%shardCount]
	s.mu.Lock()
	s.bucket.record(r)
	s.mu.Unlock()
}

// Merge folds every result recorded by other into c. other is left unchanged.
func (c *Collector) Merge(other *Collector) {
	if other == nil || other == c {
		return
	}
	for i, src := range other.shards {
		src.mu.Lock()
		snapshot := newBucket()
		snapshot.merge(src.bucket)
		src.mu.Unlock()

		dst := c.shards[i]
		dst.mu.Lock()
		dst.bucket.merge(snapshot)
		dst.mu.Unlock()
	}
}

// Total returns the number of results recorded so far.
func (c *Collector) Total() int64 {
	var total int64
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.bucket.successes + s.bucket.failures
		s.mu.Unlock()
	}
	return total
}

// Stats computes and returns current aggregated statistics.
// A positive elapsed overrides the measured first-dispatch to
// last-completion window when computing throughput.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	merged := newBucket()
	for _, s := range c.shards {
		s.mu.Lock()
		merged.merge(s.bucket)
		s.mu.Unlock()
	}
	return merged.stats(elapsed)
}
