package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/loadfire/loadfire/internal/metrics"
)

// StatsSource yields a snapshot of the run so far. *metrics.Collector
// satisfies it.
type StatsSource interface {
	Stats(elapsed time.Duration) metrics.Stats
}

// ProgressReporter rewrites a single status line on w while a run is in flight.
type ProgressReporter struct {
	src      StatsSource
	total    int
	interval time.Duration
	w        io.Writer
	began    time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	exited    chan struct{}
}

// NewProgressReporter creates a reporter that redraws every interval
// (default one second). total is the number of requests the run will issue.
func NewProgressReporter(src StatsSource, total int, interval time.Duration, w io.Writer) *ProgressReporter {
	if w == nil {
		w = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		src:      src,
		total:    total,
		interval: interval,
		w:        w,
		began:    time.Now(),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Start launches the redraw loop. Later calls do nothing.
func (p *ProgressReporter) Start() {
	p.startOnce.Do(func() { go p.loop() })
}

// Stop ends the redraw loop and terminates the status line. It is safe to
// call without Start and more than once.
func (p *ProgressReporter) Stop() {
	p.stopOnce.Do(func() {
		started := true
		p.startOnce.Do(func() { started = false })
		close(p.quit)
		if started {
			<-p.exited
			fmt.Fprintln(p.w)
		}
	})
}

func (p *ProgressReporter) loop() {
	defer close(p.exited)
	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-tick.C:
			io.WriteString(p.w, p.line())
		}
	}
}

func (p *ProgressReporter) line() string {
	s := p.src.Stats(time.Since(p.began))
	out := fmt.Sprintf("\rRequests: %d/%d | Successes: %d | Failures: %d | RPS: %.1f",
		s.Total, p.total, s.Successes, s.Failures, s.RequestsPerSec)
	if s.Total == 0 {
		return out
	}
	return out + fmt.Sprintf(" | P99 %.1fms", s.P99LatencyMs)
}
