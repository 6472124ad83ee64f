package runner

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// pacer gates the scheduler before each dispatch. A nil pacer never blocks.
type pacer interface {
	Wait(ctx context.Context) error
}

// newPacer returns nil when the run is unpaced. The uniform model is a
// *rate.Limiter used as-is.
func newPacer(opt Options) pacer {
	if opt.RatePerSecond <= 0 {
		return nil
	}
	if opt.ArrivalModel != ArrivalModelPoisson {
		return opt.LimiterFactory(opt.RatePerSecond)
	}
	sample := opt.PoissonSampler
	if sample == nil {
		sample = rand.New(rand.NewSource(opt.RandomSeed)).ExpFloat64
	}
	return &poissonPacer{
		mean:   time.Second / time.Duration(opt.RatePerSecond),
		sample: sample,
	}
}

// poissonPacer sleeps for exponentially distributed gaps so that arrivals
// approximate a Poisson process at the configured rate. Only the scheduler
// goroutine calls Wait.
type poissonPacer struct {
	mean   time.Duration
	sample func() float64
}

func (p *poissonPacer) Wait(ctx context.Context) error {
	gap := p.gap()
	if gap <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(gap)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *poissonPacer) gap() time.Duration {
	g := p.sample() * float64(p.mean)
	if g >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(g)
}
