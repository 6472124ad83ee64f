// Package runner is the load generation engine.
//
// A [Runner] issues exactly Options.TotalRequests requests through a pool of
// Options.Concurrency workers. A single scheduler goroutine pulls data rows,
// resolves the request template and applies optional pacing; workers send
// the resolved requests and record one [metrics.Result] per iteration.
//
//	r := runner.New(runner.Options{
//		Concurrency:   10,
//		TotalRequests: 1000,
//		Template:      tmpl,
//		Feeder:        rows,
//		Sender:        &httpclient.HTTPSender{Client: client},
//		Timeout:       30 * time.Second,
//		Collector:     collector,
//	})
//	result, err := r.Run(ctx)
//
// # Data rows
//
// When the feeder holds fewer rows than requests, it is reset and replayed
// from the start, so iteration i always uses row i mod len(rows). A feeder
// with no rows is a [ConfigError].
//
// # Failures
//
// Any HTTP response is a success at this level. Transport errors, timeouts
// and refused connections are recorded as failures and never retried.
// A template that cannot be resolved for the first row aborts the run with a
// [ResolveError]; later resolution failures are recorded as failed
// iterations of kind "template".
//
// # Arrival Models
//
// With RatePerSecond set, requests are paced by one of:
//   - [ArrivalModelUniform]: fixed spacing via a token bucket
//   - [ArrivalModelPoisson]: exponential inter-arrival times
package runner
