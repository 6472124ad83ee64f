// Package metrics aggregates request outcomes into a run summary.
//
// The [Collector] accepts [Result] values from any number of goroutines:
//
//	collector := metrics.NewCollector()
//	collector.Record(metrics.Result{StatusCode: 200, Latency: 12 * time.Millisecond, Timestamp: start})
//	stats := collector.Stats(0)
//
// Results are aggregated in sharded buckets that combine with integer sums,
// min/max comparison and histogram count addition. The final [Stats] depends
// only on the set of results recorded, never on their order or on how they
// were split between collectors (see [Collector.Merge]).
//
// Latency percentiles come from an HDR histogram with microsecond resolution
// and 3 significant figures. Mean latency is exact.
//
// A request that received any HTTP response is a success; responses with a
// status of 400 or above are additionally counted in [Stats.HTTPErrors].
// Requests that never reached the server are failures grouped by error kind,
// see [ClassifyError].
package metrics
