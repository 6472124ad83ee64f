package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/loadfire/loadfire/internal/metrics"
	"github.com/loadfire/loadfire/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	if stats.HTTPErrors > 0 {
		fmt.Fprintf(w, "HTTP >= 400:       %d\n", stats.HTTPErrors)
	}
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	if stats.BytesReceived > 0 {
		fmt.Fprintf(w, "Bytes received:    %d\n", stats.BytesReceived)
	}
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if rows := metrics.FlattenStatusCodes(stats.StatusCodes); len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, row := range rows {
			fmt.Fprintf(w, "  HTTP %d: %d\n", row.Code, row.Count)
		}
	}

	if rows := metrics.FlattenErrors(stats.Errors); len(rows) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(row.Kind), row.Count)
		}
	}
}

// PrintThresholds lists every assertion with its outcome.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := len(results) - len(threshold.Failed(results))
	fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r)
	}
}

// PrintComparison lists key figures of the current run next to the baseline
// run identified by baselineID. Latencies come from the millisecond fields
// because those are the ones that survive a history round trip.
func PrintComparison(w io.Writer, baselineID string, baseline, current metrics.Stats) {
	fmt.Fprintf(w, "\nCompared to run %s:\n", baselineID)
	fmt.Fprintf(w, "  %-15s %12s %12s\n", "", "previous", "current")
	fmt.Fprintf(w, "  %-15s %12.2f %12.2f\n", "Requests/sec:", baseline.RequestsPerSec, current.RequestsPerSec)
	fmt.Fprintf(w, "  %-15s %12.2f %12.2f\n", "Mean (ms):", baseline.MeanLatencyMs, current.MeanLatencyMs)
	fmt.Fprintf(w, "  %-15s %12.2f %12.2f\n", "P99 (ms):", baseline.P99LatencyMs, current.P99LatencyMs)
	fmt.Fprintf(w, "  %-15s %12d %12d\n", "Failed:", baseline.Failures, current.Failures)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// PrintYAMLReport outputs a YAML-formatted report with the same fields as JSON.
func PrintYAMLReport(w io.Writer, stats metrics.Stats) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(stats); err != nil {
		return err
	}
	return enc.Close()
}
