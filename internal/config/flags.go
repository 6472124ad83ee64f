package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadfire [config.yaml]",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.StringP("url", "u", "", "Target URL to load test (may contain ${column} placeholders)")
	flags.StringP("method", "X", http.MethodGet, "HTTP method to use")
	flags.StringSliceP("header", "H", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body template")
	flags.String("body-file", "", "Path to file containing the request body template")

	flags.String("data-file", "", "Path to CSV, JSON, YAML or XLSX file with per-request data rows")
	flags.String("data-type", "", "Type of data file (csv, json, yaml, xlsx); inferred from extension when empty")
	flags.String("data-sheet", "", "Worksheet to read from an XLSX data file (default first sheet)")

	flags.IntP("requests", "n", 0, "Total number of requests to send")
	flags.IntP("concurrency", "c", 0, "Number of concurrent workers (0 means one per request)")
	flags.IntP("rate", "r", 0, "Requests per second limit (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout (0 disables)")
	flags.String("client", string(ClientStandard), "HTTP client implementation: standard or fasthttp")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing requests (uniform or poisson)")

	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("json-output", false, "Emit JSON formatted output (same as --output json)")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.Bool("progress", false, "Print periodic progress to stderr")
	flags.String("history-file", "", "Append a summary of each run to this JSON lines file")
	flags.String("request-id-header", "", "Header that receives a unique id on every request")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.StringSlice("threshold", nil, "Pass/fail assertion on the results (repeatable, e.g. 'latency:p95 < 500')")

	flags.Bool("tracing", false, "Enable OpenTelemetry tracing of requests")
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported in spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0 - 1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS when exporting spans")
	flags.Bool("tracing-propagate", true, "Send W3C trace context headers to the target")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// override copies flag name into dst when it was set on the command line.
func override[T any](fs *pflag.FlagSet, name string, get func(string) (T, error), dst *T) error {
	if !fs.Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// applyFlagOverrides layers explicitly set flags over file values.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var (
		arrival, output, client string
		jsonOutput, propagate   bool
		headers                 []string
	)
	steps := []error{
		override(fs, "url", fs.GetString, &cfg.URL),
		override(fs, "method", fs.GetString, &cfg.Method),
		override(fs, "data-file", fs.GetString, &cfg.DataFile),
		override(fs, "data-type", fs.GetString, &cfg.DataType),
		override(fs, "data-sheet", fs.GetString, &cfg.DataSheet),
		override(fs, "history-file", fs.GetString, &cfg.HistoryFile),
		override(fs, "request-id-header", fs.GetString, &cfg.RequestIDHeader),
		override(fs, "requests", fs.GetInt, &cfg.RequestCount),
		override(fs, "concurrency", fs.GetInt, &cfg.Concurrency),
		override(fs, "rate", fs.GetInt, &cfg.Rate),
		override(fs, "timeout", fs.GetDuration, &cfg.Timeout),
		override(fs, "log-errors", fs.GetBool, &cfg.LogErrors),
		override(fs, "progress", fs.GetBool, &cfg.Progress),
		override(fs, "threshold", fs.GetStringSlice, &cfg.Thresholds),
		override(fs, "tracing", fs.GetBool, &cfg.Tracing.Enable),
		override(fs, "tracing-endpoint", fs.GetString, &cfg.Tracing.Endpoint),
		override(fs, "tracing-protocol", fs.GetString, &cfg.Tracing.Protocol),
		override(fs, "tracing-service-name", fs.GetString, &cfg.Tracing.ServiceName),
		override(fs, "tracing-sample-rate", fs.GetFloat64, &cfg.Tracing.SampleRate),
		override(fs, "tracing-insecure", fs.GetBool, &cfg.Tracing.Insecure),
		override(fs, "arrival-model", fs.GetString, &arrival),
		override(fs, "output", fs.GetString, &output),
		override(fs, "client", fs.GetString, &client),
		override(fs, "json-output", fs.GetBool, &jsonOutput),
		override(fs, "tracing-propagate", fs.GetBool, &propagate),
		override(fs, "header", fs.GetStringSlice, &headers),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}

	// The last of --body and --body-file wins over the file's pair.
	if fs.Changed("body") {
		cfg.Body, _ = fs.GetString("body")
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		cfg.BodyFile, _ = fs.GetString("body-file")
		cfg.Body = ""
	}

	if fs.Changed("arrival-model") {
		cfg.Arrival = ArrivalModel(keyword(arrival))
	}
	if fs.Changed("output") {
		cfg.Output = OutputFormat(keyword(output))
	}
	if jsonOutput {
		cfg.Output = OutputJSON
	}
	if fs.Changed("client") {
		cfg.Client = ClientKind(keyword(client))
	}
	if fs.Changed("tracing-propagate") {
		cfg.Tracing.Propagate = &propagate
	}
	for _, name := range []*string{&cfg.URL, &cfg.Method, &cfg.Tracing.Endpoint, &cfg.Tracing.Protocol, &cfg.Tracing.ServiceName} {
		*name = strings.TrimSpace(*name)
	}

	for _, entry := range headers {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("header must be in key=value format: %s", entry)
		}
		if key = strings.TrimSpace(key); key == "" {
			return fmt.Errorf("header key cannot be empty: %s", entry)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers[http.CanonicalHeaderKey(key)] = strings.TrimSpace(value)
	}
	return nil
}

func keyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
