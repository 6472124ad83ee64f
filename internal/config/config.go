package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/placeholders"
	"github.com/loadfire/loadfire/internal/threshold"
)

// Config describes one load test run.
type Config struct {
	URL             string            `mapstructure:"url"`
	Method          string            `mapstructure:"method"`
	RequestCount    int               `mapstructure:"request_count"`
	Headers         map[string]string `mapstructure:"headers"`
	Body            string            `mapstructure:"body"`
	BodyFile        string            `mapstructure:"body_file"`
	DataFile        string            `mapstructure:"data_file"`
	DataType        string            `mapstructure:"data_type"`
	DataSheet       string            `mapstructure:"data_sheet"`
	Concurrency     int               `mapstructure:"concurrency"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	Rate            int               `mapstructure:"rate"`
	Arrival         ArrivalModel      `mapstructure:"arrival"`
	LogErrors       bool              `mapstructure:"log_errors"`
	Output          OutputFormat      `mapstructure:"output"`
	Progress        bool              `mapstructure:"progress"`
	HistoryFile     string            `mapstructure:"history_file"`
	RequestIDHeader string            `mapstructure:"request_id_header"`
	Client          ClientKind        `mapstructure:"client"`
	Thresholds      []string          `mapstructure:"thresholds"`
	Tracing         TracingConfig     `mapstructure:"tracing"`
	ConfigFile      string            `mapstructure:"-"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// ClientKind selects the HTTP client implementation.
type ClientKind string

const (
	ClientStandard ClientKind = "standard"
	ClientFastHTTP ClientKind = "fasthttp"
)

// TracingConfig configures OpenTelemetry export for request spans.
type TracingConfig struct {
	Enable      bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate controls W3C header injection; nil means enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether tracing was requested explicitly or by endpoint.
func (t TracingConfig) Enabled() bool {
	return t.Enable || strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether trace context should be sent to the target.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate == nil {
		return true
	}
	return *t.Propagate
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// EffectiveConcurrency returns the worker count for the run; zero means one
// worker per request.
func (c Config) EffectiveConcurrency() int {
	if c.Concurrency <= 0 || c.Concurrency > c.RequestCount {
		return c.RequestCount
	}
	return c.Concurrency
}

// TemplateSources returns every text that may carry placeholders.
// The body file is not read here.
func (c Config) TemplateSources() []string {
	sources := []string{c.URL, c.Body}
	for _, v := range c.Headers {
		sources = append(sources, v)
	}
	return sources
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateTarget(c.URL)...)

	method := strings.ToUpper(strings.TrimSpace(c.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		issues = append(issues, fmt.Sprintf("method %q is not supported (use GET, POST, PUT, DELETE or PATCH)", c.Method))
	}

	if c.RequestCount < 1 {
		issues = append(issues, "request_count must be >= 1")
	}
	if c.Concurrency < 0 {
		issues = append(issues, "concurrency must be >= 0")
	}
	if c.RequestCount >= 1 && c.Concurrency > c.RequestCount {
		issues = append(issues, fmt.Sprintf("concurrency (%d) must not exceed request_count (%d)", c.Concurrency, c.RequestCount))
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Body != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and body_file are mutually exclusive")
	}

	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" {
			issues = append(issues, "header names cannot be empty")
		}
		if strings.ContainsAny(key, "\r\n") || strings.ContainsAny(value, "\r\n") {
			issues = append(issues, fmt.Sprintf("header %q contains a line break", key))
		}
	}

	issues = append(issues, c.validateData()...)

	switch c.Arrival {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival must be 'uniform' or 'poisson', got %q", c.Arrival))
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text', 'json' or 'yaml', got %q", c.Output))
	}

	switch c.Client {
	case "", ClientStandard, ClientFastHTTP:
	default:
		issues = append(issues, fmt.Sprintf("client must be 'standard' or 'fasthttp', got %q", c.Client))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	for _, raw := range c.Thresholds {
		if _, err := threshold.Parse(raw); err != nil {
			issues = append(issues, err.Error())
		}
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings returns advisory messages that do not block the run.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if workers := c.EffectiveConcurrency(); workers > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.", workers))
	}
	return warnings
}

func validateTarget(target string) []string {
	target = strings.TrimSpace(target)
	if target == "" {
		return []string{"url is required (use --help for usage information)"}
	}

	// Check the shape the URL will have once placeholders are filled in.
	sample := map[string]string{}
	for _, name := range placeholders.Names(target) {
		sample[name] = "x"
	}
	resolved, err := placeholders.Apply(target, sample)
	if err != nil {
		return []string{fmt.Sprintf("url: %v", err)}
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return []string{fmt.Sprintf("url is invalid: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("url scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return []string{"url must include a host"}
	}
	return nil
}

func (c Config) validateData() []string {
	var issues []string
	dataFile := strings.TrimSpace(c.DataFile)

	if dataFile == "" {
		if c.DataType != "" {
			issues = append(issues, "data_type requires data_file")
		}
		// Without rows nothing is substituted, defaults included.
		if cols := placeholders.Names(c.TemplateSources()...); len(cols) > 0 {
			issues = append(issues, fmt.Sprintf("request references columns %s but no data_file is set", strings.Join(cols, ", ")))
		}
		return issues
	}

	dataType := strings.ToLower(strings.TrimSpace(c.DataType))
	switch dataType {
	case "":
		if _, err := feeder.DetectType(dataFile); err != nil {
			issues = append(issues, fmt.Sprintf("data_file: %v", err))
		}
	case feeder.TypeCSV, feeder.TypeJSON, feeder.TypeYAML, "yml", feeder.TypeXLSX:
	default:
		issues = append(issues, fmt.Sprintf("data_type must be csv, json, yaml or xlsx, got %q", c.DataType))
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	return issues
}
