package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional YAML or JSON
// configuration file. The file may be given with --config or as the single
// positional argument. Flags override file values.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if help, _ := flagSet.GetBool("help"); help {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	configPath := strings.TrimSpace(flagSet.Lookup("config").Value.String())
	switch positional := flagSet.Args(); {
	case len(positional) > 1:
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(positional[1:], " "))
	case len(positional) == 1 && configPath != "":
		return nil, errors.New("config file given both as argument and --config")
	case len(positional) == 1:
		configPath = positional[0]
	}

	if len(args) == 0 {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := &Config{
		Method:     http.MethodGet,
		Headers:    map[string]string{},
		Timeout:    30 * time.Second,
		Arrival:    ArrivalModelUniform,
		Output:     OutputText,
		Client:     ClientStandard,
		ConfigFile: configPath,
		Tracing:    TracingConfig{SampleRate: 1.0},
	}

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := applyConfigSettings(cfg, v.AllSettings()); err != nil {
			return nil, err
		}
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	cfg.DataFile = strings.TrimSpace(cfg.DataFile)
	cfg.DataType = strings.ToLower(strings.TrimSpace(cfg.DataType))

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

// binding ties a destination field to its accepted setting keys. The first
// key names the field in errors.
type binding struct {
	keys []string
	set  func(raw interface{}) error
}

func bind[T any](dst *T, parse func(interface{}) (T, error), keys ...string) binding {
	return binding{keys: keys, set: func(raw interface{}) error {
		v, err := parse(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}}
}

// bindWord binds a case-insensitive keyword. Blank values keep the default.
func bindWord[T ~string](dst *T, keys ...string) binding {
	return binding{keys: keys, set: func(raw interface{}) error {
		v, err := asString(raw)
		if err != nil {
			return err
		}
		if v = keyword(v); v != "" {
			*dst = T(v)
		}
		return nil
	}}
}

func applyBindings(settings map[string]interface{}, bindings []binding) error {
	for _, b := range bindings {
		raw, ok := lookupSetting(settings, b.keys...)
		if !ok {
			continue
		}
		if err := b.set(raw); err != nil {
			return fmt.Errorf("%s: %w", b.keys[0], err)
		}
	}
	return nil
}

// applyConfigSettings copies config file settings onto cfg.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	method := ""
	err := applyBindings(settings, []binding{
		bind(&cfg.URL, asString, "url", "target"),
		bind(&method, asString, "method"),
		bind(&cfg.Body, asString, "body"),
		bind(&cfg.BodyFile, asString, "body_file", "bodyfile"),
		bind(&cfg.DataFile, asString, "data_file", "datafile"),
		bind(&cfg.DataType, asString, "data_type", "datatype"),
		bind(&cfg.DataSheet, asString, "data_sheet", "datasheet"),
		bind(&cfg.HistoryFile, asString, "history_file", "historyfile"),
		bind(&cfg.RequestIDHeader, asString, "request_id_header", "requestidheader"),
		bind(&cfg.RequestCount, asInt, "request_count", "requestcount", "total"),
		bind(&cfg.Concurrency, asInt, "concurrency"),
		bind(&cfg.Rate, asInt, "rate"),
		bind(&cfg.Timeout, asDuration, "timeout"),
		bindWord(&cfg.Arrival, "arrival", "arrival_model"),
		bindWord(&cfg.Output, "output"),
		bindWord(&cfg.Client, "client"),
		bind(&cfg.LogErrors, asBool, "log_errors", "logerrors"),
		bind(&cfg.Progress, asBool, "progress"),
		bind(&cfg.Thresholds, asStringSlice, "thresholds"),
		{keys: []string{"headers"}, set: func(raw interface{}) error {
			hdrs, err := asStringMap(raw)
			if err != nil {
				return err
			}
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string, len(hdrs))
			}
			for k, v := range hdrs {
				cfg.Headers[http.CanonicalHeaderKey(k)] = v
			}
			return nil
		}},
		{keys: []string{"tracing"}, set: func(raw interface{}) error {
			t, err := parseTracing(raw, cfg.Tracing)
			if err == nil {
				cfg.Tracing = t
			}
			return err
		}},
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(method) != "" {
		cfg.Method = method
	}
	return nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}

	out := base
	err = applyBindings(settings, []binding{
		bind(&out.Enable, asBool, "enabled"),
		bind(&out.Endpoint, asString, "endpoint"),
		bind(&out.Protocol, asString, "protocol"),
		bind(&out.ServiceName, asString, "service_name", "servicename"),
		bind(&out.SampleRate, asFloat64, "sample_rate", "samplerate"),
		bind(&out.Insecure, asBool, "insecure"),
		{keys: []string{"propagate"}, set: func(raw interface{}) error {
			v, err := asBool(raw)
			if err == nil {
				out.Propagate = &v
			}
			return err
		}},
	})
	if err != nil {
		return base, err
	}
	return out, nil
}
