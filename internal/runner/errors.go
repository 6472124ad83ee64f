package runner

import (
	"fmt"

	"github.com/loadfire/loadfire/internal/metrics"
)

// ConfigError reports a run that cannot start or continue because of its
// configuration, such as a declared data source with no rows.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ResolveError reports a request template that could not be resolved
// against the data row for an iteration.
type ResolveError struct {
	Iteration int
	Err       error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve request %d: %v", e.Iteration, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// ErrorKind classifies the failure for metrics.
func (e *ResolveError) ErrorKind() string { return metrics.KindTemplate }
