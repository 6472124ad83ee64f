package metrics

import "time"

// Error kinds assigned to failed requests.
const (
	KindTimeout           = "timeout"
	KindConnectionRefused = "connection_refused"
	KindDNS               = "dns"
	KindCanceled          = "canceled"
	KindTemplate          = "template"
	KindTransport         = "transport"
)

// Result is the outcome of one dispatched request.
type Result struct {
	// Iteration is the zero-based request index within the run.
	Iteration int
	// StatusCode is zero when no response was received.
	StatusCode int
	// ErrorKind is empty for a request that received a response.
	ErrorKind string
	Err       error
	Latency   time.Duration
	// Bytes is the response body size, or -1 when unknown.
	Bytes     int64
	Timestamp time.Time
}

// Failed reports whether the request ended without a response.
func (r Result) Failed() bool {
	return r.ErrorKind != "" || r.Err != nil
}

// dispatched reports whether the request reached the transport; template
// failures never do and carry no latency.
func (r Result) dispatched() bool {
	return r.ErrorKind != KindTemplate
}
