package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/loadfire/loadfire/internal/config"
	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/placeholders"
)

// Spec is a fully resolved request, ready to send.
type Spec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// NewRequest builds a replayable request for the spec.
func (s Spec) NewRequest(ctx context.Context) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var req *http.Request
	var err error
	if len(s.Body) > 0 {
		// A bytes.Reader body gets ContentLength and GetBody set by net/http.
		req, err = http.NewRequestWithContext(ctx, s.Method, s.URL, bytes.NewReader(s.Body))
	} else {
		req, err = http.NewRequestWithContext(ctx, s.Method, s.URL, nil)
	}
	if err != nil {
		return nil, err
	}

	for key, value := range s.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// Template is the immutable request shape shared by every iteration.
// Resolve never modifies it, so one Template serves all workers.
type Template struct {
	method  string
	url     string
	headers map[string]string
	body    string
	columns []string
}

func NewTemplate(cfg *config.Config) (*Template, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.TrimSpace(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	body, err := loadBody(cfg)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if _, dup := headers[canonicalKey]; dup {
			return nil, fmt.Errorf("duplicate header %s", canonicalKey)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers[canonicalKey] = value
	}

	sources := []string{target, body}
	for _, value := range headers {
		sources = append(sources, value)
	}

	return &Template{
		method:  method,
		url:     target,
		headers: headers,
		body:    body,
		columns: placeholders.Names(sources...),
	}, nil
}

// Method returns the upper-cased HTTP method.
func (t *Template) Method() string { return t.method }

// URL returns the unresolved target URL.
func (t *Template) URL() string { return t.url }

// Columns lists every data column referenced by the URL, headers or body.
func (t *Template) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Resolve substitutes record values into a fresh Spec. A nil record leaves
// the template text unchanged. The result shares no memory with the template.
func (t *Template) Resolve(record feeder.Record) (Spec, error) {
	target, err := placeholders.Apply(t.url, record)
	if err != nil {
		return Spec{}, fmt.Errorf("url: %w", err)
	}

	headers, err := placeholders.ApplyToMap(t.headers, record)
	if err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Method:  t.method,
		URL:     target,
		Headers: headers,
	}

	if t.body != "" {
		body, err := placeholders.Apply(t.body, record)
		if err != nil {
			return Spec{}, fmt.Errorf("body: %w", err)
		}
		spec.Body = []byte(body)
	}

	return spec, nil
}
