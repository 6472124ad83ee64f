package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Response is what the dispatcher needs to know about a completed exchange.
type Response struct {
	StatusCode int
	// Bytes is the number of response body bytes read, or -1 when the body
	// could not be fully read for a reason other than the request timeout.
	Bytes int64
}

// Sender performs one HTTP exchange. Any response, whatever its status, is
// returned without error; an error means no response was received.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, spec Spec, timeout time.Duration) (Response, error)
}

// HTTPSender sends specs over a shared *http.Client.
type HTTPSender struct {
	Client *http.Client
	// RequestIDHeader, when set, receives a fresh UUID on every request.
	RequestIDHeader string
	// Propagate, when set, injects trace context into outgoing headers.
	Propagate func(ctx context.Context, header http.Header)
}

func (s *HTTPSender) Send(ctx context.Context, spec Spec, timeout time.Duration) (Response, error) {
	if s == nil || s.Client == nil {
		return Response{}, errors.New("http sender has no client")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := spec.NewRequest(ctx)
	if err != nil {
		return Response{}, err
	}
	if s.RequestIDHeader != "" {
		req.Header.Set(s.RequestIDHeader, uuid.NewString())
	}
	if s.Propagate != nil {
		s.Propagate(ctx, req.Header)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		// A deadline or cancellation while draining is a failed exchange;
		// other read errors keep the response with an unknown size.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("read body: %w", ctxErr)
		}
		n = -1
	}
	return Response{StatusCode: resp.StatusCode, Bytes: n}, nil
}

// ClientOptions tunes the shared transport.
type ClientOptions struct {
	// Timeout bounds the whole exchange; zero leaves it to the per-request context.
	Timeout time.Duration
	// MaxConnsPerHost caps open connections to the target; zero means unlimited.
	MaxConnsPerHost int
	// MaxIdleConnsPerHost keeps enough idle connections for the worker count.
	MaxIdleConnsPerHost int
}

func NewClient(opts ClientOptions) *http.Client {
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}

	idlePerHost := opts.MaxIdleConnsPerHost
	if idlePerHost <= 0 {
		idlePerHost = 32
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   idlePerHost,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
