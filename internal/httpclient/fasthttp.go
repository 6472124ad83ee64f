package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// FastHTTPSender sends specs with valyala/fasthttp. A request already on the
// wire stops at its deadline rather than when ctx is cancelled.
type FastHTTPSender struct {
	Client          *fasthttp.Client
	RequestIDHeader string
	Propagate       func(ctx context.Context, header http.Header)
}

// NewFastHTTPClient builds a fasthttp client tuned like NewClient.
func NewFastHTTPClient(opts ClientOptions) *fasthttp.Client {
	maxConns := opts.MaxConnsPerHost
	if maxConns <= 0 {
		maxConns = fasthttp.DefaultMaxConnsPerHost
	}
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}
	return &fasthttp.Client{
		Name:                "loadfire",
		MaxConnsPerHost:     maxConns,
		MaxIdleConnDuration: 90 * time.Second,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
	}
}

func (s *FastHTTPSender) Send(ctx context.Context, spec Spec, timeout time.Duration) (Response, error) {
	if s == nil || s.Client == nil {
		return Response{}, errors.New("fasthttp sender has no client")
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(spec.Method)
	req.SetRequestURI(spec.URL)
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if s.RequestIDHeader != "" {
		req.Header.Set(s.RequestIDHeader, uuid.NewString())
	}
	if s.Propagate != nil {
		carrier := http.Header{}
		s.Propagate(ctx, carrier)
		for k := range carrier {
			req.Header.Set(k, carrier.Get(k))
		}
	}
	if len(spec.Body) > 0 {
		req.SetBody(spec.Body)
	}

	deadline, hasDeadline := ctx.Deadline()
	if timeout > 0 {
		if d := time.Now().Add(timeout); !hasDeadline || d.Before(deadline) {
			deadline, hasDeadline = d, true
		}
	}

	var err error
	if hasDeadline {
		err = s.Client.DoDeadline(req, resp, deadline)
	} else {
		err = s.Client.Do(req, resp)
	}
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return Response{}, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode(), Bytes: int64(len(resp.Body()))}, nil
}
