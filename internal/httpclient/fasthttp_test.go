package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

func TestFastHTTPSenderSend(t *testing.T) {
	var (
		mu      sync.Mutex
		gotReq  string
		gotBody string
		gotHdr  http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotReq = r.Method + " " + r.URL.RequestURI()
		gotBody = string(body)
		gotHdr = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("accepted"))
	}))
	defer server.Close()

	sender := &FastHTTPSender{
		Client:          NewFastHTTPClient(ClientOptions{}),
		RequestIDHeader: "X-Request-Id",
		Propagate: func(_ context.Context, h http.Header) {
			h.Set("Traceparent", "00-fast")
		},
	}

	spec := Spec{
		Method:  "PUT",
		URL:     server.URL + "/items/7?v=1",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"id":7}`),
	}
	resp, err := sender.Send(context.Background(), spec, time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusAccepted || resp.Bytes != 8 {
		t.Errorf("Send() = %+v, want 202 with 8 bytes", resp)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotReq != "PUT /items/7?v=1" || gotBody != `{"id":7}` {
		t.Errorf("server saw %s %q", gotReq, gotBody)
	}
	if gotHdr.Get("Content-Type") != "application/json" || gotHdr.Get("Traceparent") != "00-fast" {
		t.Errorf("headers = %v", gotHdr)
	}
	if _, err := uuid.Parse(gotHdr.Get("X-Request-Id")); err != nil {
		t.Errorf("request id is not a UUID: %v", err)
	}
}

func TestFastHTTPSenderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	sender := &FastHTTPSender{Client: NewFastHTTPClient(ClientOptions{})}
	_, err := sender.Send(context.Background(), Spec{Method: "GET", URL: server.URL}, 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send() error = %v, want deadline exceeded", err)
	}
}

func TestFastHTTPSenderCancelledContext(t *testing.T) {
	sender := &FastHTTPSender{Client: NewFastHTTPClient(ClientOptions{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sender.Send(ctx, Spec{Method: "GET", URL: "http://127.0.0.1:1"}, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}

	var nilSender *FastHTTPSender
	if _, err := nilSender.Send(context.Background(), Spec{}, 0); err == nil {
		t.Error("expected error from nil sender")
	}
}

func TestNewFastHTTPClient(t *testing.T) {
	c := NewFastHTTPClient(ClientOptions{})
	if c.MaxConnsPerHost != fasthttp.DefaultMaxConnsPerHost {
		t.Errorf("MaxConnsPerHost = %d", c.MaxConnsPerHost)
	}
	c = NewFastHTTPClient(ClientOptions{MaxConnsPerHost: 8, Timeout: time.Second})
	if c.MaxConnsPerHost != 8 || c.ReadTimeout != time.Second {
		t.Errorf("client = %+v", c)
	}
}
