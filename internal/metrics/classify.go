package metrics

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// ClassifyError maps a request error to one of the Kind constants.
// Errors exposing an ErrorKind() string method classify themselves.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var kinder interface{ ErrorKind() string }
	if errors.As(err, &kinder) {
		if kind := kinder.ErrorKind(); kind != "" {
			return kind
		}
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindTransport
}
