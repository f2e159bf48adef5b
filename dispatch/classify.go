package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// IsNetworkError reports whether a transport failure should be treated as a
// connectivity problem (worth persisting and retrying) rather than a caller
// mistake.
//
// Network errors: timeouts, DNS failures, refused/reset/aborted connections,
// unreachable hosts and networks, and connections dropped mid-response.
// Everything else, including context cancellation by the caller and
// malformed requests, propagates unretried.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	// A canceled context is the caller's decision, not the network's.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EPIPE,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ENETDOWN,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	// Server hung up mid-response.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return false
}
