package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "deadline exceeded" }
func (timeoutErr) Timeout() bool { return true }

// Temporary is deprecated on net.Error but still part of the interface.
func (timeoutErr) Temporary() bool { return true }

func TestTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("page not found"), false},
		{"net timeout", timeoutErr{}, true},
		{"wrapped net timeout", fmt.Errorf("load: %w", timeoutErr{}), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"reset by text", errors.New("read tcp 10.0.0.1:443: connection reset by peer"), true},
		{"dns by text", errors.New("lookup example.com: no such host"), true},
		{"tls handshake", errors.New("net/http: TLS handshake timeout"), true},
		{"parse failure", errors.New("invalid character '<' looking for value"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Temporary(tt.err); got != tt.want {
				t.Errorf("Temporary(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTemporary_DNSError(t *testing.T) {
	err := &net.DNSError{Err: "server misbehaving", Name: "example.com", IsTimeout: true}
	if !Temporary(err) {
		t.Error("expected DNS timeout to be temporary")
	}
}

func TestRetryableStatus(t *testing.T) {
	retryable := []int{408, 429, 500, 502, 503, 504}
	for _, code := range retryable {
		if !RetryableStatus(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}

	permanent := []int{200, 301, 400, 401, 403, 404, 410}
	for _, code := range permanent {
		if RetryableStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}
