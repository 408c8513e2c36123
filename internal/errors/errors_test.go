package errors

import (
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	e := Wrap("dial", "10.0.0.5:3671", New("connection refused"))
	got := e.Error()
	if !strings.Contains(got, "dial 10.0.0.5:3671") {
		t.Errorf("missing op/addr in %q", got)
	}
	if strings.Contains(got, "retryable") {
		t.Errorf("refused connection should not be retryable: %q", got)
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	inner := New("boom")
	e := Wrap("read", "host:3671", inner)
	if !Is(e, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	var ne *NetworkError
	if !As(fmt.Errorf("outer: %w", e), &ne) {
		t.Error("errors.As should find *NetworkError through wrapping")
	}
}

func TestSecureError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *SecureError
		want string
	}{
		{"with addr", WrapSecure("session.auth", "10.0.0.5:3671", ErrSessionRefused),
			"secure session.auth 10.0.0.5:3671"},
		{"without addr", WrapSecure("keyring", "", New("bad padding")),
			"secure keyring:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestConfigError_Format(t *testing.T) {
	e := &ConfigError{
		Field:   "user-key",
		Value:   "abcd",
		Message: "wrong key length, requires 16 bytes (32 hex chars)",
		Hint:    "use --user-pwd for a plaintext password",
	}
	got := e.Error()
	for _, want := range []string{"--user-key", "=abcd", "wrong key length", "hint:"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestIsConfig(t *testing.T) {
	ce := &ConfigError{Field: "domain", Message: "unsupported medium"}
	if !IsConfig(fmt.Errorf("parse: %w", ce)) {
		t.Error("IsConfig should detect wrapped ConfigError")
	}
	if IsConfig(New("other")) {
		t.Error("IsConfig should reject unrelated errors")
	}
}

func TestIsRetryable(t *testing.T) {
	dnsErr := &net.DNSError{Err: "temporary failure", IsTemporary: true}
	if !IsRetryable(Wrap("resolve", "host", dnsErr)) {
		t.Error("temporary DNS error should be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if IsRetryable(ErrNoCredential) {
		t.Error("credential errors are not retryable")
	}
}
