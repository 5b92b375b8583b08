package main

import (
	"errors"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil", nil, 0},
		{"429 with retry after", errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{"429 bare", errors.New("too many requests"), 3 * time.Second},
		{"timeout", timeoutErr{}, 2 * time.Second},
		{"other", errors.New("bad gateway"), time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelayFromError(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShortHash(t *testing.T) {
	a := shortHash("123:abc")
	if len(a) != 16 || a != shortHash("123:abc") {
		t.Errorf("hash must be stable 16 hex chars, got %q", a)
	}
	if a == shortHash("123:abd") {
		t.Error("different tokens must give different paths")
	}
}
