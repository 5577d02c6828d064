package fault_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"aide/internal/fault"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   fault.Kind
	}{
		{http.StatusUnauthorized, fault.KindFatal},
		{http.StatusForbidden, fault.KindFatal},
		{http.StatusTooManyRequests, fault.KindTransient},
		{http.StatusRequestTimeout, fault.KindTransient},
		{http.StatusServiceUnavailable, fault.KindTransient},
		{http.StatusInternalServerError, fault.KindTransient},
		{http.StatusBadRequest, fault.KindService},
		{http.StatusNotFound, fault.KindService},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fault.FromStatus("call", tt.status, "boom")
			if got := fault.KindOf(err); got != tt.want {
				t.Errorf("KindOf: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("drafting: %w", fault.Inputf("too few fields"))
	if !fault.IsInput(err) {
		t.Errorf("expected wrapped input error to be classified as input")
	}

	if got := fault.KindOf(errors.New("plain")); got != fault.KindService {
		t.Errorf("plain error: got %s, want service", got)
	}

	if !fault.IsTransient(context.DeadlineExceeded) {
		t.Errorf("deadline exceeded should be transient")
	}
}

func TestErrorMessage(t *testing.T) {
	err := fault.Fatal("gemini generate", errors.New("missing api key"))
	if err.Error() != "gemini generate: missing api key" {
		t.Errorf("message: got %q", err.Error())
	}
	if fault.Input("op", nil) != nil {
		t.Errorf("wrapping nil should return nil")
	}
}

func fastRetry(attempts int) fault.RetryConfig {
	return fault.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	calls := 0
	err := fault.WithRetry(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return fault.Transient("call", errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestWithRetry_StopsOnNonTransient(t *testing.T) {
	for _, fail := range []error{
		fault.Service("call", errors.New("bad request")),
		fault.Fatal("call", errors.New("bad key")),
		fault.Inputf("bad input"),
	} {
		calls := 0
		err := fault.WithRetry(context.Background(), fastRetry(5), func(context.Context) error {
			calls++
			return fail
		})
		if !errors.Is(err, fail) {
			t.Errorf("error: got %v, want %v", err, fail)
		}
		if calls != 1 {
			t.Errorf("%v: calls got %d, want 1", fail, calls)
		}
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := fault.WithRetry(context.Background(), fastRetry(2), func(context.Context) error {
		calls++
		return fault.Transient("call", errors.New("unavailable"))
	})
	if !fault.IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fault.RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1}

	calls := 0
	err := fault.WithRetry(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return fault.Transient("call", errors.New("unavailable"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error: got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
