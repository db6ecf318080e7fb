package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

type delayedConfirmer struct {
	delay  time.Duration
	result *ConfirmResult
	err    error
	calls  int
}

func (d *delayedConfirmer) ConfirmSameApplication(ctx context.Context, _ *ConfirmRequest) (*ConfirmResult, error) {
	d.calls++
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.result, d.err
}

func TestConfirmWithTimeoutFastPath(t *testing.T) {
	stub := &delayedConfirmer{result: &ConfirmResult{Same: true}}

	result, err := ConfirmWithTimeout(context.Background(), stub, &ConfirmRequest{}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Same {
		t.Fatalf("expected the stub verdict to pass through")
	}
	if stub.calls != 1 {
		t.Fatalf("expected one call, got %d", stub.calls)
	}
}

func TestConfirmWithTimeoutDeadline(t *testing.T) {
	stub := &delayedConfirmer{delay: 500 * time.Millisecond, result: &ConfirmResult{Same: true}}

	_, err := ConfirmWithTimeout(context.Background(), stub, &ConfirmRequest{}, 20*time.Millisecond)
	if !errors.Is(err, ErrConfirmTimeout) {
		t.Fatalf("expected ErrConfirmTimeout, got %v", err)
	}
}

func TestConfirmWithTimeoutZeroDisablesDeadline(t *testing.T) {
	stub := &delayedConfirmer{result: &ConfirmResult{Same: false}}

	result, err := ConfirmWithTimeout(context.Background(), stub, &ConfirmRequest{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Same {
		t.Fatalf("expected the stub verdict to pass through")
	}
}

func TestConfirmWithTimeoutNilConfirmer(t *testing.T) {
	if _, err := ConfirmWithTimeout(context.Background(), nil, &ConfirmRequest{}, time.Second); err == nil {
		t.Fatalf("expected an error for a nil confirmer")
	}
}

func TestConfirmWithTimeoutCancelledContext(t *testing.T) {
	stub := &delayedConfirmer{delay: 500 * time.Millisecond, result: &ConfirmResult{Same: true}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConfirmWithTimeout(ctx, stub, &ConfirmRequest{}, time.Second)
	if err == nil {
		t.Fatalf("expected an error for a cancelled context")
	}
	if errors.Is(err, ErrConfirmTimeout) {
		t.Fatalf("cancellation must not be reported as a timeout, got %v", err)
	}
}
