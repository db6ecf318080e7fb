package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConfirmTimeout is returned when a confirmation call exceeds its deadline.
var ErrConfirmTimeout = errors.New("llm confirmation timed out")

type confirmOutcome struct {
	result *ConfirmResult
	err    error
}

// ConfirmWithTimeout runs the confirmation call in a detached goroutine and
// enforces a hard deadline, discarding the result if it arrives late. The
// underlying client carries its own timeout, but that timeout has proven
// unreliable and a hung call must not hang the whole scan.
func ConfirmWithTimeout(ctx context.Context, confirmer Confirmer, req *ConfirmRequest, timeout time.Duration) (*ConfirmResult, error) {
	if confirmer == nil {
		return nil, errors.New("confirmer is not configured")
	}
	if timeout <= 0 {
		return confirmer.ConfirmSameApplication(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the worker can complete and exit after the deadline fires.
	done := make(chan confirmOutcome, 1)
	go func() {
		result, err := confirmer.ConfirmSameApplication(callCtx, req)
		done <- confirmOutcome{result: result, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.result, outcome.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrConfirmTimeout, timeout)
		}
		return nil, callCtx.Err()
	}
}
