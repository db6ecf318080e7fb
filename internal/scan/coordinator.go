package scan

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrScanInProgress is returned when a scan is requested while another one
// holds the slot.
var ErrScanInProgress = errors.New("scan already in progress")

// Coordinator serializes scans. There is exactly one slot: a second request
// is rejected immediately instead of queueing, so a slow scheduled scan never
// piles up followers behind it. Cancel stops the running scan at the next
// email boundary.
type Coordinator struct {
	pipeline *Pipeline
	logger   *zap.Logger
	slot     chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewCoordinator(pipeline *Pipeline, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		pipeline: pipeline,
		logger:   logger,
		slot:     make(chan struct{}, 1),
	}
}

// Run acquires the slot and runs one full scan, or fails fast with
// ErrScanInProgress.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	select {
	case c.slot <- struct{}{}:
	default:
		c.logger.Warn("scan request rejected, another scan is running")
		return nil, ErrScanInProgress
	}
	defer func() { <-c.slot }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	return c.pipeline.Run(runCtx)
}

// Cancel requests cooperative cancellation of the running scan, if any. The
// email being processed finishes; its transaction is never cut in half.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.logger.Info("scan cancellation requested")
		c.cancel()
	}
}
