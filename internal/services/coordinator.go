package services

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"ab-analyzer/internal/observability"
)

// AnalysisFunc runs one full recomputation with the parameters captured at
// trigger time.
type AnalysisFunc func(ctx context.Context, p AnalysisParams) (*Snapshot, error)

// Coordinator sequences asynchronous recomputations. Every trigger stamps
// a monotonically increasing token; a finished request is applied only if
// its token is still the most recently issued, so a slow earlier request
// can never overwrite the result of a later, faster one. The underlying
// transport needs no cancellation support: discarding on arrival is
// enough.
type Coordinator struct {
	run    AnalysisFunc
	logger *slog.Logger

	seq atomic.Uint64

	mu      sync.RWMutex
	current *Snapshot
	lastErr error

	inflight sync.WaitGroup
}

func NewCoordinator(run AnalysisFunc, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		run:    run,
		logger: logger,
	}
}

// Trigger issues one analysis request and returns its token immediately.
// The request runs in the background; its result replaces the current
// snapshot atomically unless a newer trigger superseded it first.
func (c *Coordinator) Trigger(ctx context.Context, p AnalysisParams) uint64 {
	token := c.seq.Add(1)
	c.inflight.Add(1)

	go func() {
		defer c.inflight.Done()

		runCtx, span := observability.StartSpan(ctx, "analysis.recompute")
		span.SetTag("token", strconv.FormatUint(token, 10))
		defer span.Finish()

		snap, err := c.run(runCtx, p)
		if err != nil {
			span.SetError(err)
		}
		c.apply(token, snap, err)
	}()

	return token
}

func (c *Coordinator) apply(token uint64, snap *Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latest := c.seq.Load(); token != latest {
		c.logger.Debug("discarding stale analysis result",
			"token", token,
			"latest", latest,
		)
		return
	}

	if err != nil {
		// The previous accepted snapshot stays on screen; only the error
		// state changes.
		c.logger.Warn("analysis request failed", "token", token, "error", err)
		c.lastErr = err
		return
	}

	c.current = snap
	c.lastErr = nil
}

// Current returns the most recently accepted snapshot, if any.
func (c *Coordinator) Current() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

// Err reports the failure of the latest settled request, nil after a
// success.
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Latest returns the most recently issued token.
func (c *Coordinator) Latest() uint64 {
	return c.seq.Load()
}

// Wait blocks until every issued request has settled. Shutdown and tests
// use it to drain in-flight work.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}
