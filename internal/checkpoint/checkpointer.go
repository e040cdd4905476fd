// internal/checkpoint/checkpointer.go
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

// Checkpointer combines the durable store with the state cache. A durable
// write that fails after all retries is fatal for the run; cache writes are
// best-effort.
type Checkpointer struct {
	store      Store
	cache      *StateCache
	maxRetries int
	interval   time.Duration
	logger     logger.Logger

	mu       sync.Mutex
	seqByRun map[string]int
}

func NewCheckpointer(store Store, cache *StateCache, maxRetries int, interval time.Duration, log logger.Logger) *Checkpointer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Checkpointer{
		store:      store,
		cache:      cache,
		maxRetries: maxRetries,
		interval:   interval,
		logger:     log.With(map[string]interface{}{"component": "checkpointer"}),
		seqByRun:   make(map[string]int),
	}
}

// Save appends a checkpoint for the given state and refreshes the cache.
// The returned error, if any, means the run must end in audit failure.
func (c *Checkpointer) Save(ctx context.Context, state *models.WorkflowState) (*models.CheckpointRecord, error) {
	c.mu.Lock()
	c.seqByRun[state.RunID]++
	seq := c.seqByRun[state.RunID]
	c.mu.Unlock()

	rec := &models.CheckpointRecord{
		RunID:     state.RunID,
		Seq:       seq,
		Stage:     state.Stage,
		State:     *state,
		CreatedAt: time.Now().UTC(),
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.store.Append(ctx, rec)
		if lastErr == nil {
			break
		}
		c.logger.Warn("checkpoint write failed, retrying", map[string]interface{}{
			"runId":   state.RunID,
			"seq":     rec.Seq,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		select {
		case <-time.After(c.interval):
		case <-ctx.Done():
			return nil, errors.NewCheckpointWriteFailedError(state.RunID, ctx.Err())
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, state); err != nil {
			c.logger.Warn("state cache update failed", map[string]interface{}{
				"runId": state.RunID,
				"error": err.Error(),
			})
		}
	}

	return rec, nil
}

// Load returns the latest known state for a run, preferring the cache and
// falling back to the durable store.
func (c *Checkpointer) Load(ctx context.Context, runID string) (*models.WorkflowState, error) {
	if c.cache != nil {
		if state, err := c.cache.Get(ctx, runID); err == nil && state != nil {
			return state, nil
		}
	}

	rec, err := c.store.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if rec.Seq > c.seqByRun[runID] {
		c.seqByRun[runID] = rec.Seq
	}
	c.mu.Unlock()

	state := rec.State
	return &state, nil
}

// History returns every checkpoint taken for a run in order.
func (c *Checkpointer) History(ctx context.Context, runID string) ([]models.CheckpointRecord, error) {
	return c.store.History(ctx, runID)
}
