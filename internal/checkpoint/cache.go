// internal/checkpoint/cache.go
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

const stateCacheTTL = 24 * time.Hour

// StateCache keeps the latest workflow state per run in Redis for fast
// lookups. It is best-effort: a cache failure never fails the run.
type StateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *StateCache {
	return &StateCache{client: client}
}

func stateKey(runID string) string {
	return fmt.Sprintf("assessment:state:%s", runID)
}

func (c *StateCache) Put(ctx context.Context, state *models.WorkflowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.NewStateCacheUnavailableError(err)
	}
	if err := c.client.Set(ctx, stateKey(state.RunID), data, stateCacheTTL).Err(); err != nil {
		return errors.NewStateCacheUnavailableError(err)
	}
	return nil
}

func (c *StateCache) Get(ctx context.Context, runID string) (*models.WorkflowState, error) {
	data, err := c.client.Get(ctx, stateKey(runID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStateCacheUnavailableError(err)
	}

	var state models.WorkflowState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, errors.NewStateCacheUnavailableError(err)
	}
	return &state, nil
}

func (c *StateCache) Invalidate(ctx context.Context, runID string) error {
	if err := c.client.Del(ctx, stateKey(runID)).Err(); err != nil {
		return errors.NewStateCacheUnavailableError(err)
	}
	return nil
}
