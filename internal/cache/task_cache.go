package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adanyl0v/taskdock/internal/models"
)

const (
	keyUserTasks = "taskdock:tasks:user:"
	keyUserGen   = "taskdock:tasks:gen:"
)

// setIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1].
// A missing generation counts as 0.
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// TaskCache keeps each user's visible task list in Redis. Writers drop the
// lists of every involved user instead of patching them, and bump a
// per-user generation so that a load started before the write cannot
// store its result afterwards.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// GetList returns the cached list and whether it was present.
func (c *TaskCache) GetList(ctx context.Context, userID string) ([]models.Task, bool, error) {
	b, err := c.rdb.Get(ctx, keyUserTasks+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var list []models.Task
	if err = json.Unmarshal(b, &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// Generation returns how many times the user's list has been invalidated.
func (c *TaskCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, keyUserGen+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetList stores list only if the user's generation is still gen, and
// reports whether it was stored.
func (c *TaskCache) SetList(ctx context.Context, userID string, gen int64, list []models.Task) (bool, error) {
	b, err := json.Marshal(list)
	if err != nil {
		return false, err
	}

	stored, err := setIfGeneration.Run(ctx, c.rdb,
		[]string{keyUserGen + userID, keyUserTasks + userID},
		gen, b, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate removes the lists of the given users and advances their
// generations. Empty ids are skipped.
func (c *TaskCache) Invalidate(ctx context.Context, userIDs ...string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			if id == "" {
				continue
			}
			pipe.Incr(ctx, keyUserGen+id)
			pipe.Del(ctx, keyUserTasks+id)
		}
		return nil
	})
	return err
}
