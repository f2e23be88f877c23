package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/taskdock/internal/models"
)

// requires Redis on localhost:6379
const testRedisAddr = "localhost:6379"

func setupTestCache(t *testing.T) *TaskCache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewTaskCache(client, time.Minute)
}

func TestTaskCache_Miss(t *testing.T) {
	c := setupTestCache(t)

	list, ok, err := c.GetList(context.Background(), "user-missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, list)
}

func TestTaskCache_SetGetInvalidate(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	due := models.NewDate(2031, 3, 4)

	tasks := []models.Task{{
		ID:          "task-1",
		Title:       "Cache me",
		Priority:    models.PriorityLow,
		Status:      models.StatusPending,
		DueDate:     &due,
		CreatedByID: "user-a",
	}}
	userA, userB := uniqueUser(t, "user-a"), uniqueUser(t, "user-b")
	genA, err := c.Generation(ctx, userA)
	require.NoError(t, err)
	genB, err := c.Generation(ctx, userB)
	require.NoError(t, err)

	stored, err := c.SetList(ctx, userA, genA, tasks)
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = c.SetList(ctx, userB, genB, []models.Task{})
	require.NoError(t, err)
	assert.True(t, stored)

	got, ok, err := c.GetList(ctx, userA)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Cache me", got[0].Title)
	assert.Equal(t, "2031-03-04", got[0].DueDate.String())

	empty, ok, err := c.GetList(ctx, userB)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty)

	require.NoError(t, c.Invalidate(ctx, userA, "", userB))
	_, ok, err = c.GetList(ctx, userA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskCache_StaleFillIsRejected(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	user := uniqueUser(t, "user-stale")

	gen, err := c.Generation(ctx, user)
	require.NoError(t, err)

	// a write lands between the load and the fill
	require.NoError(t, c.Invalidate(ctx, user))

	stale := []models.Task{{ID: "task-1", Title: "Old", Status: models.StatusPending}}
	stored, err := c.SetList(ctx, user, gen, stale)
	require.NoError(t, err)
	assert.False(t, stored)

	_, ok, err := c.GetList(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	next, err := c.Generation(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	stored, err = c.SetList(ctx, user, next, stale)
	require.NoError(t, err)
	assert.True(t, stored)
}

// uniqueUser keeps runs against a shared Redis from seeing each other's keys.
func uniqueUser(t *testing.T, prefix string) string {
	t.Helper()

	id := prefix + "-" + uuid.NewString()
	t.Cleanup(func() {
		client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
		defer client.Close()
		_ = client.Del(context.Background(), keyUserTasks+id, keyUserGen+id).Err()
	})
	return id
}
