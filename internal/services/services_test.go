package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
	"github.com/adanyl0v/taskdock/internal/storage/sqlite"
)

var testHashParams = &argon2id.Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type delivery struct {
	UserID string
	Event  models.TaskEvent
}

type recordingPublisher struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (p *recordingPublisher) Publish(_ context.Context, userID string, evt models.TaskEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, delivery{UserID: userID, Event: evt})
}

// To returns the event types delivered to userID, in order.
func (p *recordingPublisher) To(userID string) []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	var types []models.EventType
	for _, d := range p.deliveries {
		if d.UserID == userID {
			types = append(types, d.Event.Type)
		}
	}
	return types
}

func (p *recordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = nil
}

type memoryCache struct {
	mu          sync.Mutex
	lists       map[string][]models.Task
	gens        map[string]int64
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		lists: make(map[string][]models.Task),
		gens:  make(map[string]int64),
	}
}

func (c *memoryCache) GetList(_ context.Context, userID string) ([]models.Task, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.lists[userID]
	return list, ok, nil
}

func (c *memoryCache) Generation(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID], nil
}

func (c *memoryCache) SetList(_ context.Context, userID string, gen int64, list []models.Task) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false, nil
	}
	c.lists[userID] = list
	return true, nil
}

func (c *memoryCache) Invalidate(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		c.gens[id]++
		delete(c.lists, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

// blockingListStore holds the first task list load after it has read from
// the database, until release is closed.
type blockingListStore struct {
	storage.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newBlockingListStore(inner storage.Store) *blockingListStore {
	return &blockingListStore{
		Store:   inner,
		loaded:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingListStore) FindTasksByCreatorOrAssignee(ctx context.Context, userID string) ([]models.Task, error) {
	tasks, err := s.Store.FindTasksByCreatorOrAssignee(ctx, userID)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return tasks, err
}

type fixture struct {
	store     *sqlite.Store
	publisher *recordingPublisher
	cache     *memoryCache
	tasks     TaskService
	auth      AuthService
	users     UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(zerolog.Nop(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	f := &fixture{
		store:     store,
		publisher: &recordingPublisher{},
		cache:     newMemoryCache(),
	}
	f.tasks = NewTaskService(zerolog.Nop(), store, f.publisher, f.cache)
	f.auth = NewAuthService(zerolog.Nop(), store, testHashParams, "taskdock-test", []byte("secret"), time.Hour)
	f.users = NewUserService(zerolog.Nop(), store)
	return f
}

func (f *fixture) register(t *testing.T, name string) *models.User {
	t.Helper()

	res, err := f.auth.Register(context.Background(), RegisterParams{
		Name:     name,
		Email:    name + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return res.User
}

func ptr[T any](v T) *T {
	return &v
}
