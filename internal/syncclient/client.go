package syncclient

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
)

const defaultRefreshTimeout = 10 * time.Second

// TaskAPI is the subset of the REST client the cache needs.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
}

type Option func(*Client)

// WithErrorHandler receives every failed mutation after it was rolled back
// and every failed background refresh.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// WithChangeHandler is called with a fresh copy of the cache after every
// change. It runs with the cache unlocked.
func WithChangeHandler(fn func([]models.Task)) Option {
	return func(c *Client) {
		c.onChange = fn
	}
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

// Client keeps one consistent view of the caller's tasks, fed by its own
// optimistic mutations and by inbound events.
type Client struct {
	logger         zerolog.Logger
	api            TaskAPI
	refreshTimeout time.Duration
	onError        func(error)
	onChange       func([]models.Task)

	mu      sync.Mutex
	reducer *Reducer

	refreshMu      sync.Mutex
	refreshing     bool
	refreshPending bool
	refreshes      sync.WaitGroup
}

func NewClient(logger zerolog.Logger, api TaskAPI, userID string, opts ...Option) *Client {
	c := &Client{
		logger:         logger,
		api:            api,
		refreshTimeout: defaultRefreshTimeout,
		reducer:        NewReducer(userID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Tasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reducer.Tasks()
}

func (c *Client) Task(id string) (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reducer.Task(id)
}

// Refresh fetches the full list and rebases pending mutations onto it.
func (c *Client) Refresh(ctx context.Context) error {
	tasks, err := c.api.ListTasks(ctx)
	if err != nil {
		c.logger.Error().
			Err(err).
			Msg("failed to refresh tasks")
		return err
	}
	c.update(func(r *Reducer) {
		r.Refreshed(tasks)
	})

	c.logger.Debug().
		Int("count", len(tasks)).
		Msg("refreshed tasks")
	return nil
}

// ScheduleRefresh runs a refresh in the background. Calls made while a
// refresh is in flight collapse into a single follow-up refresh.
func (c *Client) ScheduleRefresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.refreshing {
		c.refreshPending = true
		return
	}
	c.refreshing = true
	c.refreshes.Add(1)

	go func() {
		defer c.refreshes.Done()
		for {
			ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
			err := c.Refresh(ctx)
			cancel()
			if err != nil {
				c.notifyError(err)
			}

			c.refreshMu.Lock()
			if !c.refreshPending {
				c.refreshing = false
				c.refreshMu.Unlock()
				return
			}
			c.refreshPending = false
			c.refreshMu.Unlock()
		}
	}()
}

// Wait blocks until background refreshes have finished.
func (c *Client) Wait() {
	c.refreshes.Wait()
}

func (c *Client) CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	var m *Mutation
	c.update(func(r *Reducer) {
		m = r.BeginCreate(input)
	})

	task, err := c.api.CreateTask(ctx, input)
	c.settle(m, task, err)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("task_id", task.ID).
		Str("provisional_id", m.TaskID).
		Msg("created task")
	return task, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, patch models.TaskPatch) (*models.Task, error) {
	var m *Mutation
	c.update(func(r *Reducer) {
		m = r.BeginUpdate(taskID, patch)
	})

	task, err := c.api.UpdateTask(ctx, taskID, patch)
	c.settle(m, task, err)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("task_id", taskID).
		Msg("updated task")
	return task, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	var m *Mutation
	c.update(func(r *Reducer) {
		m = r.BeginDelete(taskID)
	})

	err := c.api.DeleteTask(ctx, taskID)
	c.settle(m, nil, err)
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("task_id", taskID).
		Msg("deleted task")
	return nil
}

// HandleEvent merges one inbound event. It never blocks on I/O.
func (c *Client) HandleEvent(evt models.TaskEvent) {
	if !evt.Type.IsValid() {
		return
	}
	c.update(func(r *Reducer) {
		r.EventReceived(evt)
	})

	c.logger.Debug().
		Str("type", string(evt.Type)).
		Str("task_id", evt.Task.ID).
		Msg("merged event")
}

func (c *Client) settle(m *Mutation, task *models.Task, err error) {
	c.update(func(r *Reducer) {
		if err != nil {
			r.Fail(m, err)
			return
		}
		r.Confirm(m, task)
	})
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("kind", m.Kind.String()).
			Str("task_id", m.TaskID).
			Msg("mutation rolled back")
		c.notifyError(err)
	}
	c.ScheduleRefresh()
}

func (c *Client) update(fn func(r *Reducer)) {
	c.mu.Lock()
	fn(c.reducer)
	var snapshot []models.Task
	if c.onChange != nil {
		snapshot = c.reducer.Tasks()
	}
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(snapshot)
	}
}

func (c *Client) notifyError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}
