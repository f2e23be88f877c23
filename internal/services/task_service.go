package services

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/adanyl0v/taskdock/internal/authz"
	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
)

var errNoCache = errors.New("no task cache configured")

type taskServiceImpl struct {
	logger    zerolog.Logger
	store     storage.Store
	publisher EventPublisher
	cache     TaskCache
	loads     singleflight.Group

	// gens counts local invalidations per user. Loads are keyed by it so a
	// list request made after a write never joins a load started before it.
	gensMu sync.Mutex
	gens   map[string]uint64
}

// NewTaskService wires the mutation path. cache may be nil.
func NewTaskService(
	logger zerolog.Logger,
	store storage.Store,
	publisher EventPublisher,
	cache TaskCache,
) TaskService {
	return &taskServiceImpl{
		logger:    logger,
		store:     store,
		publisher: publisher,
		cache:     cache,
		gens:      make(map[string]uint64),
	}
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, creatorID string, input models.TaskInput) (*models.Task, error) {
	task, err := validateTaskInput(input)
	if err != nil {
		return nil, err
	}

	if task.AssignedToID != nil {
		err = s.checkAssignee(ctx, *task.AssignedToID)
		if err != nil {
			return nil, err
		}
	}

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}
	task.ID = taskUUID.String()
	task.CreatedByID = creatorID

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", created.ID).
		Msg("created task")

	assigneeID := created.AssigneeID()
	s.invalidate(ctx, creatorID, assigneeID)
	s.publish(ctx, models.EventTaskCreated, created, creatorID, assigneeID)
	if assigneeID != "" {
		s.publish(ctx, models.EventTaskAssigned, created, assigneeID)
	}

	s.logger.Info().
		Str("task_id", created.ID).
		Str("user_id", creatorID).
		Msg("created task")
	return created, nil
}

func (s *taskServiceImpl) ListTasksForUser(ctx context.Context, userID string) ([]models.Task, error) {
	if s.cache != nil {
		list, ok, err := s.cache.GetList(ctx, userID)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("failed to read cached tasks")
		} else if ok {
			s.logger.Debug().
				Str("user_id", userID).
				Int("count", len(list)).
				Msg("tasks served from cache")
			return list, nil
		}
	}

	v, err, _ := s.loads.Do(s.loadKey(userID), func() (any, error) {
		// read before loading so a write that lands during the load
		// makes the fill below a no-op
		gen, genErr := s.cacheGeneration(ctx, userID)

		tasks, err := s.store.FindTasksByCreatorOrAssignee(ctx, userID)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			s.fillCache(ctx, userID, gen, tasks)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares the slice between callers
	shared := v.([]models.Task)
	tasks := make([]models.Task, len(shared))
	for i := range shared {
		tasks[i] = shared[i].Clone()
	}

	s.logger.Info().
		Int("count", len(tasks)).
		Str("user_id", userID).
		Msg("tasks found")
	return tasks, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(task, userID) {
		s.logger.Debug().
			Str("task_id", taskID).
			Str("user_id", userID).
			Msg("task hidden from uninvolved user")
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, actorID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	requested, err := validateTaskPatch(patch)
	if err != nil {
		return nil, err
	}

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	decision, err := authz.AuthorizeUpdate(task, actorID, requested)
	if err != nil {
		s.logger.Debug().
			Str("task_id", taskID).
			Str("user_id", actorID).
			Msg("update from uninvolved user")
		return nil, ErrTaskNotFound
	}
	if len(decision.Dropped) > 0 {
		s.logger.Debug().
			Str("task_id", taskID).
			Str("user_id", actorID).
			Stringer("role", decision.Role).
			Strs("dropped", decision.Dropped).
			Msg("dropped fields outside role")
	}

	allowed := decision.Allowed
	if allowed.IsEmpty() {
		return task, nil
	}

	if newAssignee, ok := allowed.AssignedToID.Get(); ok && newAssignee != nil {
		err = s.checkAssignee(ctx, *newAssignee)
		if err != nil {
			return nil, err
		}
	}

	oldAssigneeID := task.AssigneeID()
	updated, err := s.store.UpdateTask(ctx, taskID, allowed)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	newAssigneeID := updated.AssigneeID()
	s.invalidate(ctx, updated.CreatedByID, oldAssigneeID, newAssigneeID)
	s.publish(ctx, models.EventTaskUpdated, updated, updated.CreatedByID, newAssigneeID)
	if allowed.AssignedToID.Set && newAssigneeID != "" && newAssigneeID != oldAssigneeID {
		s.publish(ctx, models.EventTaskAssigned, updated, newAssigneeID)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("user_id", actorID).
		Strs("fields", allowed.Names()).
		Msg("updated task")
	return updated, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, actorID, taskID string) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	err = authz.AuthorizeDelete(task, actorID)
	switch {
	case errors.Is(err, authz.ErrNotInvolved):
		return ErrTaskNotFound
	case errors.Is(err, authz.ErrNotCreator):
		s.logger.Debug().
			Str("task_id", taskID).
			Str("user_id", actorID).
			Msg("assignee tried to delete task")
		return ErrForbidden
	}

	err = s.store.DeleteTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	assigneeID := task.AssigneeID()
	s.invalidate(ctx, task.CreatedByID, assigneeID)
	s.publish(ctx, models.EventTaskDeleted, task, task.CreatedByID, assigneeID)

	s.logger.Info().
		Str("task_id", taskID).
		Str("user_id", actorID).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) ReassignTask(ctx context.Context, taskID, assigneeID string) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var next *string
	if assigneeID != "" {
		err = s.checkAssignee(ctx, assigneeID)
		if err != nil {
			return nil, err
		}
		next = &assigneeID
	}

	oldAssigneeID := task.AssigneeID()
	updated, err := s.store.UpdateTask(ctx, taskID, models.UpdateFields{
		AssignedToID: models.Some(next),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, updated.CreatedByID, oldAssigneeID, assigneeID)
	// the creator and the previous assignee hear about every change,
	// including a clear; a new assignee gets task:assigned instead
	s.publish(ctx, models.EventTaskUpdated, updated, updated.CreatedByID, oldAssigneeID)
	if assigneeID != "" && assigneeID != oldAssigneeID {
		s.publish(ctx, models.EventTaskAssigned, updated, assigneeID)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("assignee_id", assigneeID).
		Msg("reassigned task")
	return updated, nil
}

func (s *taskServiceImpl) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.store.FindTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *taskServiceImpl) checkAssignee(ctx context.Context, userID string) error {
	_, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &ValidationError{Fields: map[string]string{
				"assignedToId": "assignee does not exist",
			}}
		}
		return err
	}
	return nil
}

func (s *taskServiceImpl) loadKey(userID string) string {
	s.gensMu.Lock()
	defer s.gensMu.Unlock()
	return userID + "@" + strconv.FormatUint(s.gens[userID], 10)
}

// cacheGeneration fails when there is nothing to fill.
func (s *taskServiceImpl) cacheGeneration(ctx context.Context, userID string) (int64, error) {
	if s.cache == nil {
		return 0, errNoCache
	}
	gen, err := s.cache.Generation(ctx, userID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Msg("failed to read cache generation")
	}
	return gen, err
}

func (s *taskServiceImpl) fillCache(ctx context.Context, userID string, gen int64, tasks []models.Task) {
	stored, err := s.cache.SetList(ctx, userID, gen, tasks)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Msg("failed to cache tasks")
		return
	}
	if !stored {
		s.logger.Debug().
			Str("user_id", userID).
			Msg("skipped caching tasks invalidated during load")
	}
}

func (s *taskServiceImpl) invalidate(ctx context.Context, userIDs ...string) {
	s.gensMu.Lock()
	for _, id := range userIDs {
		if id != "" {
			s.gens[id]++
		}
	}
	s.gensMu.Unlock()

	if s.cache == nil {
		return
	}
	err := s.cache.Invalidate(ctx, userIDs...)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Strs("user_ids", userIDs).
			Msg("failed to invalidate cached tasks")
	}
}

// publish sends one event per distinct recipient. Empty ids are skipped.
func (s *taskServiceImpl) publish(ctx context.Context, typ models.EventType, task *models.Task, recipients ...string) {
	if s.publisher == nil {
		return
	}
	evt := models.TaskEvent{Type: typ, Task: task.Clone()}

	seen := make(map[string]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		s.publisher.Publish(ctx, userID, evt)
	}
}
