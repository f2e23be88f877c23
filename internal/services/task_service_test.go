package services

import (
	"context"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/taskdock/internal/models"
)

func shipV1(assigneeID string) models.TaskInput {
	return models.TaskInput{
		Title:        "Ship v1",
		Description:  ptr("first release"),
		Priority:     string(models.PriorityHigh),
		Status:       string(models.StatusPending),
		AssignedToID: ptr(assigneeID),
	}
}

func TestTaskService_CreateWithAssigneeNotifiesBothRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")

	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)

	assert.Equal(t, a.ID, task.CreatedByID)
	assert.Equal(t, b.ID, task.AssigneeID())
	assert.Equal(t, []models.EventType{models.EventTaskCreated}, f.publisher.To(a.ID))
	assert.Equal(t, []models.EventType{models.EventTaskCreated, models.EventTaskAssigned}, f.publisher.To(b.ID))
}

func TestTaskService_CreateThenGetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	due := "2030-01-15"

	created, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{
		Title:       "  Write docs  ",
		Description: ptr("all of them"),
		Priority:    string(models.PriorityLow),
		Status:      string(models.StatusInProgress),
		DueDate:     &due,
	})
	require.NoError(t, err)

	got, err := f.tasks.GetTask(ctx, a.ID, created.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
	assert.Equal(t, "  Write docs  ", got.Title)
	assert.Equal(t, "all of them", got.Description)
	assert.Equal(t, models.PriorityLow, got.Priority)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, got.DueDate.String())
	assert.Nil(t, got.AssignedToID)
	assert.Equal(t, []models.EventType{models.EventTaskCreated}, f.publisher.To(a.ID))
}

func TestTaskService_TitleKeptAsSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")

	created, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: " Ship v1 ", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)
	assert.Equal(t, " Ship v1 ", created.Title)

	got, err := f.tasks.GetTask(ctx, a.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, " Ship v1 ", got.Title)

	updated, err := f.tasks.UpdateTask(ctx, a.ID, created.ID, models.TaskPatch{Title: models.Some("\tShip v2")})
	require.NoError(t, err)
	assert.Equal(t, "\tShip v2", updated.Title)

	_, err = f.tasks.UpdateTask(ctx, a.ID, created.ID, models.TaskPatch{Title: models.Some("  ")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title is required", verr.Fields["title"])
}

func TestTaskService_ValidationMessages(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "alice")

	_, err := f.tasks.CreateTask(context.Background(), a.ID, models.TaskInput{
		Title:       strings.Repeat("é", 256),
		Description: ptr(strings.Repeat("d", 5001)),
		Priority:    "CRITICAL",
		Status:      "DONE",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"title":       "title must be at most 255 characters",
		"description": "description must be at most 5000 characters",
		"priority":    "priority must be one of LOW, MEDIUM, HIGH, URGENT",
		"status":      "status must be one of PENDING, IN_PROGRESS, COMPLETED",
	}, verr.Fields)

	_, err = f.tasks.CreateTask(context.Background(), a.ID, models.TaskInput{
		Title:    strings.Repeat("é", 255),
		Priority: "URGENT",
		Status:   "COMPLETED",
	})
	assert.NoError(t, err)
}

func TestTaskService_PatchChecksOnlyPresentFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	task, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)

	updated, err := f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{Status: models.Some("IN_PROGRESS")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "x", updated.Title)

	_, err = f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{Priority: models.Some("low")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"priority"}, slices.Collect(maps.Keys(verr.Fields)))
}

func TestTaskService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "alice")

	tests := []struct {
		name  string
		input models.TaskInput
		field string
	}{
		{
			name:  "blank title",
			input: models.TaskInput{Title: "   ", Priority: "LOW", Status: "PENDING"},
			field: "title",
		},
		{
			name:  "bad priority",
			input: models.TaskInput{Title: "x", Priority: "CRITICAL", Status: "PENDING"},
			field: "priority",
		},
		{
			name:  "missing status",
			input: models.TaskInput{Title: "x", Priority: "LOW"},
			field: "status",
		},
		{
			name:  "bad due date",
			input: models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING", DueDate: ptr("next tuesday")},
			field: "dueDate",
		},
		{
			name:  "unknown assignee",
			input: models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING", AssignedToID: ptr("0190b1b2-0000-7000-8000-000000000000")},
			field: "assignedToId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tasks.CreateTask(context.Background(), a.ID, tt.input)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Empty(t, f.publisher.To(a.ID))
}

func TestTaskService_GetHiddenFromUninvolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	c := f.register(t, "carol")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)

	_, err = f.tasks.GetTask(ctx, c.ID, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.tasks.GetTask(ctx, a.ID, "0190b1b2-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	got, err := f.tasks.GetTask(ctx, b.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestTaskService_AssigneeUpdateIsFiltered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	updated, err := f.tasks.UpdateTask(ctx, b.ID, task.ID, models.TaskPatch{
		Title:  models.Some("x"),
		Status: models.Some(string(models.StatusCompleted)),
	})
	require.NoError(t, err)

	assert.Equal(t, "Ship v1", updated.Title)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	persisted, err := f.tasks.GetTask(ctx, a.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ship v1", persisted.Title)
	assert.Equal(t, models.StatusCompleted, persisted.Status)
}

func TestTaskService_AssigneeUpdateNotifiesCreatorAndAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	updated, err := f.tasks.UpdateTask(ctx, b.ID, task.ID, models.TaskPatch{
		Status:      models.Some(string(models.StatusInProgress)),
		Description: models.Some("ignored"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "first release", updated.Description)
	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(a.ID))
	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(b.ID))
}

func TestTaskService_CreatorUpdatePersistsExactlyRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)

	updated, err := f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{
		Priority: models.Some(string(models.PriorityUrgent)),
		DueDate:  models.Some(ptr("2031-12-31T18:30:00Z")),
	})
	require.NoError(t, err)

	assert.Equal(t, models.PriorityUrgent, updated.Priority)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, "2031-12-31", updated.DueDate.String())
	assert.Equal(t, task.Title, updated.Title)
	assert.Equal(t, task.Description, updated.Description)
	assert.Equal(t, task.Status, updated.Status)
	assert.Equal(t, b.ID, updated.AssigneeID())
	assert.False(t, updated.UpdatedAt.Before(task.UpdatedAt))
}

func TestTaskService_UpdateByUninvolvedIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	c := f.register(t, "carol")
	task, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)
	f.publisher.Reset()

	_, err = f.tasks.UpdateTask(ctx, c.ID, task.ID, models.TaskPatch{Status: models.Some("COMPLETED")})
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Empty(t, f.publisher.To(a.ID))
}

func TestTaskService_UpdateInvalidDateFailsBeforeLookup(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "alice")

	_, err := f.tasks.UpdateTask(context.Background(), a.ID, "missing", models.TaskPatch{
		DueDate: models.Some(ptr("31/12/2031")),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "dueDate")
}

func TestTaskService_OverScopedOnlyUpdateIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	got, err := f.tasks.UpdateTask(ctx, b.ID, task.ID, models.TaskPatch{Title: models.Some("hijack")})
	require.NoError(t, err)

	assert.Equal(t, "Ship v1", got.Title)
	assert.Equal(t, task.UpdatedAt, got.UpdatedAt)
	assert.Empty(t, f.publisher.To(a.ID))
	assert.Empty(t, f.publisher.To(b.ID))
}

func TestTaskService_ReassignViaUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	c := f.register(t, "carol")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	updated, err := f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{AssignedToID: models.Some(ptr(c.ID))})
	require.NoError(t, err)

	assert.Equal(t, c.ID, updated.AssigneeID())
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "carol", updated.AssignedTo.Name)
	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(a.ID))
	assert.Equal(t, []models.EventType{models.EventTaskUpdated, models.EventTaskAssigned}, f.publisher.To(c.ID))
	assert.Empty(t, f.publisher.To(b.ID))
	assert.Subset(t, f.cache.invalidated, []string{a.ID, b.ID, c.ID})
}

func TestTaskService_SameAssigneeStillEmitsUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	_, err = f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{AssignedToID: models.Some(ptr(b.ID))})
	require.NoError(t, err)

	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(b.ID))
}

func TestTaskService_ClearAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)

	updated, err := f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{AssignedToID: models.Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedToID)

	_, err = f.tasks.GetTask(ctx, b.ID, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_SelfAssignedEventsAreDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(a.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	_, err = f.tasks.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{Status: models.Some("COMPLETED")})
	require.NoError(t, err)

	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(a.ID))
}

func TestTaskService_DeleteByAssigneeIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	err = f.tasks.DeleteTask(ctx, b.ID, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	persisted, err := f.tasks.GetTask(ctx, a.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, persisted.Title)
	assert.Equal(t, task.UpdatedAt, persisted.UpdatedAt)
	assert.Empty(t, f.publisher.To(a.ID))
}

func TestTaskService_DeleteNotifiesCreatorAndAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	c := f.register(t, "carol")
	task, err := f.tasks.CreateTask(ctx, a.ID, shipV1(b.ID))
	require.NoError(t, err)
	f.publisher.Reset()

	assert.ErrorIs(t, f.tasks.DeleteTask(ctx, c.ID, task.ID), ErrTaskNotFound)
	require.NoError(t, f.tasks.DeleteTask(ctx, a.ID, task.ID))

	assert.Equal(t, []models.EventType{models.EventTaskDeleted}, f.publisher.To(a.ID))
	assert.Equal(t, []models.EventType{models.EventTaskDeleted}, f.publisher.To(b.ID))
	assert.ErrorIs(t, f.tasks.DeleteTask(ctx, a.ID, task.ID), ErrTaskNotFound)
}

func TestTaskService_ListTasksForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	c := f.register(t, "carol")

	own, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: "own", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)
	assigned, err := f.tasks.CreateTask(ctx, b.ID, shipV1(a.ID))
	require.NoError(t, err)
	_, err = f.tasks.CreateTask(ctx, b.ID, shipV1(c.ID))
	require.NoError(t, err)

	tasks, err := f.tasks.ListTasksForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, assigned.ID, tasks[0].ID)
	assert.Equal(t, own.ID, tasks[1].ID)
	require.NotNil(t, tasks[0].CreatedBy)
	assert.Equal(t, "bob", tasks[0].CreatedBy.Name)

	_, cached, err := f.cache.GetList(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, cached)

	_, err = f.tasks.UpdateTask(ctx, b.ID, assigned.ID, models.TaskPatch{Title: models.Some("renamed")})
	require.NoError(t, err)
	_, cached, err = f.cache.GetList(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, cached)

	tasks, err = f.tasks.ListTasksForUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", tasks[0].Title)
}

func TestTaskService_ReassignTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")
	task, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)
	f.publisher.Reset()

	updated, err := f.tasks.ReassignTask(ctx, task.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, updated.AssigneeID())
	assert.Equal(t, []models.EventType{models.EventTaskAssigned}, f.publisher.To(b.ID))
	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(a.ID))
	f.publisher.Reset()

	cleared, err := f.tasks.ReassignTask(ctx, task.ID, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedToID)
	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(a.ID))
	assert.Equal(t, []models.EventType{models.EventTaskUpdated}, f.publisher.To(b.ID))
	f.publisher.Reset()

	c := f.register(t, "carol")
	_, err = f.tasks.ReassignTask(ctx, task.ID, c.ID)
	require.NoError(t, err)
	_, err = f.tasks.ReassignTask(ctx, task.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.EventType{models.EventTaskAssigned, models.EventTaskUpdated}, f.publisher.To(c.ID))
	assert.Equal(t, []models.EventType{models.EventTaskAssigned}, f.publisher.To(b.ID))

	_, err = f.tasks.ReassignTask(ctx, "0190b1b2-0000-7000-8000-000000000000", b.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_ListLoadedBeforeWriteIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	task, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)

	store := newBlockingListStore(f.store)
	svc := NewTaskService(zerolog.Nop(), store, f.publisher, f.cache)

	done := make(chan []models.Task)
	go func() {
		tasks, err := svc.ListTasksForUser(ctx, a.ID)
		assert.NoError(t, err)
		done <- tasks
	}()
	<-store.loaded

	_, err = svc.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{Status: models.Some("COMPLETED")})
	require.NoError(t, err)

	close(store.release)
	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, models.StatusPending, stale[0].Status)

	_, cached, err := f.cache.GetList(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, cached)

	fresh, err := svc.ListTasksForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, models.StatusCompleted, fresh[0].Status)
}

func TestTaskService_ListAfterWriteDoesNotJoinEarlierLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	task, err := f.tasks.CreateTask(ctx, a.ID, models.TaskInput{Title: "x", Priority: "LOW", Status: "PENDING"})
	require.NoError(t, err)

	store := newBlockingListStore(f.store)
	svc := NewTaskService(zerolog.Nop(), store, f.publisher, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.ListTasksForUser(ctx, a.ID)
		assert.NoError(t, err)
	}()
	<-store.loaded

	_, err = svc.UpdateTask(ctx, a.ID, task.ID, models.TaskPatch{Title: models.Some("renamed")})
	require.NoError(t, err)

	// the first load is still parked; this one must not wait for it
	fresh, err := svc.ListTasksForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "renamed", fresh[0].Title)

	close(store.release)
	<-done
}
