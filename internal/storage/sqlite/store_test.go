package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(zerolog.Nop(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func newID(t *testing.T) string {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

func createUser(t *testing.T, s *Store, name string) *models.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), &models.User{
		ID:       newID(t),
		Name:     name,
		Email:    name + "@example.com",
		Password: "hash",
	})
	require.NoError(t, err)
	return u
}

func createTask(t *testing.T, s *Store, creator *models.User, assignee *models.User) *models.Task {
	t.Helper()

	task := &models.Task{
		ID:          newID(t),
		Title:       "Write report",
		Priority:    models.PriorityMedium,
		Status:      models.StatusPending,
		CreatedByID: creator.ID,
	}
	if assignee != nil {
		task.AssignedToID = &assignee.ID
	}
	created, err := s.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return created
}

func TestStore_CreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	_, err := s.CreateUser(ctx, &models.User{
		ID:       newID(t),
		Name:     "other",
		Email:    alice.Email,
		Password: "hash",
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestStore_FindUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	byEmail, err := s.FindUserByEmail(ctx, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byID, err := s.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Name)

	_, err = s.FindUserByID(ctx, newID(t))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SearchUsersByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "Alice")
	createUser(t, s, "alicia")
	createUser(t, s, "bob")

	users, err := s.SearchUsersByName(ctx, "ALI", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "alicia", users[1].Name)

	users, err = s.SearchUsersByName(ctx, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = s.SearchUsersByName(ctx, "li", 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestStore_CreateTaskJoinsUsers(t *testing.T) {
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	task := createTask(t, s, alice, bob)

	require.NotNil(t, task.CreatedBy)
	assert.Equal(t, "alice", task.CreatedBy.Name)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, "bob", task.AssignedTo.Name)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
}

func TestStore_CreateTaskUnknownAssignee(t *testing.T) {
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	ghost := newID(t)

	_, err := s.CreateTask(context.Background(), &models.Task{
		ID:           newID(t),
		Title:        "x",
		Priority:     models.PriorityLow,
		Status:       models.StatusPending,
		CreatedByID:  alice.ID,
		AssignedToID: &ghost,
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestStore_FindTasksByCreatorOrAssignee(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")

	first := createTask(t, s, alice, nil)
	second := createTask(t, s, bob, alice)
	createTask(t, s, bob, carol)

	tasks, err := s.FindTasksByCreatorOrAssignee(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)

	tasks, err = s.FindTasksByCreatorOrAssignee(ctx, newID(t))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStore_UpdateTaskWritesOnlyPresentFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	task := createTask(t, s, alice, bob)

	due := models.NewDate(2030, 5, 17)
	updated, err := s.UpdateTask(ctx, task.ID, models.UpdateFields{
		Status:  models.Some(models.StatusInProgress),
		DueDate: models.Some(&due),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, task.Title, updated.Title)
	assert.Equal(t, task.Priority, updated.Priority)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, "2030-05-17", updated.DueDate.String())
	assert.False(t, updated.UpdatedAt.Before(task.UpdatedAt))
	assert.Equal(t, bob.ID, updated.AssigneeID())
}

func TestStore_UpdateTaskClearsNullableFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	task := createTask(t, s, alice, bob)

	updated, err := s.UpdateTask(ctx, task.ID, models.UpdateFields{
		AssignedToID: models.Some[*string](nil),
		DueDate:      models.Some[*models.Date](nil),
	})
	require.NoError(t, err)

	assert.Nil(t, updated.AssignedToID)
	assert.Nil(t, updated.AssignedTo)
	assert.Nil(t, updated.DueDate)
}

func TestStore_UpdateMissingTask(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpdateTask(context.Background(), newID(t), models.UpdateFields{
		Title: models.Some("x"),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	task := createTask(t, s, alice, nil)

	require.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err := s.FindTaskByID(ctx, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, task.ID), storage.ErrNotFound)
}
