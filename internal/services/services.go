package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adanyl0v/taskdock/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTaskNotFound       = errors.New("task not found")
	ErrForbidden          = errors.New("action not permitted")
)

type AuthService interface {
	// Register creates a user with the given name, email and password
	// and issues an access token for it.
	//
	// It returns a *ValidationError for malformed input and
	// ErrUserAlreadyExists if the email is taken.
	Register(ctx context.Context, params RegisterParams) (*LoginResult, error)

	// Login authenticates the user by email and password.
	//
	// It returns ErrInvalidCredentials both for an unknown email and
	// for a wrong password.
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)

	// ParseJWTToken parses the given JWT token and returns the registered
	// claims or jwt.ErrTokenExpired if the token is expired.
	ParseJWTToken(token string) (*jwt.RegisteredClaims, error)
}

type UserService interface {
	// GetUserByID returns ErrUserNotFound if there is no such user.
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// SearchUsers matches names case-insensitively. The query must be at
	// least two characters long.
	SearchUsers(ctx context.Context, query string) ([]models.UserSummary, error)
}

// TaskService is the only writer of task state. Every accepted mutation
// publishes the matching events after the write is durable.
type TaskService interface {
	CreateTask(ctx context.Context, creatorID string, input models.TaskInput) (*models.Task, error)

	// ListTasksForUser returns the tasks the user created or is assigned
	// to, newest first.
	ListTasksForUser(ctx context.Context, userID string) ([]models.Task, error)

	// GetTask returns ErrTaskNotFound when the task is absent or when the
	// user is neither its creator nor its assignee.
	GetTask(ctx context.Context, userID, taskID string) (*models.Task, error)

	// UpdateTask applies the subset of patch that the actor's role allows
	// and returns the task as persisted.
	UpdateTask(ctx context.Context, actorID, taskID string, patch models.TaskPatch) (*models.Task, error)

	// DeleteTask returns ErrForbidden when the actor is the assignee.
	DeleteTask(ctx context.Context, actorID, taskID string) error

	// ReassignTask sets the assignee without role checks. An empty
	// assigneeID clears the assignment.
	ReassignTask(ctx context.Context, taskID, assigneeID string) (*models.Task, error)
}

// EventPublisher delivers an event to every live session of a user.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, evt models.TaskEvent)
}

// TaskCache holds per-user task lists. Implementations may lose entries at
// any time. Every Invalidate of a user advances that user's generation, and
// SetList only stores a list loaded under the current one.
type TaskCache interface {
	GetList(ctx context.Context, userID string) ([]models.Task, bool, error)
	Generation(ctx context.Context, userID string) (int64, error)
	SetList(ctx context.Context, userID string, gen int64, list []models.Task) (bool, error)
	Invalidate(ctx context.Context, userIDs ...string) error
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

type LoginParams struct {
	Email    string
	Password string
}

type LoginResult struct {
	User                 *models.User
	AccessToken          string
	AccessTokenExpiresAt time.Time
}
