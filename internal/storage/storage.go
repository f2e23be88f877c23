package storage

import (
	"context"
	"errors"

	"github.com/adanyl0v/taskdock/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict wraps unique and foreign key violations.
	ErrConflict = errors.New("constraint violation")
)

// Store is the durable store behind the task and user services. Every
// method is atomic for the single row it touches, and task reads return
// the creator and assignee summaries joined in.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	SearchUsersByName(ctx context.Context, query string, limit int) ([]models.UserSummary, error)

	FindTaskByID(ctx context.Context, id string) (*models.Task, error)
	// FindTasksByCreatorOrAssignee returns the newest created task first.
	FindTasksByCreatorOrAssignee(ctx context.Context, userID string) ([]models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) (*models.Task, error)
	// UpdateTask writes only the fields present in fields and refreshes
	// updated_at, in a single statement.
	UpdateTask(ctx context.Context, id string, fields models.UpdateFields) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}
