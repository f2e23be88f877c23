package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
)

type Store struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func New(logger zerolog.Logger, pgPool *pgxpool.Pool) *Store {
	return &Store{
		logger: logger,
		pgPool: pgPool,
	}
}

const selectTaskColumns = `
SELECT t.id,
       t.title,
       t.description,
       t.priority,
       t.status,
       t.due_date,
       t.created_by_id,
       t.assigned_to_id,
       t.created_at,
       t.updated_at,
       c.name,
       c.email,
       a.name,
       a.email
`

const joinTaskUsers = `
JOIN users c ON c.id = t.created_by_id
LEFT JOIN users a ON a.id = t.assigned_to_id
`

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const selectUserByEmailQuery = `
SELECT id,
       name,
       email,
       password,
       created_at,
       updated_at
FROM users
WHERE email = $1
`
	user, err := scanUser(s.pgPool.QueryRow(ctx, selectUserByEmailQuery, email))
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().
				Err(err).
				Str("email", email).
				Msg("failed to select user by email")
		}
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", user.ID).
		Msg("selected user by email")
	return user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	const selectUserByIDQuery = `
SELECT id,
       name,
       email,
       password,
       created_at,
       updated_at
FROM users
WHERE id = $1
`
	user, err := scanUser(s.pgPool.QueryRow(ctx, selectUserByIDQuery, id))
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().
				Err(err).
				Str("user_id", id).
				Msg("failed to select user by id")
		}
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", user.ID).
		Msg("selected user by id")
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const insertUserQuery = `
INSERT INTO users (id,
                   name,
                   email,
                   password)
VALUES ($1, $2, $3, $4)
RETURNING id, name, email, password, created_at, updated_at
`
	created, err := scanUser(s.pgPool.QueryRow(
		ctx,
		insertUserQuery,
		user.ID,
		user.Name,
		user.Email,
		user.Password,
	))
	if err != nil {
		err = translateError(err)
		s.logger.Error().
			Err(err).
			Str("email", user.Email).
			Msg("failed to insert user")
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", created.ID).
		Msg("inserted user")
	return created, nil
}

func (s *Store) SearchUsersByName(ctx context.Context, query string, limit int) ([]models.UserSummary, error) {
	const searchUsersQuery = `
SELECT id,
       name
FROM users
WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
ORDER BY name, id
LIMIT $2
`
	rows, err := s.pgPool.Query(ctx, searchUsersQuery, escapeLike(query), limit)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to search users")
		return nil, err
	}
	defer rows.Close()

	users := make([]models.UserSummary, 0, limit)
	for rows.Next() {
		var u models.UserSummary
		err = rows.Scan(&u.ID, &u.Name)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan user")
			return nil, err
		}
		users = append(users, u)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(users)).
		Msg("searched users")
	return users, nil
}

func (s *Store) FindTaskByID(ctx context.Context, id string) (*models.Task, error) {
	query := selectTaskColumns + `FROM tasks t` + joinTaskUsers + `WHERE t.id = $1`

	task, err := scanTask(s.pgPool.QueryRow(ctx, query, id))
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().
				Err(err).
				Str("task_id", id).
				Msg("failed to select task by id")
		}
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", task.ID).
		Msg("selected task by id")
	return task, nil
}

func (s *Store) FindTasksByCreatorOrAssignee(ctx context.Context, userID string) ([]models.Task, error) {
	query := selectTaskColumns + `FROM tasks t` + joinTaskUsers + `
WHERE t.created_by_id = $1 OR t.assigned_to_id = $1
ORDER BY t.created_at DESC, t.id DESC
`
	rows, err := s.pgPool.Query(ctx, query, userID)
	if err != nil {
		err = translateError(err)
		if errors.Is(err, storage.ErrNotFound) {
			return []models.Task{}, nil
		}
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select tasks by user id")
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Str("user_id", userID).
		Msg("selected tasks by user id")
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `
WITH t AS (
    INSERT INTO tasks (id,
                       title,
                       description,
                       priority,
                       status,
                       due_date,
                       created_by_id,
                       assigned_to_id)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING *
)` + selectTaskColumns + `FROM t` + joinTaskUsers

	created, err := scanTask(s.pgPool.QueryRow(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Priority),
		string(task.Status),
		dueDateArg(task.DueDate),
		task.CreatedByID,
		task.AssignedToID,
	))
	if err != nil {
		err = translateError(err)
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("failed to insert task")
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", created.ID).
		Msg("inserted task")
	return created, nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, fields models.UpdateFields) (*models.Task, error) {
	args := []any{id}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if v, ok := fields.Title.Get(); ok {
		set("title", v)
	}
	if v, ok := fields.Description.Get(); ok {
		set("description", v)
	}
	if v, ok := fields.Priority.Get(); ok {
		set("priority", string(v))
	}
	if v, ok := fields.Status.Get(); ok {
		set("status", string(v))
	}
	if v, ok := fields.DueDate.Get(); ok {
		set("due_date", dueDateArg(v))
	}
	if v, ok := fields.AssignedToID.Get(); ok {
		set("assigned_to_id", v)
	}
	sets = append(sets, "updated_at = GREATEST(now(), tasks.updated_at)")

	query := `
WITH t AS (
    UPDATE tasks
    SET ` + strings.Join(sets, ",\n        ") + `
    WHERE id = $1
    RETURNING *
)` + selectTaskColumns + `FROM t` + joinTaskUsers

	updated, err := scanTask(s.pgPool.QueryRow(ctx, query, args...))
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().
				Err(err).
				Str("task_id", id).
				Msg("failed to update task")
		}
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", updated.ID).
		Strs("fields", fields.Names()).
		Msg("updated task")
	return updated, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1
`
	tag, err := s.pgPool.Exec(ctx, deleteTaskQuery, id)
	if err != nil {
		err = translateError(err)
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to delete task")
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	s.logger.Debug().
		Str("task_id", id).
		Msg("deleted task")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pgPool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pgPool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Password,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t             models.Task
		priority      string
		status        string
		dueDate       *time.Time
		creatorName   string
		creatorEmail  string
		assigneeName  *string
		assigneeEmail *string
	)
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&priority,
		&status,
		&dueDate,
		&t.CreatedByID,
		&t.AssignedToID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&creatorName,
		&creatorEmail,
		&assigneeName,
		&assigneeEmail,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = models.Priority(priority)
	t.Status = models.Status(status)
	if dueDate != nil {
		d := models.DateOf(dueDate.UTC())
		t.DueDate = &d
	}
	t.CreatedBy = &models.UserSummary{
		ID:    t.CreatedByID,
		Name:  creatorName,
		Email: creatorEmail,
	}
	if t.AssignedToID != nil && assigneeName != nil {
		t.AssignedTo = &models.UserSummary{
			ID:    *t.AssignedToID,
			Name:  *assigneeName,
			Email: derefString(assigneeEmail),
		}
	}
	return &t, nil
}

func dueDateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.Time()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// translateError maps driver errors onto the storage sentinels. A
// malformed uuid can never match a row, so it is reported as not found.
func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.InvalidTextRepresentation:
			return storage.ErrNotFound
		case pgerrcode.UniqueViolation, pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
