// Package sqlite is a single-file store for development and tests. It keeps
// the same contract as the postgres store.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
)

const MemoryPath = ":memory:"

type Store struct {
	logger zerolog.Logger
	db     *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and migrates the schema.
func Open(logger zerolog.Logger, path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and serializes
	// writers, which sqlite requires anyway.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&userEntity{}, &taskEntity{})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	logger.Debug().
		Str("path", path).
		Msg("opened sqlite database")
	return &Store{
		logger: logger,
		db:     db,
	}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var e userEntity
	err := s.db.WithContext(ctx).First(&e, "email = ?", email).Error
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
		Str("user_id", e.ID).
		Msg("selected user by email")
	return e.toModel(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var e userEntity
	err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error
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
		Str("user_id", e.ID).
		Msg("selected user by id")
	return e.toModel(), nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	e := userEntity{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Password: user.Password,
	}
	err := s.db.WithContext(ctx).Create(&e).Error
	if err != nil {
		err = translateError(err)
		s.logger.Error().
			Err(err).
			Str("email", user.Email).
			Msg("failed to insert user")
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", e.ID).
		Msg("inserted user")
	return e.toModel(), nil
}

func (s *Store) SearchUsersByName(ctx context.Context, query string, limit int) ([]models.UserSummary, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var entities []userEntity
	err := s.db.WithContext(ctx).
		Where(`lower(name) LIKE ? ESCAPE '\'`, pattern).
		Order("name, id").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to search users")
		return nil, err
	}

	users := make([]models.UserSummary, 0, len(entities))
	for _, e := range entities {
		users = append(users, models.UserSummary{ID: e.ID, Name: e.Name})
	}
	s.logger.Debug().
		Int("count", len(users)).
		Msg("searched users")
	return users, nil
}

func (s *Store) FindTaskByID(ctx context.Context, id string) (*models.Task, error) {
	e, err := s.findTask(s.db.WithContext(ctx), id)
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
		Str("task_id", e.ID).
		Msg("selected task by id")
	return e.toModel(), nil
}

func (s *Store) FindTasksByCreatorOrAssignee(ctx context.Context, userID string) ([]models.Task, error) {
	var entities []taskEntity
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("AssignedTo").
		Where("created_by_id = ? OR assigned_to_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&entities).Error
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select tasks by user id")
		return nil, err
	}

	tasks := make([]models.Task, 0, len(entities))
	for i := range entities {
		tasks = append(tasks, *entities[i].toModel())
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Str("user_id", userID).
		Msg("selected tasks by user id")
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	e := newTaskEntity(task)

	var created *taskEntity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit("CreatedBy", "AssignedTo").Create(e).Error
		if err != nil {
			return err
		}
		created, err = s.findTask(tx, e.ID)
		return err
	})
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
	return created.toModel(), nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, fields models.UpdateFields) (*models.Task, error) {
	values := map[string]any{}
	if v, ok := fields.Title.Get(); ok {
		values["title"] = v
	}
	if v, ok := fields.Description.Get(); ok {
		values["description"] = v
	}
	if v, ok := fields.Priority.Get(); ok {
		values["priority"] = string(v)
	}
	if v, ok := fields.Status.Get(); ok {
		values["status"] = string(v)
	}
	if v, ok := fields.DueDate.Get(); ok {
		if v == nil {
			values["due_date"] = nil
		} else {
			values["due_date"] = v.Time()
		}
	}
	if v, ok := fields.AssignedToID.Get(); ok {
		values["assigned_to_id"] = v
	}

	var updated *taskEntity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current taskEntity
		err := tx.Select("updated_at").First(&current, "id = ?", id).Error
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if now.Before(current.UpdatedAt) {
			now = current.UpdatedAt
		}
		values["updated_at"] = now

		err = tx.Model(&taskEntity{}).Where("id = ?", id).Updates(values).Error
		if err != nil {
			return err
		}
		updated, err = s.findTask(tx, id)
		return err
	})
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
	return updated.toModel(), nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&taskEntity{}, "id = ?", id)
	if err := result.Error; err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to delete task")
		return err
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	s.logger.Debug().
		Str("task_id", id).
		Msg("deleted task")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) findTask(tx *gorm.DB, id string) (*taskEntity, error) {
	var e taskEntity
	err := tx.
		Preload("CreatedBy").
		Preload("AssignedTo").
		First(&e, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	case strings.Contains(err.Error(), "constraint failed"):
		// older drivers leave foreign key failures untranslated
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return err
}
