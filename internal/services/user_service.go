package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
)

type userServiceImpl struct {
	logger zerolog.Logger
	store  storage.Store
}

func NewUserService(logger zerolog.Logger, store storage.Store) UserService {
	return &userServiceImpl{
		logger: logger,
		store:  store,
	}
}

func (s *userServiceImpl) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userServiceImpl) SearchUsers(ctx context.Context, query string) ([]models.UserSummary, error) {
	query, err := validateSearch(query)
	if err != nil {
		return nil, err
	}

	users, err := s.store.SearchUsersByName(ctx, query, SearchLimit)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("query", query).
		Int("count", len(users)).
		Msg("users found")
	return users, nil
}
