package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/storage"
)

type authServiceImpl struct {
	logger            zerolog.Logger
	store             storage.Store
	hashParams        *argon2id.Params
	jwtIssuer         string
	jwtSigningKey     []byte
	jwtAccessTokenTTL time.Duration
}

func NewAuthService(
	logger zerolog.Logger,
	store storage.Store,
	hashParams *argon2id.Params,
	jwtIssuer string,
	jwtSigningKey []byte,
	jwtAccessTokenTTL time.Duration,
) AuthService {
	if hashParams == nil {
		hashParams = argon2id.DefaultParams
	}
	return &authServiceImpl{
		logger:            logger,
		store:             store,
		hashParams:        hashParams,
		jwtIssuer:         jwtIssuer,
		jwtSigningKey:     jwtSigningKey,
		jwtAccessTokenTTL: jwtAccessTokenTTL,
	}
}

func (s *authServiceImpl) Register(ctx context.Context, params RegisterParams) (*LoginResult, error) {
	params, err := validateRegister(params)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:  params.Name,
		Email: params.Email,
	}

	userUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate user uuid")
		return nil, err
	}
	user.ID = userUUID.String()

	passwordHash, err := argon2id.CreateHash(params.Password, s.hashParams)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to hash password")
		return nil, err
	}
	user.Password = passwordHash

	created, err := s.store.CreateUser(ctx, &user)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.logger.Error().
				Str("email", user.Email).
				Msg("user with this email already exists")
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", created.ID).
		Str("email", created.Email).
		Msg("inserted user")

	accessToken, accessTokenExpiresAt, err := s.generateAccessToken(created.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate access token")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", created.ID).
		Msg("registered user")
	return &LoginResult{
		User:                 created,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessTokenExpiresAt,
	}, nil
}

func (s *authServiceImpl) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().
				Str("email", email).
				Msg("user not found")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Msg("selected user")

	match, err := argon2id.ComparePasswordAndHash(params.Password, user.Password)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to compare password")
		return nil, err
	} else if !match {
		s.logger.Error().Msg("passwords do not match")
		return nil, ErrInvalidCredentials
	}

	accessToken, accessTokenExpiresAt, err := s.generateAccessToken(user.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate access token")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Msg("logged in")
	return &LoginResult{
		User:                 user,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessTokenExpiresAt,
	}, nil
}

func (s *authServiceImpl) ParseJWTToken(token string) (*jwt.RegisteredClaims, error) {
	t, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSigningKey, nil
		},
		jwt.WithIssuer(s.jwtIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token is expired: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, errors.New("failed to parse token: missing subject")
	}
	return claims, nil
}

func (s *authServiceImpl) generateAccessToken(userID string) (string, time.Time, error) {
	tokenUUID, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtAccessTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        tokenUUID.String(),
		Issuer:    s.jwtIssuer,
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	})

	signed, err := token.SignedString(s.jwtSigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
