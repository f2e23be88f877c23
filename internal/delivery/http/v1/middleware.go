package v1

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/services"
)

const (
	userIDCtxKey = "user_id"
	userCtxKey   = "user"

	adminTokenHeader = "X-Admin-Token"
	streamTokenQuery = "token"
)

func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	h.authenticate(c, bearerToken(c))
}

// HandleStreamAuthMiddleware also accepts the token as a query parameter,
// since browsers cannot set headers on a WebSocket handshake.
func (h *handlerImpl) HandleStreamAuthMiddleware(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		token = c.Query(streamTokenQuery)
	}
	h.authenticate(c, token)
}

func (h *handlerImpl) authenticate(c *gin.Context, token string) {
	if token == "" {
		h.logger.Debug().Msg("access token required")
		abort(c, newUnauthorizedError(errUnauthorized.Error()))
		return
	}

	claims, err := h.auth.ParseJWTToken(token)
	if err != nil {
		h.logger.Debug().
			Err(err).
			Msg("failed to parse token")
		abort(c, newUnauthorizedError(errUnauthorized.Error()))
		return
	}

	user, err := h.users.GetUserByID(c, claims.Subject)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			h.logger.Warn().
				Str("user_id", claims.Subject).
				Msg("token subject no longer exists")
			abort(c, newUnauthorizedError(errUnauthorized.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Msg("failed to fetch user")
		abortWithServiceError(c, err)
		return
	}

	c.Set(userIDCtxKey, user.ID)
	c.Set(userCtxKey, user)
	c.Next()
}

func (h *handlerImpl) HandleAdminMiddleware(c *gin.Context) {
	expected := h.opts.AdminToken
	given := c.GetHeader(adminTokenHeader)
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		abort(c, newUnauthorizedError(errUnauthorized.Error()))
		return
	}
	c.Next()
}

// bearerToken reads the Authorization header first and falls back to the
// access token cookie.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const bearerPrefix = "Bearer"
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], bearerPrefix) {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	token, err := c.Cookie(accessTokenCookie)
	if err != nil {
		return ""
	}
	return token
}

func getStringFromContext(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

func getUserFromContext(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(userCtxKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
