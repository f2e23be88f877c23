package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/services"
)

const accessTokenCookie = "access_token"

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

type authResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlerImpl) HandleRegister(c *gin.Context) {
	var req registerRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}
	h.logger.Info().
		Str("email", req.Email).
		Msg("register request")

	result, err := h.auth.Register(c, services.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if !isClientError(err) {
			h.logger.Error().
				Err(err).
				Msg("failed to register user")
		}
		abortWithServiceError(c, err)
		return
	}

	h.respondWithSession(c, http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email,max=255"`
	Password string `json:"password" form:"password" binding:"required,max=255"`
}

func (h *handlerImpl) HandleLogin(c *gin.Context) {
	var req loginRequest
	err := c.ShouldBind(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	result, err := h.auth.Login(c, services.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if !isClientError(err) {
			h.logger.Error().
				Err(err).
				Msg("failed to login")
		}
		abortWithServiceError(c, err)
		return
	}

	h.respondWithSession(c, http.StatusOK, result)
}

func (h *handlerImpl) HandleLogout(c *gin.Context) {
	clearCookie(c, accessTokenCookie, h.opts.SecureCookies)
	c.Status(http.StatusNoContent)
}

func (h *handlerImpl) respondWithSession(c *gin.Context, status int, result *services.LoginResult) {
	setAccessTokenCookie(c, result.AccessToken, time.Until(result.AccessTokenExpiresAt), h.opts.SecureCookies)
	c.JSON(status, authResponse{
		User:        newUserResponse(result.User),
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessTokenExpiresAt,
	})
}

func setAccessTokenCookie(c *gin.Context, token string, maxAge time.Duration, secure bool) {
	const httpOnly = true
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, token, int(maxAge.Seconds()),
		"/", "", secure, httpOnly)
}

func clearCookie(c *gin.Context, name string, secure bool) {
	c.SetCookie(name, "", -1,
		"/", "", secure, true)
}
