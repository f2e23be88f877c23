package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handlerImpl) HandleGetMe(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		h.logger.Error().Msg("no user found in context")
		abort(c, newUnauthorizedError(errUnauthorized.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func (h *handlerImpl) HandleSearchUsers(c *gin.Context) {
	users, err := h.users.SearchUsers(c, c.Query("search"))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error().
				Err(err).
				Msg("failed to search users")
		}
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
