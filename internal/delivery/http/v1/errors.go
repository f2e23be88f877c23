package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/taskdock/internal/services"
	"github.com/adanyl0v/taskdock/internal/storage"
)

var (
	errInvalidRequestBody = errors.New("invalid request body")
	errUnauthorized       = errors.New("authentication required")
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newAPIError(code int, message string) apiError {
	return apiError{
		Code:    code,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

func abortValidation(c *gin.Context, err *services.ValidationError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"fields": err.Fields,
	})
}

func newStatusTextError(status int) apiError {
	return newAPIError(status, http.StatusText(status))
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, message)
}

func newUnauthorizedError(message string) apiError {
	return newAPIError(http.StatusUnauthorized, message)
}

func newForbiddenError(message string) apiError {
	return newAPIError(http.StatusForbidden, message)
}

func newNotFoundError(message string) apiError {
	return newAPIError(http.StatusNotFound, message)
}

func newConflictError(message string) apiError {
	return newAPIError(http.StatusConflict, message)
}

// abortWithServiceError maps service and store errors onto responses.
// Anything unrecognised is logged by the caller and reported as a 500.
func abortWithServiceError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		abortValidation(c, verr)
	case errors.Is(err, services.ErrTaskNotFound):
		abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
	case errors.Is(err, services.ErrUserNotFound):
		abort(c, newNotFoundError(services.ErrUserNotFound.Error()))
	case errors.Is(err, services.ErrForbidden):
		abort(c, newForbiddenError(services.ErrForbidden.Error()))
	case errors.Is(err, services.ErrInvalidCredentials):
		abort(c, newUnauthorizedError(services.ErrInvalidCredentials.Error()))
	case errors.Is(err, services.ErrUserAlreadyExists):
		abort(c, newConflictError(services.ErrUserAlreadyExists.Error()))
	case errors.Is(err, storage.ErrConflict):
		abort(c, newConflictError(storage.ErrConflict.Error()))
	default:
		abort(c, newStatusTextError(http.StatusInternalServerError))
	}
}

// isClientError reports whether err maps to a 4xx response.
func isClientError(err error) bool {
	var verr *services.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, services.ErrTaskNotFound) ||
		errors.Is(err, services.ErrUserNotFound) ||
		errors.Is(err, services.ErrForbidden) ||
		errors.Is(err, services.ErrInvalidCredentials) ||
		errors.Is(err, services.ErrUserAlreadyExists) ||
		errors.Is(err, storage.ErrConflict)
}
