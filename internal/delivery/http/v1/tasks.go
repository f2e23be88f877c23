package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/taskdock/internal/models"
)

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	userID, _ := getStringFromContext(c, userIDCtxKey)

	var req models.TaskInput
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	task, err := h.tasks.CreateTask(c, userID, req)
	if err != nil {
		h.logServiceError(err, "failed to create task", "")
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *handlerImpl) HandleGetTasks(c *gin.Context) {
	userID, _ := getStringFromContext(c, userIDCtxKey)

	tasks, err := h.tasks.ListTasksForUser(c, userID)
	if err != nil {
		h.logServiceError(err, "failed to list tasks", "")
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *handlerImpl) HandleGetTask(c *gin.Context) {
	userID, _ := getStringFromContext(c, userIDCtxKey)
	taskID := c.Param("id")

	task, err := h.tasks.GetTask(c, userID, taskID)
	if err != nil {
		h.logServiceError(err, "failed to get task", taskID)
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	userID, _ := getStringFromContext(c, userIDCtxKey)
	taskID := c.Param("id")

	var req models.TaskPatch
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	task, err := h.tasks.UpdateTask(c, userID, taskID, req)
	if err != nil {
		h.logServiceError(err, "failed to update task", taskID)
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	userID, _ := getStringFromContext(c, userIDCtxKey)
	taskID := c.Param("id")

	err := h.tasks.DeleteTask(c, userID, taskID)
	if err != nil {
		h.logServiceError(err, "failed to delete task", taskID)
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

type assignTaskRequest struct {
	AssignedToID *string `json:"assignedToId"`
}

func (h *handlerImpl) HandleAssignTask(c *gin.Context) {
	taskID := c.Param("id")

	var req assignTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	var assigneeID string
	if req.AssignedToID != nil {
		assigneeID = *req.AssignedToID
	}

	task, err := h.tasks.ReassignTask(c, taskID, assigneeID)
	if err != nil {
		h.logServiceError(err, "failed to assign task", taskID)
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// logServiceError logs only failures that are not the caller's fault.
func (h *handlerImpl) logServiceError(err error, msg, taskID string) {
	if isClientError(err) {
		return
	}
	evt := h.logger.Error().Err(err)
	if taskID != "" {
		evt = evt.Str("task_id", taskID)
	}
	evt.Msg(msg)
}
