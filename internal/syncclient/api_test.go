package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/taskdock/internal/models"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":        gin.H{"id": "user-a", "name": "Alice", "email": "alice@example.com"},
			"accessToken": "token-a",
		})
	})
	api.GET("/tasks", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer token-a" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": []models.Task{serverTask("t1", "One", baseTime)}})
	})
	api.POST("/tasks", func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"title": "title is required", "priority": "invalid priority"},
		})
	})
	api.PATCH("/tasks/:id", func(c *gin.Context) {
		var patch models.TaskPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		task := serverTask(c.Param("id"), "One", baseTime)
		if v, ok := patch.Status.Get(); ok {
			task.Status = models.Status(v)
		}
		// Title must not have been sent.
		if patch.Title.Set {
			task.Title = "unexpected"
		}
		c.JSON(http.StatusOK, gin.H{"task": task})
	})
	api.DELETE("/tasks/:id", func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "task not found"})
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPI_RoundTrips(t *testing.T) {
	srv := newAPIServer(t)
	ctx := context.Background()

	api, err := NewAPI(srv.URL+"/", "")
	require.NoError(t, err)

	_, err = api.ListTasks(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	res, err := api.Login(ctx, "alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "user-a", res.User.ID)
	assert.Equal(t, "token-a", api.Token())

	tasks, err := api.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)

	task, err := api.UpdateTask(ctx, "t1", models.TaskPatch{Status: models.Some(string(models.StatusCompleted))})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, "One", task.Title)

	err = api.DeleteTask(ctx, "t1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "task not found", apiErr.Message)
}

func TestAPI_ValidationError(t *testing.T) {
	srv := newAPIServer(t)
	api, err := NewAPI(srv.URL, "token-a")
	require.NoError(t, err)

	_, err = api.CreateTask(context.Background(), models.TaskInput{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "title is required", apiErr.Fields["title"])
	assert.Equal(t, "validation failed (400): priority: invalid priority; title: title is required", apiErr.Error())
}

func TestAPI_StreamURL(t *testing.T) {
	api, err := NewAPI("https://tasks.example.com", "a b")
	require.NoError(t, err)
	assert.Equal(t, "wss://tasks.example.com/api/v1/ws?token=a+b", api.StreamURL())

	api, err = NewAPI("http://localhost:8080/", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/v1/ws", api.StreamURL())

	_, err = NewAPI("ftp://example.com", "")
	assert.Error(t, err)
}
