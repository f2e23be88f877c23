package v1

import (
	"context"
	"net/http"
	"slices"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/hub"
	"github.com/adanyl0v/taskdock/internal/services"
)

type Handler interface {
	HandleRoot(c *gin.Context)
	HandleHealth(c *gin.Context)

	HandleRegister(c *gin.Context)
	HandleLogin(c *gin.Context)
	HandleLogout(c *gin.Context)
	HandleAuthMiddleware(c *gin.Context)
	HandleStreamAuthMiddleware(c *gin.Context)
	HandleAdminMiddleware(c *gin.Context)

	HandleGetMe(c *gin.Context)
	HandleSearchUsers(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleGetTasks(c *gin.Context)
	HandleGetTask(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)
	HandleAssignTask(c *gin.Context)

	HandleEvents(c *gin.Context)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// AdminToken enables the admin routes when non-empty.
	AdminToken     string
	SecureCookies  bool
	AllowedOrigins []string
}

type handlerImpl struct {
	logger   zerolog.Logger
	auth     services.AuthService
	users    services.UserService
	tasks    services.TaskService
	hub      *hub.Hub
	store    Pinger
	opts     Options
	upgrader websocket.Upgrader
}

func New(
	logger zerolog.Logger,
	authService services.AuthService,
	userService services.UserService,
	taskService services.TaskService,
	eventHub *hub.Hub,
	store Pinger,
	opts Options,
) Handler {
	h := &handlerImpl{
		logger: logger,
		auth:   authService,
		users:  userService,
		tasks:  taskService,
		hub:    eventHub,
		store:  store,
		opts:   opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts non-browser clients, which send no Origin header.
func (h *handlerImpl) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, "*") ||
		slices.Contains(h.opts.AllowedOrigins, origin)
}

func (h *handlerImpl) HandleRoot(c *gin.Context) {
	c.String(http.StatusOK, "TaskDock API is running")
}

func (h *handlerImpl) HandleHealth(c *gin.Context) {
	status := http.StatusOK
	storeStatus := "ok"
	if err := h.store.Ping(c); err != nil {
		h.logger.Error().
			Err(err).
			Msg("store ping failed")
		status = http.StatusServiceUnavailable
		storeStatus = "unavailable"
	}

	c.JSON(status, gin.H{
		"store":       storeStatus,
		"connections": h.hub.ConnectionCount(),
		"rooms":       h.hub.RoomCount(),
	})
}
