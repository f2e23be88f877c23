package v1

import "github.com/gin-gonic/gin"

func RegisterRoutes(router gin.IRouter, h Handler, adminEnabled bool) {
	router.GET("/", h.HandleRoot)
	router.GET("/health", h.HandleHealth)

	api := router.Group("/api/v1")
	api.GET("/ws", h.HandleStreamAuthMiddleware, h.HandleEvents)

	authRouter := api.Group("/auth")
	authRouter.POST("/register", h.HandleRegister)
	authRouter.POST("/login", h.HandleLogin)
	authRouter.POST("/logout", h.HandleLogout)

	usersRouter := api.Group("/users", h.HandleAuthMiddleware)
	usersRouter.GET("/me", h.HandleGetMe)
	usersRouter.GET("", h.HandleSearchUsers)

	tasksRouter := api.Group("/tasks", h.HandleAuthMiddleware)
	tasksRouter.POST("", h.HandleCreateTask)
	tasksRouter.GET("", h.HandleGetTasks)
	tasksRouter.GET("/:id", h.HandleGetTask)
	tasksRouter.PATCH("/:id", h.HandleUpdateTask)
	tasksRouter.DELETE("/:id", h.HandleDeleteTask)

	if adminEnabled {
		adminRouter := api.Group("/admin", h.HandleAdminMiddleware)
		adminRouter.PUT("/tasks/:id/assign", h.HandleAssignTask)
	}
}
