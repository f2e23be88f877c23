package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/alexedwards/argon2id"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/taskdock/internal/config"
	"github.com/adanyl0v/taskdock/internal/delivery/http/v1"
	"github.com/adanyl0v/taskdock/internal/services"
)

var globalHTTPServer *http.Server

// MustStartHTTP builds the router and starts serving in the background.
func MustStartHTTP() {
	cfg := config.Global()
	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(httpCfg)))
	registerRoutes(router)

	globalHTTPServer = &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	listener, err := net.Listen("tcp", globalHTTPServer.Addr)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("addr", globalHTTPServer.Addr).
			Msg("failed to listen")
		panic(err)
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := globalHTTPServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to serve http")
			panic(err)
		}
	}()
}

func corsConfig(httpCfg config.HTTPConfig) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Admin-Token")
	corsCfg.AllowCredentials = true
	for _, origin := range httpCfg.AllowedOrigins {
		if origin == "*" {
			corsCfg.AllowOriginFunc = func(string) bool { return true }
			return corsCfg
		}
	}
	corsCfg.AllowOrigins = httpCfg.AllowedOrigins
	return corsCfg
}

func registerRoutes(router gin.IRouter) {
	cfg := config.Global()
	jwtCfg := cfg.JWT

	authService := services.NewAuthService(
		componentLogger("auth"),
		globalStore,
		argon2id.DefaultParams,
		jwtCfg.Issuer,
		[]byte(jwtCfg.SigningKey),
		jwtCfg.AccessTokenTTL,
	)
	userService := services.NewUserService(componentLogger("users"), globalStore)
	taskService := services.NewTaskService(
		componentLogger("tasks"),
		globalStore,
		globalHub,
		taskCache(),
	)

	v1Handler := v1.New(
		componentLogger("http"),
		authService,
		userService,
		taskService,
		globalHub,
		globalStore,
		v1.Options{
			AdminToken:     cfg.HTTP.AdminToken,
			SecureCookies:  cfg.HTTP.SecureCookies,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		},
	)
	v1.RegisterRoutes(router, v1Handler, cfg.HTTP.AdminToken != "")
}

func ShutdownHTTP(ctx context.Context) {
	if globalHTTPServer == nil {
		return
	}
	globalLogger.Info().Msg("shutting down http server")

	err := globalHTTPServer.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		return
	}
	globalLogger.Info().Msg("shut down http server")
}
