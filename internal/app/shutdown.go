package app

import (
	"context"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/adanyl0v/taskdock/internal/config"
)

// WaitForShutdown blocks until SIGINT or SIGTERM and returns the exit code.
// Teardown runs as one operation because every step depends on the
// previous one having finished.
func WaitForShutdown() int {
	timeout := config.Global().HTTP.ShutdownTimeout

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		timeout,
		map[string]gfshutdown.Operation{
			"taskdock": func(ctx context.Context) error {
				ShutdownHTTP(ctx)
				CloseEventHub(ctx)
				DisconnectRedis()
				CloseStore()
				return nil
			},
		},
	)

	code := <-wait
	globalLogger.Info().
		Int("code", code).
		Msg("exited")
	return code
}
