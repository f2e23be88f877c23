package app

import (
	"context"

	"github.com/adanyl0v/taskdock/internal/config"
	"github.com/adanyl0v/taskdock/internal/hub"
)

var (
	globalHub   *hub.Hub
	cancelRelay context.CancelFunc
	relayDone   chan struct{}
)

// InitEventHub creates the in-process hub and, when configured, starts
// mirroring its traffic through Redis.
func InitEventHub() {
	cfg := config.Global()

	globalHub = hub.New(componentLogger("hub"), cfg.Hub.QueueSize)
	globalLogger.Info().
		Int("queue_size", cfg.Hub.QueueSize).
		Msg("initialized event hub")

	if !cfg.Redis.EventsEnabled || globalRedis == nil {
		return
	}

	relay := hub.NewRelay(componentLogger("relay"), globalRedis, globalHub, cfg.Redis.EventsChannel)
	globalHub.SetForwarder(relay)

	ctx, cancel := context.WithCancel(context.Background())
	cancelRelay = cancel
	relayDone = make(chan struct{})

	go func() {
		defer close(relayDone)
		err := relay.Run(ctx)
		if err != nil {
			globalLogger.Error().
				Err(err).
				Str("channel", cfg.Redis.EventsChannel).
				Msg("event relay stopped")
		}
	}()
}

func CloseEventHub(ctx context.Context) {
	if cancelRelay != nil {
		cancelRelay()
		select {
		case <-relayDone:
		case <-ctx.Done():
			globalLogger.Warn().Msg("event relay did not stop in time")
		}
	}
	if globalHub != nil {
		globalHub.Close()
		globalLogger.Info().Msg("closed event hub")
	}
}
