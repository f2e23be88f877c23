package hub

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
)

const DefaultRelayChannel = "taskdock:events"

type envelope struct {
	Origin string           `json:"origin"`
	UserID string           `json:"userId"`
	Event  models.TaskEvent `json:"event"`
}

// Relay mirrors hub traffic between instances over a Redis pub/sub
// channel. Envelopes carry the publishing instance id so an instance never
// delivers its own events twice.
type Relay struct {
	logger  zerolog.Logger
	rdb     *redis.Client
	hub     *Hub
	channel string
	origin  string
}

func NewRelay(logger zerolog.Logger, rdb *redis.Client, hub *Hub, channel string) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &Relay{
		logger:  logger,
		rdb:     rdb,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

func (r *Relay) Forward(ctx context.Context, userID string, evt models.TaskEvent) error {
	b, err := json.Marshal(envelope{
		Origin: r.origin,
		UserID: userID,
		Event:  evt,
	})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Run delivers remote events to local rooms until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info().
		Str("channel", r.channel).
		Str("origin", r.origin).
		Msg("event relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var env envelope
	err := json.Unmarshal([]byte(payload), &env)
	if err != nil {
		r.logger.Error().
			Err(err).
			Msg("failed to decode relayed event")
		return
	}
	if env.Origin == r.origin {
		return
	}
	if !env.Event.Type.IsValid() || env.UserID == "" {
		r.logger.Warn().
			Str("origin", env.Origin).
			Msg("dropping malformed relayed event")
		return
	}
	r.hub.Deliver(env.UserID, env.Event)
}
