package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
)

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second

	streamReadWait  = 90 * time.Second
	streamWriteWait = 10 * time.Second
)

// EventSink consumes the stream. Client implements it.
type EventSink interface {
	HandleEvent(evt models.TaskEvent)
	ScheduleRefresh()
}

type StreamOption func(*Stream)

func WithBackoff(minBackoff, maxBackoff time.Duration) StreamOption {
	return func(s *Stream) {
		s.minBackoff = minBackoff
		s.maxBackoff = maxBackoff
	}
}

func WithDialer(d *websocket.Dialer) StreamOption {
	return func(s *Stream) {
		s.dialer = d
	}
}

// WithStateHandler is told whenever the stream joins or loses its room.
func WithStateHandler(fn func(joined bool)) StreamOption {
	return func(s *Stream) {
		s.onState = fn
	}
}

// Stream keeps a websocket open to the event endpoint, rejoining the
// user's room after every reconnect.
type Stream struct {
	logger     zerolog.Logger
	url        string
	header     http.Header
	userID     string
	sink       EventSink
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	onState    func(joined bool)
}

func NewStream(logger zerolog.Logger, url, userID string, sink EventSink, opts ...StreamOption) *Stream {
	s := &Stream{
		logger:     logger,
		url:        url,
		header:     http.Header{},
		userID:     userID,
		sink:       sink,
		dialer:     websocket.DefaultDialer,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is done. Connection failures are retried with
// exponential backoff; the delay resets once a join succeeds.
func (s *Stream) Run(ctx context.Context) error {
	delay := s.minBackoff
	for {
		joined, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if joined {
			delay = s.minBackoff
		}
		s.logger.Warn().
			Err(err).
			Dur("retry_in", delay).
			Msg("event stream disconnected")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		delay = nextBackoff(delay, s.maxBackoff)
	}
}

func nextBackoff(cur, maxBackoff time.Duration) time.Duration {
	next := cur * 2
	if next <= 0 || next > maxBackoff {
		return maxBackoff
	}
	return next
}

// session runs one connection and reports whether it got as far as
// joining the room.
func (s *Stream) session(ctx context.Context) (bool, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("failed to dial event stream: %s: %w", resp.Status, err)
		}
		return false, fmt.Errorf("failed to dial event stream: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(streamWriteWait),
		)
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(streamWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	err = conn.WriteJSON(models.StreamMessage{Type: models.MessageJoin, UserID: s.userID})
	if err != nil {
		return false, fmt.Errorf("failed to send join: %w", err)
	}

	joined := false
	defer func() {
		if joined {
			s.setState(false)
		}
	}()

	for {
		var msg models.StreamMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			return joined, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))

		switch msg.Type {
		case models.MessageJoined:
			if !joined {
				joined = true
				s.logger.Info().
					Str("user_id", s.userID).
					Msg("joined event stream")
				s.setState(true)
				// Anything published while we were away is only
				// recoverable from a full list.
				s.sink.ScheduleRefresh()
			}
		case models.MessageError:
			s.logger.Warn().
				Str("error", msg.Error).
				Msg("event stream error")
		default:
			evt, ok := msg.Event()
			if !ok {
				s.logger.Debug().
					Str("type", msg.Type).
					Msg("ignoring unknown stream message")
				continue
			}
			s.sink.HandleEvent(evt)
		}
	}
}

func (s *Stream) setState(joined bool) {
	if s.onState != nil {
		s.onState(joined)
	}
}
