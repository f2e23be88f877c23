package v1

import (
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adanyl0v/taskdock/internal/hub"
	"github.com/adanyl0v/taskdock/internal/models"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamMaxMessage = 4096
)

// HandleEvents upgrades the request to a WebSocket and streams the task
// events of the authenticated user once the client has joined.
func (h *handlerImpl) HandleEvents(c *gin.Context) {
	userID, _ := getStringFromContext(c, userIDCtxKey)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to upgrade connection")
		return
	}

	connID := uuid.NewString()
	sub := h.hub.Connect(connID)
	defer h.hub.Disconnect(connID)

	h.logger.Info().
		Str("conn_id", connID).
		Str("user_id", userID).
		Msg("event stream connected")

	replies := make(chan models.StreamMessage, 4)
	readerDone := make(chan struct{})
	go h.writeStream(conn, sub, replies, readerDone)

	h.readStream(conn, connID, userID, replies)
	close(readerDone)

	h.logger.Info().
		Str("conn_id", connID).
		Msg("event stream disconnected")
}

func (h *handlerImpl) readStream(conn *websocket.Conn, connID, userID string, replies chan<- models.StreamMessage) {
	conn.SetReadLimit(streamMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var msg models.StreamMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().
					Err(err).
					Str("conn_id", connID).
					Msg("event stream read failed")
			}
			return
		}

		reply := h.handleStreamMessage(connID, userID, msg)
		select {
		case replies <- reply:
		default:
			// the writer is gone or hopelessly behind
			return
		}
	}
}

func (h *handlerImpl) handleStreamMessage(connID, userID string, msg models.StreamMessage) models.StreamMessage {
	switch msg.Type {
	case models.MessageJoin:
		if msg.UserID != "" && msg.UserID != userID {
			h.logger.Warn().
				Str("conn_id", connID).
				Str("user_id", userID).
				Str("requested_user_id", msg.UserID).
				Msg("join for another user rejected")
			return models.StreamMessage{Type: models.MessageError, Error: "cannot join another user's room"}
		}
		err := h.hub.Join(connID, userID)
		if err != nil {
			return models.StreamMessage{Type: models.MessageError, Error: err.Error()}
		}
		return models.StreamMessage{Type: models.MessageJoined, UserID: userID}
	default:
		return models.StreamMessage{Type: models.MessageError, Error: "unknown message type: " + msg.Type}
	}
}

// writeStream is the only goroutine that writes to conn.
func (h *handlerImpl) writeStream(
	conn *websocket.Conn,
	sub *hub.Subscription,
	replies <-chan models.StreamMessage,
	readerDone <-chan struct{},
) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(msg models.StreamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(msg) == nil
	}

	for {
		select {
		case evt := <-sub.Events():
			task := evt.Task
			if !write(models.StreamMessage{Type: string(evt.Type), Task: &task}) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync required"),
				time.Now().Add(streamWriteWait),
			)
			return
		case <-readerDone:
			return
		}
	}
}
