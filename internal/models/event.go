package models

type EventType string

const (
	EventTaskCreated  EventType = "task:created"
	EventTaskAssigned EventType = "task:assigned"
	EventTaskUpdated  EventType = "task:updated"
	EventTaskDeleted  EventType = "task:deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventTaskCreated, EventTaskAssigned, EventTaskUpdated, EventTaskDeleted:
		return true
	}
	return false
}

// TaskEvent carries the full task snapshot as of the mutation that
// produced it.
type TaskEvent struct {
	Type EventType `json:"type"`
	Task Task      `json:"task"`
}

// Control message types on the event stream. Task events reuse their
// EventType as the message type.
const (
	MessageJoin   = "join"
	MessageJoined = "joined"
	MessageError  = "error"
)

// StreamMessage is the envelope for every frame on the event stream in
// either direction.
type StreamMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	Task   *Task  `json:"task,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Event converts a task event frame back into a TaskEvent.
func (m StreamMessage) Event() (TaskEvent, bool) {
	typ := EventType(m.Type)
	if !typ.IsValid() || m.Task == nil {
		return TaskEvent{}, false
	}
	return TaskEvent{Type: typ, Task: *m.Task}, true
}
