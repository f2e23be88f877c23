// Package authz decides which task fields an acting user may write.
//
// Everything here is pure: callers pass the persisted task state and the
// acting user's id, and get back either the change set that may be
// committed or a denial. No store or clock is consulted.
package authz

import (
	"errors"

	"github.com/adanyl0v/taskdock/internal/models"
)

var (
	// ErrNotInvolved means the actor is neither creator nor assignee.
	// The whole request must be rejected.
	ErrNotInvolved = errors.New("actor is not involved with task")

	// ErrNotCreator means the actor is involved but the action is
	// reserved for the creator.
	ErrNotCreator = errors.New("action is reserved for the task creator")
)

type Role int

const (
	RoleNone Role = iota
	RoleAssignee
	RoleCreator
)

func (r Role) String() string {
	switch r {
	case RoleCreator:
		return "creator"
	case RoleAssignee:
		return "assignee"
	default:
		return "none"
	}
}

// RoleOf resolves the strongest role actorID holds on task. A user who
// created and self-assigned a task is its creator.
func RoleOf(task *models.Task, actorID string) Role {
	if actorID == "" {
		return RoleNone
	}
	if task.CreatedByID == actorID {
		return RoleCreator
	}
	if task.AssigneeID() == actorID {
		return RoleAssignee
	}
	return RoleNone
}

// CanView reports whether actorID may see task at all.
func CanView(task *models.Task, actorID string) bool {
	return RoleOf(task, actorID) != RoleNone
}

// Decision is the outcome of an allowed update.
type Decision struct {
	Role    Role
	Allowed models.UpdateFields
	// Dropped lists requested fields removed because the role may not
	// write them.
	Dropped []string
}

// AuthorizeUpdate filters requested down to what actorID may write.
// Over-scoped fields from an assignee are dropped silently; an uninvolved
// actor gets ErrNotInvolved.
func AuthorizeUpdate(task *models.Task, actorID string, requested models.UpdateFields) (Decision, error) {
	role := RoleOf(task, actorID)
	switch role {
	case RoleCreator:
		return Decision{Role: role, Allowed: requested}, nil
	case RoleAssignee:
		allowed := models.UpdateFields{
			Priority: requested.Priority,
			Status:   requested.Status,
		}
		return Decision{
			Role:    role,
			Allowed: allowed,
			Dropped: assigneeDropped(requested),
		}, nil
	default:
		return Decision{Role: role}, ErrNotInvolved
	}
}

// AuthorizeDelete allows only the creator to delete.
func AuthorizeDelete(task *models.Task, actorID string) error {
	switch RoleOf(task, actorID) {
	case RoleCreator:
		return nil
	case RoleAssignee:
		return ErrNotCreator
	default:
		return ErrNotInvolved
	}
}

func assigneeDropped(requested models.UpdateFields) []string {
	var dropped []string
	if requested.Title.Set {
		dropped = append(dropped, "title")
	}
	if requested.Description.Set {
		dropped = append(dropped, "description")
	}
	if requested.DueDate.Set {
		dropped = append(dropped, "dueDate")
	}
	if requested.AssignedToID.Set {
		dropped = append(dropped, "assignedToId")
	}
	return dropped
}
