package models

import "time"

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is the shared mutable record. CreatedBy and AssignedTo are
// denormalized on reads and are never written back.
type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Priority     Priority     `json:"priority"`
	Status       Status       `json:"status"`
	DueDate      *Date        `json:"dueDate"`
	CreatedByID  string       `json:"createdById"`
	AssignedToID *string      `json:"assignedToId"`
	CreatedBy    *UserSummary `json:"createdBy,omitempty"`
	AssignedTo   *UserSummary `json:"assignedTo,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// AssigneeID returns the assignee id or "" when the task is unassigned.
func (t *Task) AssigneeID() string {
	if t.AssignedToID == nil {
		return ""
	}
	return *t.AssignedToID
}

// Clone returns a deep copy so cached tasks can be patched without
// aliasing the caller's pointers.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.AssignedToID != nil {
		id := *t.AssignedToID
		out.AssignedToID = &id
	}
	if t.CreatedBy != nil {
		u := *t.CreatedBy
		out.CreatedBy = &u
	}
	if t.AssignedTo != nil {
		u := *t.AssignedTo
		out.AssignedTo = &u
	}
	return out
}

// UpdateFields is a presence-tracked change set. A nil value inside
// DueDate or AssignedToID means "clear the field".
type UpdateFields struct {
	Title        Optional[string]
	Description  Optional[string]
	Priority     Optional[Priority]
	Status       Optional[Status]
	DueDate      Optional[*Date]
	AssignedToID Optional[*string]
}

// IsEmpty reports whether no field is present.
func (f UpdateFields) IsEmpty() bool {
	return len(f.Names()) == 0
}

// Names lists the present fields using their wire names.
func (f UpdateFields) Names() []string {
	var names []string
	if f.Title.Set {
		names = append(names, "title")
	}
	if f.Description.Set {
		names = append(names, "description")
	}
	if f.Priority.Set {
		names = append(names, "priority")
	}
	if f.Status.Set {
		names = append(names, "status")
	}
	if f.DueDate.Set {
		names = append(names, "dueDate")
	}
	if f.AssignedToID.Set {
		names = append(names, "assignedToId")
	}
	return names
}

// ApplyTo writes the present fields onto t. Denormalized assignee data is
// dropped when the assignee changes because it can no longer be trusted.
func (f UpdateFields) ApplyTo(t *Task) {
	if v, ok := f.Title.Get(); ok {
		t.Title = v
	}
	if v, ok := f.Description.Get(); ok {
		t.Description = v
	}
	if v, ok := f.Priority.Get(); ok {
		t.Priority = v
	}
	if v, ok := f.Status.Get(); ok {
		t.Status = v
	}
	if v, ok := f.DueDate.Get(); ok {
		if v == nil {
			t.DueDate = nil
		} else {
			d := *v
			t.DueDate = &d
		}
	}
	if v, ok := f.AssignedToID.Get(); ok {
		prev := t.AssigneeID()
		if v == nil {
			t.AssignedToID = nil
		} else {
			id := *v
			t.AssignedToID = &id
		}
		if t.AssigneeID() != prev {
			t.AssignedTo = nil
		}
	}
}

// TaskInput is the create request body.
type TaskInput struct {
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
	DueDate      *string `json:"dueDate,omitempty"`
	AssignedToID *string `json:"assignedToId,omitempty"`
}

// TaskPatch is the update request body. Fields left out of the JSON
// document stay unset; an explicit null clears dueDate and assignedToId.
type TaskPatch struct {
	Title        Optional[string]  `json:"title,omitzero"`
	Description  Optional[string]  `json:"description,omitzero"`
	Priority     Optional[string]  `json:"priority,omitzero"`
	Status       Optional[string]  `json:"status,omitzero"`
	DueDate      Optional[*string] `json:"dueDate,omitzero"`
	AssignedToID Optional[*string] `json:"assignedToId,omitzero"`
}
