package syncclient

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/adanyl0v/taskdock/internal/models"
)

// ProvisionalPrefix marks ids of tasks that exist only locally.
const ProvisionalPrefix = "tmp-"

type MutationKind int

const (
	MutationCreate MutationKind = iota
	MutationUpdate
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	}
	return "unknown"
}

type MutationState int

const (
	Pending MutationState = iota
	Confirmed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled back"
	}
	return "unknown"
}

// Mutation is one optimistic change awaiting its server round trip.
type Mutation struct {
	ID     string
	Kind   MutationKind
	TaskID string
	State  MutationState
	Err    error

	input models.TaskInput
	patch models.UpdateFields

	// snapshot is the record as it was before the change; nil when the
	// task was not cached.
	snapshot *models.Task
	position int
}

// Reducer is the local task cache. Every transition is a synchronous
// method call; it does no I/O and is not safe for concurrent use.
type Reducer struct {
	userID  string
	now     func() time.Time
	tasks   []models.Task
	pending []*Mutation
}

func NewReducer(userID string) *Reducer {
	return &Reducer{
		userID: userID,
		now:    time.Now,
	}
}

// Tasks returns a copy of the cache, newest created first.
func (r *Reducer) Tasks() []models.Task {
	out := make([]models.Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (r *Reducer) Task(id string) (models.Task, bool) {
	i := r.index(id)
	if i < 0 {
		return models.Task{}, false
	}
	return r.tasks[i].Clone(), true
}

func (r *Reducer) Pending() []*Mutation {
	return slices.Clone(r.pending)
}

// BeginCreate inserts a provisional record under a temporary id.
func (r *Reducer) BeginCreate(input models.TaskInput) *Mutation {
	m := &Mutation{
		ID:     uuid.NewString(),
		Kind:   MutationCreate,
		TaskID: ProvisionalPrefix + uuid.NewString(),
		input:  input,
	}
	r.apply(m)
	r.pending = append(r.pending, m)
	return m
}

// BeginUpdate patches the cached record in place.
func (r *Reducer) BeginUpdate(taskID string, patch models.TaskPatch) *Mutation {
	m := &Mutation{
		ID:     uuid.NewString(),
		Kind:   MutationUpdate,
		TaskID: taskID,
		patch:  patchFields(patch),
	}
	r.apply(m)
	r.pending = append(r.pending, m)
	return m
}

// BeginDelete removes the cached record.
func (r *Reducer) BeginDelete(taskID string) *Mutation {
	m := &Mutation{
		ID:     uuid.NewString(),
		Kind:   MutationDelete,
		TaskID: taskID,
	}
	r.apply(m)
	r.pending = append(r.pending, m)
	return m
}

// Confirm settles m with the server's record. task is ignored for deletes.
func (r *Reducer) Confirm(m *Mutation, task *models.Task) {
	if !r.settle(m) {
		return
	}
	m.State = Confirmed

	switch m.Kind {
	case MutationCreate:
		i := r.index(m.TaskID)
		if task == nil {
			r.remove(m.TaskID)
			return
		}
		// The created event may have beaten the response.
		if j := r.index(task.ID); j >= 0 {
			r.tasks[j] = task.Clone()
			r.remove(m.TaskID)
			return
		}
		if i >= 0 {
			r.tasks[i] = task.Clone()
			return
		}
		r.insert(task.Clone())
	case MutationUpdate:
		if task == nil {
			return
		}
		if i := r.index(task.ID); i >= 0 {
			r.tasks[i] = task.Clone()
		}
	case MutationDelete:
		r.remove(m.TaskID)
	}
}

// Fail rolls m back by restoring the record it touched.
func (r *Reducer) Fail(m *Mutation, err error) {
	if !r.settle(m) {
		return
	}
	m.State = RolledBack
	m.Err = err

	switch m.Kind {
	case MutationCreate:
		r.remove(m.TaskID)
	case MutationUpdate, MutationDelete:
		if m.snapshot == nil {
			return
		}
		if i := r.index(m.TaskID); i >= 0 {
			r.tasks[i] = m.snapshot.Clone()
			return
		}
		pos := min(m.position, len(r.tasks))
		r.tasks = slices.Insert(r.tasks, pos, m.snapshot.Clone())
	}
}

// EventReceived merges a server event. Applying the same event twice
// leaves the cache unchanged.
func (r *Reducer) EventReceived(evt models.TaskEvent) {
	task := evt.Task.Clone()
	switch evt.Type {
	case models.EventTaskCreated, models.EventTaskAssigned:
		if i := r.index(task.ID); i >= 0 {
			r.tasks[i] = task
			return
		}
		r.insert(task)
	case models.EventTaskUpdated:
		if i := r.index(task.ID); i >= 0 {
			r.tasks[i] = task
		}
	case models.EventTaskDeleted:
		r.remove(task.ID)
	}
}

// Refreshed replaces the cache with the server list and re-applies every
// mutation still in flight on top of it.
func (r *Reducer) Refreshed(tasks []models.Task) {
	r.tasks = make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		r.tasks = append(r.tasks, t.Clone())
	}
	for _, m := range r.pending {
		r.apply(m)
	}
}

func (r *Reducer) apply(m *Mutation) {
	m.snapshot = nil
	m.position = 0
	if i := r.index(m.TaskID); i >= 0 {
		snap := r.tasks[i].Clone()
		m.snapshot = &snap
		m.position = i
	}

	switch m.Kind {
	case MutationCreate:
		if m.snapshot == nil {
			r.tasks = slices.Insert(r.tasks, 0, r.provisional(m))
		}
	case MutationUpdate:
		if m.snapshot != nil {
			t := &r.tasks[m.position]
			m.patch.ApplyTo(t)
			t.UpdatedAt = r.now().UTC()
		}
	case MutationDelete:
		r.remove(m.TaskID)
	}
}

func (r *Reducer) provisional(m *Mutation) models.Task {
	now := r.now().UTC()
	t := models.Task{
		ID:           m.TaskID,
		Title:        m.input.Title,
		Priority:     models.Priority(m.input.Priority),
		Status:       models.Status(m.input.Status),
		CreatedByID:  r.userID,
		AssignedToID: m.input.AssignedToID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.input.Description != nil {
		t.Description = *m.input.Description
	}
	if m.input.DueDate != nil {
		if d, err := models.ParseDate(*m.input.DueDate); err == nil {
			t.DueDate = &d
		}
	}
	return t.Clone()
}

// settle drops m from the pending list and reports whether it was there.
func (r *Reducer) settle(m *Mutation) bool {
	i := slices.Index(r.pending, m)
	if i < 0 {
		return false
	}
	r.pending = slices.Delete(r.pending, i, i+1)
	return true
}

func (r *Reducer) index(id string) int {
	return slices.IndexFunc(r.tasks, func(t models.Task) bool {
		return t.ID == id
	})
}

func (r *Reducer) remove(id string) {
	if i := r.index(id); i >= 0 {
		r.tasks = slices.Delete(r.tasks, i, i+1)
	}
}

// insert keeps the cache ordered newest created first.
func (r *Reducer) insert(t models.Task) {
	i := slices.IndexFunc(r.tasks, func(other models.Task) bool {
		return other.CreatedAt.Before(t.CreatedAt)
	})
	if i < 0 {
		i = len(r.tasks)
	}
	r.tasks = slices.Insert(r.tasks, i, t)
}

// patchFields converts a wire patch into a change set. Values the server
// would reject are skipped; the rollback restores the record anyway.
func patchFields(p models.TaskPatch) models.UpdateFields {
	var f models.UpdateFields
	if v, ok := p.Title.Get(); ok {
		f.Title = models.Some(v)
	}
	if v, ok := p.Description.Get(); ok {
		f.Description = models.Some(v)
	}
	if v, ok := p.Priority.Get(); ok && models.Priority(v).IsValid() {
		f.Priority = models.Some(models.Priority(v))
	}
	if v, ok := p.Status.Get(); ok && models.Status(v).IsValid() {
		f.Status = models.Some(models.Status(v))
	}
	if v, ok := p.DueDate.Get(); ok {
		if v == nil || *v == "" {
			f.DueDate = models.Some[*models.Date](nil)
		} else if d, err := models.ParseDate(*v); err == nil {
			f.DueDate = models.Some(&d)
		}
	}
	if v, ok := p.AssignedToID.Get(); ok {
		if v == nil || *v == "" {
			f.AssignedToID = models.Some[*string](nil)
		} else {
			id := *v
			f.AssignedToID = models.Some(&id)
		}
	}
	return f
}
