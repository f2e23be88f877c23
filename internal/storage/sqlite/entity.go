package sqlite

import (
	"time"

	"github.com/adanyl0v/taskdock/internal/models"
)

type userEntity struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"size:255;not null;index"`
	Email     string    `gorm:"size:255;not null;uniqueIndex"`
	Password  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (userEntity) TableName() string {
	return "users"
}

func (e *userEntity) toModel() *models.User {
	return &models.User{
		ID:        e.ID,
		Name:      e.Name,
		Email:     e.Email,
		Password:  e.Password,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type taskEntity struct {
	ID           string      `gorm:"primaryKey;size:36"`
	Title        string      `gorm:"size:255;not null"`
	Description  string      `gorm:"not null;default:''"`
	Priority     string      `gorm:"size:16;not null"`
	Status       string      `gorm:"size:16;not null"`
	DueDate      *time.Time  `gorm:"type:date"`
	CreatedByID  string      `gorm:"size:36;not null;index"`
	CreatedBy    userEntity  `gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE"`
	AssignedToID *string     `gorm:"size:36;index"`
	AssignedTo   *userEntity `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL"`
	CreatedAt    time.Time   `gorm:"not null;index"`
	UpdatedAt    time.Time   `gorm:"not null"`
}

func (taskEntity) TableName() string {
	return "tasks"
}

func newTaskEntity(t *models.Task) *taskEntity {
	e := &taskEntity{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Priority:     string(t.Priority),
		Status:       string(t.Status),
		CreatedByID:  t.CreatedByID,
		AssignedToID: t.AssignedToID,
	}
	if t.DueDate != nil {
		due := t.DueDate.Time()
		e.DueDate = &due
	}
	return e
}

func (e *taskEntity) toModel() *models.Task {
	t := &models.Task{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Priority:     models.Priority(e.Priority),
		Status:       models.Status(e.Status),
		CreatedByID:  e.CreatedByID,
		AssignedToID: e.AssignedToID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.DueDate != nil {
		d := models.DateOf(e.DueDate.UTC())
		t.DueDate = &d
	}
	if e.CreatedBy.ID != "" {
		t.CreatedBy = &models.UserSummary{
			ID:    e.CreatedBy.ID,
			Name:  e.CreatedBy.Name,
			Email: e.CreatedBy.Email,
		}
	}
	if e.AssignedTo != nil {
		t.AssignedTo = &models.UserSummary{
			ID:    e.AssignedTo.ID,
			Name:  e.AssignedTo.Name,
			Email: e.AssignedTo.Email,
		}
	}
	return t
}
