package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is one card on the board. Status doubles as the column: position
// orders tasks within their status column only.
type Task struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       Status         `gorm:"type:text;not null;default:'todo'" json:"status"`
	Priority     Priority       `gorm:"type:text;not null;default:'medium'" json:"priority"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	TimeEstimate *int           `json:"time_estimate,omitempty"`
	Position     int            `gorm:"not null" json:"position"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
