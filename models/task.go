package models

import (
	"time"

	"blogdesk/massassign"
)

var TaskGuard = massassign.Guard{Fillable: []string{"title", "description"}}

type Task struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Title       string    `gorm:"not null" json:"title" validate:"required,max=255"`
	Description string    `gorm:"type:text" json:"description"`
	IsCompleted bool      `gorm:"default:false" json:"is_completed"`
	UserID      uint      `gorm:"not null" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Comments []Comment `gorm:"polymorphic:Commentable;" json:"-" validate:"-"`
}

func (t *Task) StatusLabel() string {
	if t.IsCompleted {
		return "Completed"
	}
	return "Pending"
}
