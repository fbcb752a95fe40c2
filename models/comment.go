package models

import (
	"time"

	"blogdesk/massassign"
)

// Commentable types; each is the owning table's name.
const (
	CommentablePosts = "posts"
	CommentableTasks = "tasks"
)

var CommentGuard = massassign.Guard{Fillable: []string{"body"}}

// Comment belongs to a user and to exactly one commentable row, identified
// by the (commentable_type, commentable_id) pair.
type Comment struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	Body            string    `gorm:"type:text;not null" json:"body" validate:"required,max=5000"`
	UserID          uint      `gorm:"not null" json:"user_id"`
	CommentableID   uint      `gorm:"not null" json:"commentable_id"`
	CommentableType string    `gorm:"not null" json:"commentable_type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	User User `json:"-" validate:"-"`
}

func IsCommentable(kind string) bool {
	return kind == CommentablePosts || kind == CommentableTasks
}
