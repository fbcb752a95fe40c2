package models

import (
	"time"

	"gorm.io/gorm"

	"blogdesk/massassign"
)

var CategoryGuard = massassign.Guard{Fillable: []string{"name", "slug", "description"}}

type Category struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null;index" json:"name" validate:"required,max=255"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug" validate:"omitempty,max=255"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// PostsCount is only populated by queries that select it.
	PostsCount int64  `gorm:"->;-:migration" json:"posts_count"`
	Posts      []Post `json:"-" validate:"-"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = MakeSlug(c.Name, CategorySlugMax)
	}
	return nil
}
