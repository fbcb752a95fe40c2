package models

import (
	"time"

	"gorm.io/gorm"

	"blogdesk/massassign"
)

var TagGuard = massassign.Guard{Fillable: []string{"name", "slug", "color"}}

type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"size:50;not null;index" json:"name" validate:"required,max=50"`
	Slug      string    `gorm:"size:50;uniqueIndex;not null" json:"slug" validate:"omitempty,max=50"`
	Color     *string   `gorm:"size:7" json:"color" validate:"omitempty,hexcolor"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PostsCount int64  `gorm:"->;-:migration" json:"posts_count"`
	Posts      []Post `gorm:"many2many:post_tag;" json:"-" validate:"-"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.Slug == "" {
		t.Slug = MakeSlug(t.Name, TagSlugMax)
	}
	return nil
}

// PostTag is the post_tag pivot; it records when a tag was attached.
type PostTag struct {
	PostID    uint `gorm:"primaryKey"`
	TagID     uint `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (PostTag) TableName() string { return "post_tag" }
