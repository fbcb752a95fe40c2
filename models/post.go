package models

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"blogdesk/massassign"
)

const (
	excerptLength  = 150
	wordsPerMinute = 200
)

// PostGuard lists the attributes a client may set on a post. Ownership,
// counters, featuring and the image path are assigned by the application.
var PostGuard = massassign.Guard{
	Fillable: []string{"title", "slug", "body", "category_id", "is_published"},
}

type Post struct {
	gorm.Model
	Title       string     `gorm:"not null" json:"title" validate:"required,max=255"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug" validate:"omitempty,max=255"`
	Body        string     `gorm:"type:text;not null" json:"body" validate:"required"`
	Image       *string    `json:"image"`
	IsPublished bool       `gorm:"default:false" json:"is_published"`
	PublishedAt *time.Time `json:"published_at"`
	Views       int        `gorm:"default:0" json:"views"`
	Likes       int        `gorm:"default:0" json:"likes"`
	IsFeatured  bool       `gorm:"default:false" json:"is_featured"`
	UserID      uint       `gorm:"not null" json:"user_id"`
	CategoryID  uint       `gorm:"not null" json:"category_id" validate:"required"`

	User     User      `json:"-" validate:"-"`
	Category Category  `json:"-" validate:"-"`
	Tags     []Tag     `gorm:"many2many:post_tag;" json:"-" validate:"-"`
	Comments []Comment `gorm:"polymorphic:Commentable;" json:"-" validate:"-"`
}

// postSlugSuffixRoom keeps space for the "-N" that makes a slug unique.
const postSlugSuffixRoom = 8

// BeforeCreate fills an empty slug from the title. Trashed posts still hold
// their slug, so they take part in the uniqueness check.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.Slug != "" {
		return nil
	}
	base := MakeSlug(p.Title, PostSlugMax-postSlugSuffixRoom)
	if base == "" {
		base = "post"
	}
	candidate := base
	for n := 1; ; n++ {
		var count int64
		err := tx.Session(&gorm.Session{NewDB: true}).
			Unscoped().
			Model(&Post{}).
			Where("slug = ?", candidate).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			break
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	p.Slug = candidate
	return nil
}

var stripPolicy = bluemonday.StrictPolicy()

// StripTags removes all markup, leaving plain text.
func StripTags(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

// Excerpt is the first 150 characters of the body without markup.
func (p *Post) Excerpt() string {
	text := strings.TrimSpace(StripTags(p.Body))
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:excerptLength]), " ") + "..."
}

// ReadingTime estimates minutes to read the body at 200 words per minute.
func (p *Post) ReadingTime() string {
	words := len(strings.Fields(StripTags(p.Body)))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	return fmt.Sprintf("%d min read", minutes)
}

func (p *Post) StatusLabel() string {
	if p.IsPublished {
		return "Published"
	}
	return "Draft"
}

func (p *Post) Trashed() bool {
	return p.DeletedAt.Valid
}
