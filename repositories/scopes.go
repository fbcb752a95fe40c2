package repositories

import (
	"time"

	"gorm.io/gorm"
)

// Scope is a reusable query constraint, applied with (*gorm.DB).Scopes.
type Scope = func(*gorm.DB) *gorm.DB

func Published(db *gorm.DB) *gorm.DB {
	return db.Where("posts.is_published = ?", true)
}

func Draft(db *gorm.DB) *gorm.DB {
	return db.Where("posts.is_published = ?", false)
}

func Featured(db *gorm.DB) *gorm.DB {
	return db.Where("posts.is_featured = ?", true)
}

func Popular(minViews int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.views >= ?", minViews)
	}
}

// Recent keeps posts created within the last days.
func Recent(days int) Scope {
	since := time.Now().AddDate(0, 0, -days)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.created_at >= ?", since)
	}
}

func ByAuthor(userID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.user_id = ?", userID)
	}
}

func ByCategory(categoryID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.category_id = ?", categoryID)
	}
}

// Search matches the keyword anywhere in the title or body. An empty
// keyword matches everything.
func Search(keyword string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if keyword == "" {
			return db
		}
		like := "%" + keyword + "%"
		return db.Where("(posts.title LIKE ? OR posts.body LIKE ?)", like, like)
	}
}

// DateRange keeps posts created in [from, to]. A zero bound is open.
func DateRange(from, to time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if !from.IsZero() {
			db = db.Where("posts.created_at >= ?", from)
		}
		if !to.IsZero() {
			db = db.Where("posts.created_at <= ?", to)
		}
		return db
	}
}

// WithTags keeps posts carrying at least one of the tags.
func WithTags(tagIDs ...uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if len(tagIDs) == 0 {
			return db
		}
		sub := db.Session(&gorm.Session{NewDB: true}).
			Table("post_tag").
			Select("post_id").
			Where("tag_id IN ?", tagIDs)
		return db.Where("posts.id IN (?)", sub)
	}
}

func OnlyTrashed(db *gorm.DB) *gorm.DB {
	return db.Unscoped().Where("posts.deleted_at IS NOT NULL")
}

func WithTrashed(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

// Ordering scopes. They are kept apart from the filters above so counts
// can run without an ORDER BY.

func Latest(db *gorm.DB) *gorm.DB {
	return db.Order("posts.created_at DESC").Order("posts.id DESC")
}

func PopularFirst(db *gorm.DB) *gorm.DB {
	return db.Order("posts.views DESC").Order("posts.id DESC")
}

// TrendingFirst ranks by engagement, a like weighing two views.
func TrendingFirst(db *gorm.DB) *gorm.DB {
	return db.Order("(posts.views + posts.likes * 2) DESC").Order("posts.id DESC")
}

// Trending is the recent posts of the last days in TrendingFirst order.
func Trending(days int) Scope {
	recent := Recent(days)
	return func(db *gorm.DB) *gorm.DB {
		return TrendingFirst(recent(db))
	}
}

// Task scopes.

func Completed(db *gorm.DB) *gorm.DB {
	return db.Where("tasks.is_completed = ?", true)
}

func Pending(db *gorm.DB) *gorm.DB {
	return db.Where("tasks.is_completed = ?", false)
}
