package repositories

import "gorm.io/gorm"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// NormalizePage clamps paging input: page starts at 1 and pageSize falls
// back to DefaultPageSize and never exceeds MaxPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func Paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	page, pageSize = NormalizePage(page, pageSize)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
