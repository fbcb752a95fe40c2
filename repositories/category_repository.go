package repositories

import (
	"context"

	"gorm.io/gorm"

	"blogdesk/models"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id uint) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListWithPostCounts(ctx context.Context) ([]models.Category, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Omit("Posts").Create(category).Error
}

func (r *categoryRepository) FindByID(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Scopes(withCategoryPostCount).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	err := r.db.WithContext(ctx).Scopes(withCategoryPostCount).Where("categories.slug = ?", slug).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListWithPostCounts returns every category by name, each with the number
// of its posts that are not trashed.
func (r *categoryRepository) ListWithPostCounts(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Scopes(withCategoryPostCount).Order("categories.name").Find(&categories).Error
	return categories, err
}

func (r *categoryRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func withCategoryPostCount(db *gorm.DB) *gorm.DB {
	count := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Post{}).
		Select("COUNT(*)").
		Where("posts.category_id = categories.id")
	return db.Model(&models.Category{}).Select("categories.*, (?) AS posts_count", count)
}
