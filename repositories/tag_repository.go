package repositories

import (
	"context"

	"gorm.io/gorm"

	"blogdesk/models"
)

type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	FindByID(ctx context.Context, id uint) (*models.Tag, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tag, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Tag, error)
	FirstOrCreate(ctx context.Context, name string) (*models.Tag, error)
	ListWithPostCounts(ctx context.Context) ([]models.Tag, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Omit("Posts").Create(tag).Error
}

func (r *tagRepository) FindByID(ctx context.Context, id uint) (*models.Tag, error) {
	var t models.Tag
	if err := r.db.WithContext(ctx).Scopes(withTagPostCount).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tagRepository) FindBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var t models.Tag
	if err := r.db.WithContext(ctx).Scopes(withTagPostCount).Where("tags.slug = ?", slug).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByIDs returns the tags that exist among ids, ordered by id.
func (r *tagRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Tag, error) {
	var tags []models.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&tags).Error
	return tags, err
}

// FirstOrCreate finds the tag by the slug of name, creating it when absent.
func (r *tagRepository) FirstOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	tag := models.Tag{Name: name, Slug: models.MakeSlug(name, models.TagSlugMax)}
	err := r.db.WithContext(ctx).Where(models.Tag{Slug: tag.Slug}).Attrs(models.Tag{Name: name}).FirstOrCreate(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) ListWithPostCounts(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Scopes(withTagPostCount).Order("tags.name").Find(&tags).Error
	return tags, err
}

func (r *tagRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tag{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// Counts go through the pivot and skip trashed posts.
func withTagPostCount(db *gorm.DB) *gorm.DB {
	count := db.Session(&gorm.Session{NewDB: true}).
		Table("post_tag").
		Select("COUNT(*)").
		Joins("JOIN posts ON posts.id = post_tag.post_id").
		Where("post_tag.tag_id = tags.id AND posts.deleted_at IS NULL")
	return db.Model(&models.Tag{}).Select("tags.*, (?) AS posts_count", count)
}
