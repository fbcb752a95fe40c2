package repositories

import (
	"context"

	"gorm.io/gorm"

	"blogdesk/models"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id uint) (*models.Comment, error)
	ListFor(ctx context.Context, commentableType string, commentableID uint, page, pageSize int) ([]models.Comment, int64, error)
	Delete(ctx context.Context, comment *models.Comment) error
	DeleteFor(ctx context.Context, commentableType string, commentableID uint) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit("User").Create(comment).Error
}

func (r *commentRepository) FindByID(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListFor pages through the comments of one commentable, oldest first.
func (r *commentRepository) ListFor(ctx context.Context, commentableType string, commentableID uint, page, pageSize int) ([]models.Comment, int64, error) {
	var comments []models.Comment
	var total int64

	q := func(db *gorm.DB) *gorm.DB {
		return db.Where("commentable_type = ? AND commentable_id = ?", commentableType, commentableID)
	}
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Comment{}).Scopes(q).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Scopes(q, Paginate(page, pageSize)).
		Preload("User").
		Order("created_at").
		Order("id").
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *commentRepository) Delete(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Delete(comment).Error
}

func (r *commentRepository) DeleteFor(ctx context.Context, commentableType string, commentableID uint) error {
	return r.db.WithContext(ctx).
		Where("commentable_type = ? AND commentable_id = ?", commentableType, commentableID).
		Delete(&models.Comment{}).Error
}
