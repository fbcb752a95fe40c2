package repositories

import (
	"context"

	"gorm.io/gorm"

	"blogdesk/models"
)

const (
	TaskFilterCompleted = "completed"
	TaskFilterPending   = "pending"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uint) (*models.Task, error)
	List(ctx context.Context, ownerID uint, status string) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, task *models.Task) error
	Toggle(ctx context.Context, task *models.Task) error
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Comments").Create(task).Error
}

func (r *taskRepository) FindByID(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the owner's tasks, newest first, optionally narrowed to
// completed or pending ones.
func (r *taskRepository) List(ctx context.Context, ownerID uint, status string) ([]models.Task, error) {
	var tasks []models.Task
	db := r.db.WithContext(ctx).Where("tasks.user_id = ?", ownerID)
	switch status {
	case TaskFilterCompleted:
		db = db.Scopes(Completed)
	case TaskFilterPending:
		db = db.Scopes(Pending)
	}
	err := db.Order("tasks.created_at DESC").Order("tasks.id DESC").Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Comments").Save(task).Error
}

// Delete removes the task and the comments left on it.
func (r *taskRepository) Delete(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("commentable_type = ? AND commentable_id = ?", models.CommentableTasks, task.ID).
			Delete(&models.Comment{}).Error
		if err != nil {
			return err
		}
		return tx.Delete(task).Error
	})
}

func (r *taskRepository) Toggle(ctx context.Context, task *models.Task) error {
	next := !task.IsCompleted
	if err := r.db.WithContext(ctx).Model(task).Update("is_completed", next).Error; err != nil {
		return err
	}
	task.IsCompleted = next
	return nil
}
