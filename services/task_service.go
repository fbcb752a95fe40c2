package services

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blogdesk/massassign"
	"blogdesk/models"
	"blogdesk/policies"
	"blogdesk/repositories"
)

type TaskService interface {
	List(ctx context.Context, actor *models.User, status string) ([]models.Task, error)
	Get(ctx context.Context, actor *models.User, id uint) (*models.Task, error)
	Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Task, error)
	Update(ctx context.Context, actor *models.User, id uint, attrs Attributes) (*models.Task, error)
	Delete(ctx context.Context, actor *models.User, id uint) error
	Toggle(ctx context.Context, actor *models.User, id uint) (*models.Task, error)
}

type taskService struct {
	tasks     repositories.TaskRepository
	validator *Validator
	policy    policies.TaskPolicy
	log       *zap.Logger
}

func NewTaskService(db *gorm.DB, v *Validator, log *zap.Logger) TaskService {
	return &taskService{
		tasks:     repositories.NewTaskRepository(db),
		validator: v,
		log:       log.Named("tasks"),
	}
}

// List returns the actor's tasks. status is "", "completed" or "pending".
func (s *taskService) List(ctx context.Context, actor *models.User, status string) ([]models.Task, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	switch status {
	case "", repositories.TaskFilterCompleted, repositories.TaskFilterPending:
	default:
		return nil, fieldError("status", "The selected status is invalid.")
	}
	tasks, err := s.tasks.List(ctx, actor.ID, status)
	return tasks, errors.Wrap(err, "list tasks")
}

// Get loads a task the actor owns. Somebody else's task is ErrForbidden.
func (s *taskService) Get(ctx context.Context, actor *models.User, id uint) (*models.Task, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task")
	}
	if !s.policy.View(actor, task) {
		return nil, errors.Wrap(ErrForbidden, "view task")
	}
	return task, nil
}

// Create adds a pending task owned by the actor.
func (s *taskService) Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Task, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.Create(actor) {
		return nil, errors.Wrap(ErrForbidden, "create task")
	}
	task := &models.Task{}
	if err := s.fill(task, attrs); err != nil {
		return nil, err
	}
	task.UserID = actor.ID
	task.IsCompleted = false

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, errors.Wrap(err, "create task")
	}
	s.log.Info("Task created", zap.Uint("task_id", task.ID), zap.Uint("user_id", actor.ID))
	return task, nil
}

func (s *taskService) Update(ctx context.Context, actor *models.User, id uint, attrs Attributes) (*models.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Update(actor, task) {
		return nil, errors.Wrap(ErrForbidden, "update task")
	}
	if err := s.fill(task, attrs); err != nil {
		return nil, err
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, errors.Wrap(err, "update task")
	}
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, actor *models.User, id uint) error {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !s.policy.Delete(actor, task) {
		return errors.Wrap(ErrForbidden, "delete task")
	}
	if err := s.tasks.Delete(ctx, task); err != nil {
		return errors.Wrap(err, "delete task")
	}
	s.log.Info("Task deleted", zap.Uint("task_id", id), zap.Uint("user_id", actor.ID))
	return nil
}

// Toggle flips the task between pending and completed.
func (s *taskService) Toggle(ctx context.Context, actor *models.User, id uint) (*models.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Update(actor, task) {
		return nil, errors.Wrap(ErrForbidden, "update task")
	}
	if err := s.tasks.Toggle(ctx, task); err != nil {
		return nil, errors.Wrap(err, "toggle task")
	}
	return task, nil
}

func (s *taskService) fill(task *models.Task, attrs Attributes) error {
	verr := &ValidationError{}
	requirePresent(verr, attrs, "title")
	if _, err := massassign.Fill(task, attrs, models.TaskGuard); err != nil {
		return fieldError("attributes", "One or more attributes have the wrong type.")
	}
	if err := mergeValidation(verr, s.validator.Struct(task)); err != nil {
		return err
	}
	return verr.OrNil()
}
