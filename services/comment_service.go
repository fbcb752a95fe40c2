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

// CommentService manages comments on any commentable. The target is named
// by its type ("posts" or "tasks") and id and must be visible to the actor.
type CommentService interface {
	List(ctx context.Context, actor *models.User, kind string, id uint, page, pageSize int) ([]models.Comment, int64, error)
	Create(ctx context.Context, actor *models.User, kind string, id uint, attrs Attributes) (*models.Comment, error)
	Delete(ctx context.Context, actor *models.User, commentID uint) error
}

type commentService struct {
	comments  repositories.CommentRepository
	posts     repositories.PostRepository
	tasks     repositories.TaskRepository
	validator *Validator
	policy    policies.CommentPolicy
	log       *zap.Logger
}

func NewCommentService(db *gorm.DB, v *Validator, log *zap.Logger) CommentService {
	return &commentService{
		comments:  repositories.NewCommentRepository(db),
		posts:     repositories.NewPostRepository(db),
		tasks:     repositories.NewTaskRepository(db),
		validator: v,
		log:       log.Named("comments"),
	}
}

// target checks that the commentable exists and that actor may see it.
func (s *commentService) target(ctx context.Context, actor *models.User, kind string, id uint) error {
	switch kind {
	case models.CommentablePosts:
		post, err := s.posts.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "post")
		}
		if !(policies.PostPolicy{}).View(actor, post) {
			return errors.Wrap(ErrNotFound, "post")
		}
	case models.CommentableTasks:
		if actor == nil {
			return ErrUnauthorized
		}
		task, err := s.tasks.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "task")
		}
		if !(policies.TaskPolicy{}).View(actor, task) {
			return errors.Wrap(ErrForbidden, "view task")
		}
	default:
		return errors.Wrapf(ErrNotFound, "commentable type %q", kind)
	}
	return nil
}

func (s *commentService) List(ctx context.Context, actor *models.User, kind string, id uint, page, pageSize int) ([]models.Comment, int64, error) {
	if err := s.target(ctx, actor, kind, id); err != nil {
		return nil, 0, err
	}
	page, pageSize = repositories.NormalizePage(page, pageSize)
	comments, total, err := s.comments.ListFor(ctx, kind, id, page, pageSize)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list comments")
	}
	return comments, total, nil
}

func (s *commentService) Create(ctx context.Context, actor *models.User, kind string, id uint, attrs Attributes) (*models.Comment, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.Create(actor) {
		return nil, errors.Wrap(ErrForbidden, "create comment")
	}
	if err := s.target(ctx, actor, kind, id); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	requirePresent(verr, attrs, "body")
	comment := &models.Comment{}
	if _, err := massassign.Fill(comment, attrs, models.CommentGuard); err != nil {
		return nil, fieldError("attributes", "One or more attributes have the wrong type.")
	}
	if err := mergeValidation(verr, s.validator.Struct(comment)); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	comment.UserID = actor.ID
	comment.CommentableType = kind
	comment.CommentableID = id

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, errors.Wrap(err, "create comment")
	}
	s.log.Info("Comment created",
		zap.Uint("comment_id", comment.ID),
		zap.String("commentable_type", kind),
		zap.Uint("commentable_id", id),
		zap.Uint("user_id", actor.ID))
	return s.comments.FindByID(ctx, comment.ID)
}

func (s *commentService) Delete(ctx context.Context, actor *models.User, commentID uint) error {
	if actor == nil {
		return ErrUnauthorized
	}
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return notFound(err, "comment")
	}
	if !s.policy.Delete(actor, comment) {
		return errors.Wrap(ErrForbidden, "delete comment")
	}
	if err := s.comments.Delete(ctx, comment); err != nil {
		return errors.Wrap(err, "delete comment")
	}
	return nil
}
