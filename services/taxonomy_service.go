package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blogdesk/massassign"
	"blogdesk/models"
	"blogdesk/policies"
	"blogdesk/repositories"
)

type CategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Resolve(ctx context.Context, key string) (*models.Category, error)
	Posts(ctx context.Context, category *models.Category, page, pageSize int) ([]models.Post, int64, error)
	Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Category, error)
}

type TagService interface {
	List(ctx context.Context) ([]models.Tag, error)
	Resolve(ctx context.Context, key string) (*models.Tag, error)
	Posts(ctx context.Context, tag *models.Tag, page, pageSize int) ([]models.Post, int64, error)
	Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Tag, error)
}

type categoryService struct {
	categories repositories.CategoryRepository
	posts      repositories.PostRepository
	validator  *Validator
	policy     policies.TaxonomyPolicy
	log        *zap.Logger
}

func NewCategoryService(db *gorm.DB, v *Validator, log *zap.Logger) CategoryService {
	return &categoryService{
		categories: repositories.NewCategoryRepository(db),
		posts:      repositories.NewPostRepository(db),
		validator:  v,
		log:        log.Named("categories"),
	}
}

// List returns all categories by name with their post counts.
func (s *categoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.ListWithPostCounts(ctx)
	return categories, errors.Wrap(err, "list categories")
}

func (s *categoryService) Resolve(ctx context.Context, key string) (*models.Category, error) {
	c, err := s.categories.FindBySlug(ctx, key)
	if err != nil {
		return nil, notFound(err, "category")
	}
	return c, nil
}

// Posts pages through the category's published posts, latest first.
func (s *categoryService) Posts(ctx context.Context, category *models.Category, page, pageSize int) ([]models.Post, int64, error) {
	page, pageSize = repositories.NormalizePage(page, pageSize)
	posts, total, err := s.posts.List(ctx, repositories.PostQuery{CategoryID: category.ID, Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, errors.Wrap(err, "list category posts")
	}
	return posts, total, nil
}

func (s *categoryService) Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Category, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.CreateCategory(actor) {
		return nil, errors.Wrap(ErrForbidden, "create category")
	}

	verr := &ValidationError{}
	requirePresent(verr, attrs, "name")
	c := &models.Category{}
	if _, err := massassign.Fill(c, attrs, models.CategoryGuard); err != nil {
		return nil, fieldError("attributes", "One or more attributes have the wrong type.")
	}
	if err := mergeValidation(verr, s.validator.Struct(c)); err != nil {
		return nil, err
	}
	c.Slug = slugFor(verr, c.Slug, c.Name, models.CategorySlugMax)
	if c.Slug != "" {
		taken, err := s.categories.SlugExists(ctx, c.Slug)
		if err != nil {
			return nil, errors.Wrap(err, "check slug")
		}
		if taken {
			verr.Add("slug", "The slug has already been taken.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.categories.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	s.log.Info("Category created", zap.String("slug", c.Slug))
	return c, nil
}

type tagService struct {
	tags      repositories.TagRepository
	posts     repositories.PostRepository
	validator *Validator
	policy    policies.TaxonomyPolicy
	log       *zap.Logger
}

func NewTagService(db *gorm.DB, v *Validator, log *zap.Logger) TagService {
	return &tagService{
		tags:      repositories.NewTagRepository(db),
		posts:     repositories.NewPostRepository(db),
		validator: v,
		log:       log.Named("tags"),
	}
}

func (s *tagService) List(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.ListWithPostCounts(ctx)
	return tags, errors.Wrap(err, "list tags")
}

func (s *tagService) Resolve(ctx context.Context, key string) (*models.Tag, error) {
	t, err := s.tags.FindBySlug(ctx, key)
	if err != nil {
		return nil, notFound(err, "tag")
	}
	return t, nil
}

func (s *tagService) Posts(ctx context.Context, tag *models.Tag, page, pageSize int) ([]models.Post, int64, error) {
	page, pageSize = repositories.NormalizePage(page, pageSize)
	posts, total, err := s.posts.List(ctx, repositories.PostQuery{TagID: tag.ID, Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, errors.Wrap(err, "list tag posts")
	}
	return posts, total, nil
}

func (s *tagService) Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Tag, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.CreateTag(actor) {
		return nil, errors.Wrap(ErrForbidden, "create tag")
	}

	verr := &ValidationError{}
	requirePresent(verr, attrs, "name")
	t := &models.Tag{}
	if _, err := massassign.Fill(t, attrs, models.TagGuard); err != nil {
		return nil, fieldError("attributes", "One or more attributes have the wrong type.")
	}
	if err := mergeValidation(verr, s.validator.Struct(t)); err != nil {
		return nil, err
	}
	t.Slug = slugFor(verr, t.Slug, t.Name, models.TagSlugMax)
	if t.Slug != "" {
		taken, err := s.tags.SlugExists(ctx, t.Slug)
		if err != nil {
			return nil, errors.Wrap(err, "check slug")
		}
		if taken {
			verr.Add("slug", "The slug has already been taken.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.tags.Create(ctx, t); err != nil {
		return nil, errors.Wrap(err, "create tag")
	}
	s.log.Info("Tag created", zap.String("slug", t.Slug))
	return t, nil
}

// slugFor slugs the given value, falling back to the name. A slug made
// from the name is cut to limit; a given one that outgrows limit is rejected.
func slugFor(verr *ValidationError, given, name string, limit int) string {
	if strings.TrimSpace(given) != "" {
		out := slug.Make(given)
		checkSlug(verr, out, limit)
		return out
	}
	out := models.MakeSlug(name, limit)
	if out == "" && strings.TrimSpace(name) != "" {
		verr.Add("slug", "The slug must contain at least one letter or digit.")
	}
	return out
}

func checkSlug(verr *ValidationError, s string, limit int) {
	switch {
	case s == "":
		verr.Add("slug", "The slug must contain at least one letter or digit.")
	case len(s) > limit:
		verr.Add("slug", fmt.Sprintf("The slug must not be greater than %d characters.", limit))
	}
}

// mergeValidation folds a validator result into verr. Errors that are not
// validation errors are returned as they are.
func mergeValidation(verr *ValidationError, err error) error {
	if err == nil {
		return nil
	}
	var fields *ValidationError
	if !errors.As(err, &fields) {
		return err
	}
	for k, v := range fields.Fields {
		verr.Add(k, v)
	}
	return nil
}
