package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blogdesk/massassign"
	"blogdesk/models"
	"blogdesk/policies"
	"blogdesk/repositories"
	"blogdesk/storage"
)

const (
	// MaxImageSize is the upload limit for post images, 2048 KiB.
	MaxImageSize = 2048 * 1024
	imageDir     = "posts"
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// ImageUpload is one uploaded file.
type ImageUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type PostService interface {
	List(ctx context.Context, actor *models.User, q repositories.PostQuery) ([]models.Post, int64, error)
	Resolve(ctx context.Context, key string) (*models.Post, error)
	Show(ctx context.Context, actor *models.User, post *models.Post, countView bool) (*models.Post, error)
	Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Post, error)
	Update(ctx context.Context, actor *models.User, post *models.Post, attrs Attributes) (*models.Post, error)
	UploadImage(ctx context.Context, actor *models.User, post *models.Post, upload ImageUpload) (*models.Post, error)
	Delete(ctx context.Context, actor *models.User, post *models.Post) error
	Trash(ctx context.Context, actor *models.User, page, pageSize int) ([]models.Post, int64, error)
	Restore(ctx context.Context, actor *models.User, id uint) (*models.Post, error)
	ForceDelete(ctx context.Context, actor *models.User, id uint) error
	EmptyTrash(ctx context.Context, actor *models.User) (int, error)
	Like(ctx context.Context, actor *models.User, post *models.Post) (*models.Post, error)
	ImageURL(key string) string
}

type postService struct {
	db         *gorm.DB
	posts      repositories.PostRepository
	categories repositories.CategoryRepository
	tags       repositories.TagRepository
	store      storage.ImageStore
	validator  *Validator
	policy     policies.PostPolicy
	log        *zap.Logger
}

var _ PostService = (*postService)(nil)

func NewPostService(db *gorm.DB, store storage.ImageStore, v *Validator, log *zap.Logger) PostService {
	return &postService{
		db:         db,
		posts:      repositories.NewPostRepository(db),
		categories: repositories.NewCategoryRepository(db),
		tags:       repositories.NewTagRepository(db),
		store:      store,
		validator:  v,
		log:        log.Named("posts"),
	}
}

func (s *postService) ImageURL(key string) string {
	return s.store.URL(key)
}

// List applies the query on behalf of actor. Guests only ever see
// published posts; drafts are limited to the actor's own unless they
// manage all posts.
func (s *postService) List(ctx context.Context, actor *models.User, q repositories.PostQuery) ([]models.Post, int64, error) {
	verr := &ValidationError{}
	switch q.Status {
	case "", repositories.StatusPublished:
	case repositories.StatusDraft, repositories.StatusAll:
		if actor == nil {
			return nil, 0, errors.Wrap(ErrUnauthorized, "log in to list drafts")
		}
		if !s.policy.ManageAll(actor) {
			q.AuthorID = actor.ID
		}
	default:
		verr.Add("status", "The selected status is invalid.")
	}
	switch q.Sort {
	case "", repositories.SortLatest, repositories.SortPopular, repositories.SortTrending:
	default:
		verr.Add("sort", "The selected sort is invalid.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, 0, err
	}

	q.Page, q.PageSize = repositories.NormalizePage(q.Page, q.PageSize)
	posts, total, err := s.posts.List(ctx, q)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list posts")
	}
	return posts, total, nil
}

// Resolve binds a route key to a live post: an all-digit key is tried as
// an id first, anything else is a slug.
func (s *postService) Resolve(ctx context.Context, key string) (*models.Post, error) {
	if id, err := strconv.ParseUint(key, 10, 64); err == nil {
		post, err := s.posts.FindByID(ctx, uint(id))
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(err, "load post")
		}
	}
	post, err := s.posts.FindBySlug(ctx, key)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return post, nil
}

// Show hides posts the actor may not view behind ErrNotFound.
func (s *postService) Show(ctx context.Context, actor *models.User, post *models.Post, countView bool) (*models.Post, error) {
	if !s.policy.View(actor, post) {
		return nil, errors.Wrap(ErrNotFound, "post")
	}
	if countView {
		if err := s.posts.IncrementViews(ctx, post.ID); err != nil {
			return nil, errors.Wrap(err, "count view")
		}
		post.Views++
	}
	return post, nil
}

func (s *postService) Create(ctx context.Context, actor *models.User, attrs Attributes) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.Create(actor) {
		return nil, errors.Wrap(ErrForbidden, "create post")
	}

	post := &models.Post{}
	tagIDs, _, err := s.fill(ctx, post, attrs, 0)
	if err != nil {
		return nil, err
	}
	post.UserID = actor.ID
	if post.IsPublished {
		now := time.Now()
		post.PublishedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := repositories.NewPostRepository(tx)
		if err := posts.Create(ctx, post); err != nil {
			return err
		}
		return posts.AppendTags(ctx, post.ID, tagIDs)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create post")
	}
	s.log.Info("Post created", zap.Uint("post_id", post.ID), zap.String("slug", post.Slug), zap.Uint("user_id", actor.ID))
	return s.reload(ctx, post.ID)
}

// Update replaces the post's editable fields. published_at is stamped only
// when a draft becomes published. A request without "tags" detaches all
// tags.
func (s *postService) Update(ctx context.Context, actor *models.User, post *models.Post, attrs Attributes) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.Update(actor, post) {
		return nil, errors.Wrap(ErrForbidden, "update post")
	}

	updated := *post
	updated.User, updated.Category, updated.Tags, updated.Comments = models.User{}, models.Category{}, nil, nil
	tagIDs, tagsGiven, err := s.fill(ctx, &updated, attrs, post.ID)
	if err != nil {
		return nil, err
	}
	if updated.Slug == "" {
		updated.Slug = post.Slug
	}
	if updated.IsPublished && !post.IsPublished {
		now := time.Now()
		updated.PublishedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := repositories.NewPostRepository(tx)
		if err := posts.Update(ctx, &updated); err != nil {
			return err
		}
		if tagsGiven {
			return posts.ReplaceTags(ctx, updated.ID, tagIDs)
		}
		return posts.ClearTags(ctx, updated.ID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "update post")
	}
	return s.reload(ctx, post.ID)
}

// fill mass-assigns attrs onto post and validates the result, including
// the category, tag and slug lookups. It returns the requested tag ids and
// whether "tags" was present at all.
func (s *postService) fill(ctx context.Context, post *models.Post, attrs Attributes, exceptID uint) ([]uint, bool, error) {
	verr := &ValidationError{}
	requirePresent(verr, attrs, "title", "body", "category_id")

	discarded, err := massassign.Fill(post, attrs, models.PostGuard)
	if err != nil {
		verr.Add("attributes", "One or more attributes have the wrong type.")
		return nil, false, verr
	}
	if len(discarded) > 0 {
		s.log.Debug("Ignored non-fillable post attributes", zap.Strings("keys", discarded))
	}

	if err := s.validator.Struct(post); err != nil {
		var fields *ValidationError
		if !errors.As(err, &fields) {
			return nil, false, err
		}
		for k, v := range fields.Fields {
			verr.Add(k, v)
		}
	}

	if raw := strings.TrimSpace(post.Slug); raw != "" {
		post.Slug = slug.Make(raw)
		checkSlug(verr, post.Slug, models.PostSlugMax)
		taken, err := s.posts.SlugExists(ctx, post.Slug, exceptID)
		if err != nil {
			return nil, false, errors.Wrap(err, "check slug")
		}
		if taken {
			verr.Add("slug", "The slug has already been taken.")
		}
	} else {
		post.Slug = ""
	}

	if post.CategoryID != 0 {
		if _, err := s.categories.FindByID(ctx, post.CategoryID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, errors.Wrap(err, "check category")
			}
			verr.Add("category_id", "The selected category id is invalid.")
		}
	}

	rawTags, tagsGiven := attrs["tags"]
	tagIDs, err := idList(rawTags)
	if err != nil {
		verr.Add("tags", "The tags field must be an array.")
	} else if len(tagIDs) > 0 {
		found, err := s.tags.FindByIDs(ctx, tagIDs)
		if err != nil {
			return nil, false, errors.Wrap(err, "check tags")
		}
		if len(found) != len(tagIDs) {
			verr.Add("tags", "The selected tags is invalid.")
		}
	}

	return tagIDs, tagsGiven, verr.OrNil()
}

// UploadImage stores a jpeg, png or gif of at most MaxImageSize as the
// post's image and removes the one it replaces.
func (s *postService) UploadImage(ctx context.Context, actor *models.User, post *models.Post, upload ImageUpload) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !s.policy.Update(actor, post) {
		return nil, errors.Wrap(ErrForbidden, "update post")
	}
	if upload.Content == nil || upload.Size == 0 {
		return nil, fieldError("image", "The image field is required.")
	}
	if upload.Size > MaxImageSize {
		return nil, fieldError("image", "The image field must not be greater than 2048 kilobytes.")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "read upload")
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fieldError("image", "The image field must be a file of type: jpeg, png, jpg, gif.")
	}

	key := fmt.Sprintf("%s/%s.%s", imageDir, uuid.NewString(), ext)
	body := io.MultiReader(bytes.NewReader(head), upload.Content)
	if err := s.store.Put(ctx, key, body, upload.Size, contentType); err != nil {
		return nil, errors.Wrap(err, "store image")
	}

	previous := post.Image
	err = s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Update("image", key).Error
	if err != nil {
		s.removeImage(ctx, key)
		return nil, errors.Wrap(err, "save image path")
	}
	if previous != nil {
		s.removeImage(ctx, *previous)
	}
	s.log.Info("Post image stored", zap.Uint("post_id", post.ID), zap.String("key", key))
	return s.reload(ctx, post.ID)
}

func (s *postService) removeImage(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("Failed to delete image", zap.String("key", key), zap.Error(err))
	}
}

// Delete moves the post to the trash.
func (s *postService) Delete(ctx context.Context, actor *models.User, post *models.Post) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if !s.policy.Delete(actor, post) {
		return errors.Wrap(ErrForbidden, "delete post")
	}
	if err := s.posts.Delete(ctx, post); err != nil {
		return errors.Wrap(err, "delete post")
	}
	s.log.Info("Post trashed", zap.Uint("post_id", post.ID), zap.Uint("by", actor.ID))
	return nil
}

// Trash lists the actor's trashed posts, or everyone's for post managers.
func (s *postService) Trash(ctx context.Context, actor *models.User, page, pageSize int) ([]models.Post, int64, error) {
	if actor == nil {
		return nil, 0, ErrUnauthorized
	}
	posts, total, err := s.posts.Trash(ctx, s.trashOwner(actor), page, pageSize)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list trash")
	}
	return posts, total, nil
}

func (s *postService) trashOwner(actor *models.User) uint {
	if s.policy.ManageAll(actor) {
		return 0
	}
	return actor.ID
}

func (s *postService) Restore(ctx context.Context, actor *models.User, id uint) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	post, err := s.posts.FindTrashedByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "trashed post")
	}
	if !s.policy.Restore(actor, post) {
		return nil, errors.Wrap(ErrForbidden, "restore post")
	}
	if err := s.posts.Restore(ctx, post); err != nil {
		return nil, errors.Wrap(err, "restore post")
	}
	s.log.Info("Post restored", zap.Uint("post_id", id), zap.Uint("by", actor.ID))
	return s.reload(ctx, id)
}

// ForceDelete permanently removes a trashed post with its image, tag links
// and comments.
func (s *postService) ForceDelete(ctx context.Context, actor *models.User, id uint) error {
	if actor == nil {
		return ErrUnauthorized
	}
	post, err := s.posts.FindTrashedByID(ctx, id)
	if err != nil {
		return notFound(err, "trashed post")
	}
	if !s.policy.ForceDelete(actor, post) {
		return errors.Wrap(ErrForbidden, "force delete post")
	}
	return s.purge(ctx, post)
}

func (s *postService) purge(ctx context.Context, post *models.Post) error {
	if err := s.posts.ForceDelete(ctx, post); err != nil {
		return errors.Wrap(err, "force delete post")
	}
	if post.Image != nil {
		s.removeImage(ctx, *post.Image)
	}
	s.log.Info("Post permanently deleted", zap.Uint("post_id", post.ID))
	return nil
}

// EmptyTrash permanently deletes every trashed post the actor may and
// returns how many went.
func (s *postService) EmptyTrash(ctx context.Context, actor *models.User) (int, error) {
	if actor == nil {
		return 0, ErrUnauthorized
	}
	ids, err := s.posts.TrashedIDs(ctx, s.trashOwner(actor))
	if err != nil {
		return 0, errors.Wrap(err, "list trash")
	}
	purged := 0
	for _, id := range ids {
		post, err := s.posts.FindTrashedByID(ctx, id)
		if err != nil {
			return purged, notFound(err, "trashed post")
		}
		if err := s.purge(ctx, post); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (s *postService) Like(ctx context.Context, actor *models.User, post *models.Post) (*models.Post, error) {
	if !s.policy.View(actor, post) {
		return nil, errors.Wrap(ErrNotFound, "post")
	}
	if err := s.posts.IncrementLikes(ctx, post.ID); err != nil {
		return nil, notFound(err, "post")
	}
	post.Likes++
	return post, nil
}

func (s *postService) reload(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return post, nil
}
