package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blogdesk/models"
)

const (
	SortLatest   = "latest"
	SortPopular  = "popular"
	SortTrending = "trending"

	StatusPublished = "published"
	StatusDraft     = "draft"
	StatusAll       = "all"

	// TrendingWindowDays bounds how far back trending looks.
	TrendingWindowDays = 7
)

// PostQuery describes a post listing. Zero fields do not filter.
type PostQuery struct {
	Search     string
	CategoryID uint
	TagID      uint
	AuthorID   uint
	// Status is published, draft or all; empty means published.
	Status     string
	Featured   bool
	MinViews   int
	RecentDays int
	// From and To bound created_at; a zero bound is open.
	From       time.Time
	To         time.Time
	Sort       string
	Page       int
	PageSize   int
}

// scopes returns the listing's filters and, when ordered, its ordering.
// Counts run unordered.
func (q PostQuery) scopes(ordered bool) []Scope {
	var scopes []Scope
	switch q.Status {
	case StatusAll:
	case StatusDraft:
		scopes = append(scopes, Draft)
	default:
		scopes = append(scopes, Published)
	}
	if q.Search != "" {
		scopes = append(scopes, Search(q.Search))
	}
	if q.CategoryID != 0 {
		scopes = append(scopes, ByCategory(q.CategoryID))
	}
	if q.TagID != 0 {
		scopes = append(scopes, WithTags(q.TagID))
	}
	if q.AuthorID != 0 {
		scopes = append(scopes, ByAuthor(q.AuthorID))
	}
	if q.Featured {
		scopes = append(scopes, Featured)
	}
	if q.MinViews > 0 {
		scopes = append(scopes, Popular(q.MinViews))
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		scopes = append(scopes, DateRange(q.From, q.To))
	}

	switch {
	case q.RecentDays > 0:
		scopes = append(scopes, Recent(q.RecentDays))
	case q.Sort == SortTrending && ordered:
		return append(scopes, Trending(TrendingWindowDays))
	case q.Sort == SortTrending:
		scopes = append(scopes, Recent(TrendingWindowDays))
	}
	if ordered {
		scopes = append(scopes, q.order())
	}
	return scopes
}

func (q PostQuery) order() Scope {
	switch q.Sort {
	case SortPopular:
		return PopularFirst
	case SortTrending:
		return TrendingFirst
	default:
		return Latest
	}
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id uint) (*models.Post, error)
	FindBySlug(ctx context.Context, slug string) (*models.Post, error)
	FindTrashedByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error
	Restore(ctx context.Context, post *models.Post) error
	ForceDelete(ctx context.Context, post *models.Post) error
	List(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	Trash(ctx context.Context, ownerID uint, page, pageSize int) ([]models.Post, int64, error)
	TrashedIDs(ctx context.Context, ownerID uint) ([]uint, error)
	ReplaceTags(ctx context.Context, postID uint, tagIDs []uint) error
	AppendTags(ctx context.Context, postID uint, tagIDs []uint) error
	ClearTags(ctx context.Context, postID uint) error
	IncrementViews(ctx context.Context, id uint) error
	IncrementLikes(ctx context.Context, id uint) error
	SlugExists(ctx context.Context, slug string, exceptID uint) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func withPostRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Category").Preload("User").Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.name")
	})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

// FindByID loads a live post with category, author and tags.
func (r *postRepository) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Scopes(withPostRelations).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Scopes(withPostRelations).Where("posts.slug = ?", slug).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FindTrashedByID only finds soft-deleted posts.
func (r *postRepository) FindTrashedByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Scopes(OnlyTrashed, withPostRelations).Where("posts.id = ?", id).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// postEditableColumns are the columns Update writes. Counters, featuring,
// ownership and the image have their own writers.
var postEditableColumns = []string{"title", "slug", "body", "category_id", "is_published", "published_at", "updated_at"}

// Update writes the post's editable columns only, so counters bumped
// concurrently are kept.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Select(postEditableColumns).
		Updates(post).Error
}

// Delete soft-deletes the post; its tag links and comments stay so a
// restore brings it back whole.
func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Delete(post).Error
}

func (r *postRepository) Restore(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Scopes(WithTrashed).Model(post).Update("deleted_at", nil).Error
	if err != nil {
		return err
	}
	post.DeletedAt = gorm.DeletedAt{}
	return nil
}

// ForceDelete removes the row for good together with its tag links and
// comments.
func (r *postRepository) ForceDelete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		err := tx.Where("commentable_type = ? AND commentable_id = ?", models.CommentablePosts, post.ID).
			Delete(&models.Comment{}).Error
		if err != nil {
			return err
		}
		return tx.Unscoped().Delete(post).Error
	})
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]models.Post, int64, error) {
	var posts []models.Post
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Scopes(q.scopes(false)...).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Model(&models.Post{}).
		Scopes(q.scopes(true)...).
		Scopes(withPostRelations, Paginate(q.Page, q.PageSize)).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Trash lists soft-deleted posts, most recently deleted first. ownerID 0
// lists every author's.
func (r *postRepository) Trash(ctx context.Context, ownerID uint, page, pageSize int) ([]models.Post, int64, error) {
	var posts []models.Post
	var total int64

	filters := []Scope{OnlyTrashed}
	if ownerID != 0 {
		filters = append(filters, ByAuthor(ownerID))
	}
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Scopes(filters...).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Model(&models.Post{}).
		Scopes(filters...).
		Scopes(withPostRelations, Paginate(page, pageSize)).
		Order("posts.deleted_at DESC").
		Order("posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) TrashedIDs(ctx context.Context, ownerID uint) ([]uint, error) {
	var ids []uint
	db := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(OnlyTrashed)
	if ownerID != 0 {
		db = db.Scopes(ByAuthor(ownerID))
	}
	err := db.Order("posts.id").Pluck("posts.id", &ids).Error
	return ids, err
}

// ReplaceTags makes tagIDs the post's exact tag set. Links that survive
// keep their original created_at.
func (r *postRepository) ReplaceTags(ctx context.Context, postID uint, tagIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("post_id = ?", postID)
		if len(tagIDs) > 0 {
			del = del.Where("tag_id NOT IN ?", tagIDs)
		}
		if err := del.Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		return insertPostTags(tx, postID, tagIDs)
	})
}

func (r *postRepository) AppendTags(ctx context.Context, postID uint, tagIDs []uint) error {
	return insertPostTags(r.db.WithContext(ctx), postID, tagIDs)
}

func (r *postRepository) ClearTags(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.PostTag{}).Error
}

func insertPostTags(db *gorm.DB, postID uint, tagIDs []uint) error {
	if len(tagIDs) == 0 {
		return nil
	}
	links := make([]models.PostTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, models.PostTag{PostID: postID, TagID: id})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

// IncrementViews bumps the counter without touching updated_at.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "views")
}

func (r *postRepository) IncrementLikes(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "likes")
}

func (r *postRepository) increment(ctx context.Context, id uint, column string) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SlugExists also looks at trashed posts, which still own their slug.
func (r *postRepository) SlugExists(ctx context.Context, slug string, exceptID uint) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).Scopes(WithTrashed).Model(&models.Post{}).Where("slug = ?", slug)
	if exceptID != 0 {
		db = db.Where("id <> ?", exceptID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
