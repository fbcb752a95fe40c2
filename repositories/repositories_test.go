package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"blogdesk/models"
	"blogdesk/testutil"
)

type fixture struct {
	db     *gorm.DB
	author *models.User
	other  *models.User
	tech   *models.Category
	life   *models.Category
	goTag  *models.Tag
	sqlTag *models.Tag
	posts  PostRepository
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t)
	return &fixture{
		db:     db,
		author: testutil.CreateUser(t, db, "author"),
		other:  testutil.CreateUser(t, db, "other"),
		tech:   testutil.CreateCategory(t, db, "Technology"),
		life:   testutil.CreateCategory(t, db, "Life"),
		goTag:  testutil.CreateTag(t, db, "Go"),
		sqlTag: testutil.CreateTag(t, db, "SQL"),
		posts:  NewPostRepository(db),
		ctx:    context.Background(),
	}
}

func (f *fixture) post(t *testing.T, title string, published bool, mutate func(*models.Post), tags ...*models.Tag) *models.Post {
	p := models.Post{Title: title, Body: "body of " + title, IsPublished: published, UserID: f.author.ID, CategoryID: f.tech.ID}
	if mutate != nil {
		mutate(&p)
	}
	return testutil.CreatePost(t, f.db, p, tags...)
}

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestPostListDefaultsToPublishedLatest(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.post(t, "Old", true, func(p *models.Post) { p.CreatedAt = now.Add(-48 * time.Hour) })
	f.post(t, "New", true, func(p *models.Post) { p.CreatedAt = now.Add(-time.Hour) })
	f.post(t, "Hidden draft", false, nil)

	posts, total, err := f.posts.List(f.ctx, PostQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"New", "Old"}, titles(posts))
	assert.Equal(t, "Technology", posts[0].Category.Name)
	assert.Equal(t, "author", posts[0].User.Username)

	drafts, total, err := f.posts.List(f.ctx, PostQuery{Status: StatusDraft})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []string{"Hidden draft"}, titles(drafts))
}

func TestPostListFilters(t *testing.T) {
	f := newFixture(t)
	f.post(t, "Learning Go", true, func(p *models.Post) { p.Views = 150; p.IsFeatured = true }, f.goTag)
	f.post(t, "Joins explained", true, func(p *models.Post) { p.CategoryID = f.life.ID; p.Body = "golang and sql" }, f.sqlTag)
	f.post(t, "Other author", true, func(p *models.Post) { p.UserID = f.other.ID })

	cases := []struct {
		name  string
		query PostQuery
		want  []string
	}{
		{"search title or body", PostQuery{Search: "go", Sort: SortPopular}, []string{"Learning Go", "Joins explained"}},
		{"category", PostQuery{CategoryID: f.life.ID}, []string{"Joins explained"}},
		{"tag", PostQuery{TagID: f.goTag.ID}, []string{"Learning Go"}},
		{"author", PostQuery{AuthorID: f.other.ID}, []string{"Other author"}},
		{"featured", PostQuery{Featured: true}, []string{"Learning Go"}},
		{"popular", PostQuery{MinViews: 100}, []string{"Learning Go"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			posts, total, err := f.posts.List(f.ctx, tc.query)
			require.NoError(t, err)
			assert.EqualValues(t, len(tc.want), total)
			assert.ElementsMatch(t, tc.want, titles(posts))
		})
	}
}

func TestPostListSortingAndPaging(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.post(t, "Viewed", true, func(p *models.Post) { p.Views = 30; p.Likes = 0 })
	f.post(t, "Liked", true, func(p *models.Post) { p.Views = 10; p.Likes = 15 })
	f.post(t, "Stale", true, func(p *models.Post) { p.Views = 1000; p.CreatedAt = now.AddDate(0, 0, -30) })

	popular, _, err := f.posts.List(f.ctx, PostQuery{Sort: SortPopular})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stale", "Viewed", "Liked"}, titles(popular))

	trending, total, err := f.posts.List(f.ctx, PostQuery{Sort: SortTrending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"Liked", "Viewed"}, titles(trending))

	page, total, err := f.posts.List(f.ctx, PostQuery{Sort: SortPopular, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"Liked"}, titles(page))
}

func TestPostSoftDeleteRestoreAndForceDelete(t *testing.T) {
	f := newFixture(t)
	p := f.post(t, "Trash me", true, nil, f.goTag, f.sqlTag)
	comments := NewCommentRepository(f.db)
	require.NoError(t, comments.Create(f.ctx, &models.Comment{Body: "hi", UserID: f.other.ID, CommentableType: models.CommentablePosts, CommentableID: p.ID}))

	require.NoError(t, f.posts.Delete(f.ctx, p))
	_, err := f.posts.FindByID(f.ctx, p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	trashed, err := f.posts.FindTrashedByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, trashed.Trashed())
	assert.Len(t, trashed.Tags, 2, "soft delete keeps tag links")

	items, total, err := f.posts.Trash(f.ctx, f.author.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, p.ID, items[0].ID)

	_, total, err = f.posts.Trash(f.ctx, f.other.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, f.posts.Restore(f.ctx, trashed))
	restored, err := f.posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, restored.Tags, 2)

	require.NoError(t, f.posts.Delete(f.ctx, restored))
	ids, err := f.posts.TrashedIDs(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{p.ID}, ids)

	require.NoError(t, f.posts.ForceDelete(f.ctx, restored))
	_, err = f.posts.FindTrashedByID(f.ctx, p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var links, left int64
	f.db.Model(&models.PostTag{}).Where("post_id = ?", p.ID).Count(&links)
	f.db.Model(&models.Comment{}).Where("commentable_id = ?", p.ID).Count(&left)
	assert.Zero(t, links)
	assert.Zero(t, left)
}

func TestPostReplaceTagsKeepsSurvivingLinks(t *testing.T) {
	f := newFixture(t)
	third := testutil.CreateTag(t, f.db, "Redis")
	p := f.post(t, "Tagged", true, nil, f.goTag, f.sqlTag)

	var before models.PostTag
	require.NoError(t, f.db.Where("post_id = ? AND tag_id = ?", p.ID, f.goTag.ID).First(&before).Error)

	require.NoError(t, f.posts.ReplaceTags(f.ctx, p.ID, []uint{f.goTag.ID, third.ID}))
	got, err := f.posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	var names []string
	for _, tag := range got.Tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"Go", "Redis"}, names)

	var after models.PostTag
	require.NoError(t, f.db.Where("post_id = ? AND tag_id = ?", p.ID, f.goTag.ID).First(&after).Error)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))

	require.NoError(t, f.posts.AppendTags(f.ctx, p.ID, []uint{third.ID, f.sqlTag.ID}))
	got, err = f.posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tags, 3)

	require.NoError(t, f.posts.ClearTags(f.ctx, p.ID))
	got, err = f.posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestPostSlugAndCounters(t *testing.T) {
	f := newFixture(t)
	first := f.post(t, "Hello World", true, nil)
	second := f.post(t, "Hello World", true, nil)
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)

	require.NoError(t, f.posts.Delete(f.ctx, second))
	exists, err := f.posts.SlugExists(f.ctx, "hello-world-1", 0)
	require.NoError(t, err)
	assert.True(t, exists, "trashed posts keep their slug")

	exists, err = f.posts.SlugExists(f.ctx, "hello-world", first.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	bySlug, err := f.posts.FindBySlug(f.ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, first.ID, bySlug.ID)

	require.NoError(t, f.posts.IncrementViews(f.ctx, first.ID))
	require.NoError(t, f.posts.IncrementLikes(f.ctx, first.ID))
	require.NoError(t, f.posts.IncrementLikes(f.ctx, first.ID))
	got, err := f.posts.FindByID(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)
	assert.Equal(t, 2, got.Likes)

	assert.ErrorIs(t, f.posts.IncrementLikes(f.ctx, second.ID), gorm.ErrRecordNotFound)
}

func TestTaxonomyPostCounts(t *testing.T) {
	f := newFixture(t)
	f.post(t, "One", true, nil, f.goTag)
	f.post(t, "Two", false, nil, f.goTag, f.sqlTag)
	gone := f.post(t, "Three", true, func(p *models.Post) { p.CategoryID = f.life.ID }, f.goTag)
	require.NoError(t, f.posts.Delete(f.ctx, gone))

	categories, err := NewCategoryRepository(f.db).ListWithPostCounts(f.ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Life", categories[0].Name)
	assert.EqualValues(t, 0, categories[0].PostsCount)
	assert.EqualValues(t, 2, categories[1].PostsCount)

	tags := NewTagRepository(f.db)
	list, err := tags.ListWithPostCounts(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Go", list[0].Name)
	assert.EqualValues(t, 2, list[0].PostsCount)
	assert.EqualValues(t, 1, list[1].PostsCount)

	bySlug, err := tags.FindBySlug(f.ctx, "go")
	require.NoError(t, err)
	assert.EqualValues(t, 2, bySlug.PostsCount)

	cat, err := NewCategoryRepository(f.db).FindBySlug(f.ctx, "technology")
	require.NoError(t, err)
	assert.EqualValues(t, 2, cat.PostsCount)
}

func TestTagFirstOrCreateAndFindByIDs(t *testing.T) {
	f := newFixture(t)
	tags := NewTagRepository(f.db)

	existing, err := tags.FirstOrCreate(f.ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, f.goTag.ID, existing.ID)

	created, err := tags.FirstOrCreate(f.ctx, "Node.js")
	require.NoError(t, err)
	assert.Equal(t, "node-js", created.Slug)

	found, err := tags.FindByIDs(f.ctx, []uint{created.ID, f.goTag.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestTaskRepository(t *testing.T) {
	f := newFixture(t)
	tasks := NewTaskRepository(f.db)
	now := time.Now()

	first := &models.Task{Title: "First", UserID: f.author.ID, CreatedAt: now.Add(-time.Hour)}
	second := &models.Task{Title: "Second", UserID: f.author.ID, CreatedAt: now}
	foreign := &models.Task{Title: "Foreign", UserID: f.other.ID}
	for _, task := range []*models.Task{first, second, foreign} {
		require.NoError(t, tasks.Create(f.ctx, task))
	}

	list, err := tasks.List(f.ctx, f.author.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Title)

	require.NoError(t, tasks.Toggle(f.ctx, first))
	assert.True(t, first.IsCompleted)

	done, err := tasks.List(f.ctx, f.author.ID, TaskFilterCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "First", done[0].Title)

	pending, err := tasks.List(f.ctx, f.author.ID, TaskFilterPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Second", pending[0].Title)

	comments := NewCommentRepository(f.db)
	require.NoError(t, comments.Create(f.ctx, &models.Comment{Body: "note", UserID: f.author.ID, CommentableType: models.CommentableTasks, CommentableID: first.ID}))
	require.NoError(t, tasks.Delete(f.ctx, first))
	_, err = tasks.FindByID(f.ctx, first.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, total, err := comments.ListFor(f.ctx, models.CommentableTasks, first.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCommentListForIsPolymorphic(t *testing.T) {
	f := newFixture(t)
	p := f.post(t, "Commented", true, nil)
	comments := NewCommentRepository(f.db)

	for i, body := range []string{"first", "second", "third"} {
		c := &models.Comment{Body: body, UserID: f.other.ID, CommentableType: models.CommentablePosts, CommentableID: p.ID}
		c.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, comments.Create(f.ctx, c))
	}
	// Same id, different commentable type.
	require.NoError(t, comments.Create(f.ctx, &models.Comment{Body: "task note", UserID: f.other.ID, CommentableType: models.CommentableTasks, CommentableID: p.ID}))

	list, total, err := comments.ListFor(f.ctx, models.CommentablePosts, p.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Body)
	assert.Equal(t, "other", list[0].User.Username)

	require.NoError(t, comments.DeleteFor(f.ctx, models.CommentablePosts, p.ID))
	_, total, err = comments.ListFor(f.ctx, models.CommentableTasks, p.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewSeededDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	admin, err := users.FindByUsername(ctx, "admin")
	require.NoError(t, err)

	ok, err := users.HasPermissions(ctx, admin.ID, models.PermUsersList, models.PermPostsManageAll)
	require.NoError(t, err)
	assert.True(t, ok)

	plain := &models.User{Username: "plain", Email: "plain@example.com", Password: "x"}
	require.NoError(t, users.CreateWithRole(ctx, plain, models.RoleAuthor))
	ok, err = users.HasPermissions(ctx, plain.ID, models.PermUsersReadSelf)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.HasPermissions(ctx, plain.ID, models.PermUsersList)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = users.HasPermissions(ctx, 9999, models.PermUsersList)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	taken, err := users.EmailTaken(ctx, "plain@example.com", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = users.EmailTaken(ctx, "plain@example.com", plain.ID)
	require.NoError(t, err)
	assert.False(t, taken, "the user's own email does not conflict")

	list, total, err := users.FindAll(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 1)

	require.NoError(t, users.Delete(ctx, plain))
	_, err = users.FindByID(ctx, plain.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	taken, err = users.UsernameTaken(ctx, "plain", 0)
	require.NoError(t, err)
	assert.True(t, taken, "deleted accounts keep their username")
}

func TestUserCreateWithRoleIsAtomic(t *testing.T) {
	db := testutil.NewSeededDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Username: "orphan", Email: "orphan@example.com", Password: "x"}
	err := users.CreateWithRole(ctx, u, "no-such-role")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.User{}).Where("username = ?", "orphan").Count(&count).Error)
	assert.Zero(t, count, "the user row is rolled back with the role")
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)

	_, size = NormalizePage(3, 500)
	assert.Equal(t, MaxPageSize, size)
}

func TestPostListDateRange(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.post(t, "January", true, func(p *models.Post) { p.CreatedAt = now.AddDate(0, -3, 0) })
	f.post(t, "February", true, func(p *models.Post) { p.CreatedAt = now.AddDate(0, -2, 0) })
	f.post(t, "Today", true, nil)

	cases := []struct {
		name     string
		from, to time.Time
		want     []string
	}{
		{"from only", now.AddDate(0, -2, -1), time.Time{}, []string{"Today", "February"}},
		{"to only", time.Time{}, now.AddDate(0, -1, 0), []string{"February", "January"}},
		{"both bounds", now.AddDate(0, -2, -1), now.AddDate(0, -1, 0), []string{"February"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			posts, total, err := f.posts.List(f.ctx, PostQuery{From: tc.from, To: tc.to})
			require.NoError(t, err)
			assert.EqualValues(t, len(tc.want), total)
			assert.Equal(t, tc.want, titles(posts))
		})
	}
}

func TestTrendingScope(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.post(t, "Quiet", true, func(p *models.Post) { p.Views = 5 })
	f.post(t, "Loved", true, func(p *models.Post) { p.Views = 5; p.Likes = 20 })
	f.post(t, "Old hit", true, func(p *models.Post) { p.Views = 900; p.CreatedAt = now.AddDate(0, 0, -10) })

	var posts []models.Post
	require.NoError(t, f.db.Scopes(Trending(7)).Find(&posts).Error)
	assert.Equal(t, []string{"Loved", "Quiet"}, titles(posts))

	posts = nil
	require.NoError(t, f.db.Scopes(Trending(30)).Find(&posts).Error)
	assert.Equal(t, []string{"Old hit", "Loved", "Quiet"}, titles(posts))
}

func TestWithTrashedScope(t *testing.T) {
	f := newFixture(t)
	live := f.post(t, "Live", true, nil)
	gone := f.post(t, "Gone", true, nil)
	require.NoError(t, f.posts.Delete(f.ctx, gone))

	var live1, all int64
	require.NoError(t, f.db.Model(&models.Post{}).Count(&live1).Error)
	require.NoError(t, f.db.Model(&models.Post{}).Scopes(WithTrashed).Count(&all).Error)
	assert.EqualValues(t, 1, live1)
	assert.EqualValues(t, 2, all)

	taken, err := f.posts.SlugExists(f.ctx, gone.Slug, live.ID)
	require.NoError(t, err)
	assert.True(t, taken, "a trashed post keeps its slug")
}

func TestPostUpdateKeepsCounters(t *testing.T) {
	f := newFixture(t)
	p := f.post(t, "Counted", true, nil)

	stale, err := f.posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.posts.IncrementViews(f.ctx, p.ID))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, f.posts.IncrementLikes(f.ctx, p.ID))
	}

	stale.Title = "Counted again"
	stale.IsPublished = false
	stale.PublishedAt = nil
	require.NoError(t, f.posts.Update(f.ctx, stale))

	got, err := f.posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Counted again", got.Title)
	assert.False(t, got.IsPublished)
	assert.Nil(t, got.PublishedAt)
	assert.Equal(t, 5, got.Views)
	assert.Equal(t, 3, got.Likes)
}
