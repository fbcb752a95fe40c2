package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestPostExcerpt(t *testing.T) {
	short := &Post{Body: "<p>Eloquent is the <b>ORM</b> &amp; more</p>"}
	assert.Equal(t, "Eloquent is the ORM & more", short.Excerpt())

	long := &Post{Body: "<p>" + strings.Repeat("a", 149) + " " + strings.Repeat("b", 20) + "</p>"}
	excerpt := long.Excerpt()
	assert.True(t, strings.HasSuffix(excerpt, "..."))
	assert.Equal(t, strings.Repeat("a", 149)+"...", excerpt)
}

func TestPostReadingTime(t *testing.T) {
	cases := []struct {
		words int
		want  string
	}{
		{0, "0 min read"},
		{1, "1 min read"},
		{200, "1 min read"},
		{201, "2 min read"},
		{1000, "5 min read"},
	}
	for _, tc := range cases {
		p := &Post{Body: strings.TrimSpace(strings.Repeat("word ", tc.words))}
		assert.Equal(t, tc.want, p.ReadingTime(), "words=%d", tc.words)
	}
}

func TestPostStatusAndTrashed(t *testing.T) {
	p := &Post{}
	assert.Equal(t, "Draft", p.StatusLabel())
	assert.False(t, p.Trashed())

	p.IsPublished = true
	p.DeletedAt = gorm.DeletedAt{Valid: true}
	assert.Equal(t, "Published", p.StatusLabel())
	assert.True(t, p.Trashed())
}

func TestUserCan(t *testing.T) {
	var nobody *User
	assert.False(t, nobody.Can(PermPostsManageAll))

	u := &User{Roles: []Role{
		{Name: RoleAuthor, Permissions: []Permission{{Name: PermUsersReadSelf}}},
		{Name: RoleAdmin, Permissions: []Permission{{Name: PermPostsManageAll}}},
	}}
	assert.True(t, u.Can(PermPostsManageAll))
	assert.True(t, u.Can(PermUsersReadSelf))
	assert.False(t, u.Can(PermRolesManage))
}

func TestUserBeforeSaveNormalizesEmail(t *testing.T) {
	u := &User{Email: "  Admin@Example.COM "}
	assert.NoError(t, u.BeforeSave(nil))
	assert.Equal(t, "admin@example.com", u.Email)
}

func TestIsCommentable(t *testing.T) {
	assert.True(t, IsCommentable(CommentablePosts))
	assert.True(t, IsCommentable(CommentableTasks))
	assert.False(t, IsCommentable("users"))
}

func TestTaskStatusLabel(t *testing.T) {
	assert.Equal(t, "Pending", (&Task{}).StatusLabel())
	assert.Equal(t, "Completed", (&Task{IsCompleted: true}).StatusLabel())
}

func TestMakeSlug(t *testing.T) {
	assert.Equal(t, "rock-and-roll", MakeSlug("Rock & Roll", 50))
	assert.Equal(t, "rock-and", MakeSlug("Rock & Roll", 9), "no trailing separator after the cut")
	assert.Empty(t, MakeSlug("!!!", 50))
}
