package massassign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type article struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	IsPublished bool   `json:"is_published"`
	UserID      uint   `json:"user_id"`
	Views       int    `json:"views"`
}

func TestIsFillable(t *testing.T) {
	fillable := Guard{Fillable: []string{"title", "body"}}
	assert.True(t, fillable.IsFillable("title"))
	assert.False(t, fillable.IsFillable("user_id"))

	guarded := Guard{Guarded: []string{"id", "user_id", "views"}}
	assert.True(t, guarded.IsFillable("title"))
	assert.False(t, guarded.IsFillable("views"))

	both := Guard{Fillable: []string{"title", "views"}, Guarded: []string{"views"}}
	assert.False(t, both.IsFillable("views"))

	assert.False(t, GuardAll.IsFillable("title"))
	assert.True(t, Guard{}.IsFillable("anything"))
}

func TestFillIgnoresNonFillableAttributes(t *testing.T) {
	a := &article{UserID: 7}
	guard := Guard{Fillable: []string{"title", "body", "is_published"}}

	discarded, err := Fill(a, map[string]any{
		"title":        "My Post",
		"body":         "Content...",
		"is_published": true,
		"user_id":      float64(999),
		"views":        float64(999999),
	}, guard)
	require.NoError(t, err)

	assert.Equal(t, []string{"user_id", "views"}, discarded)
	assert.Equal(t, "My Post", a.Title)
	assert.True(t, a.IsPublished)
	assert.Equal(t, uint(7), a.UserID)
	assert.Zero(t, a.Views)
}

func TestFillKeepsAbsentFields(t *testing.T) {
	a := &article{Title: "old", Body: "kept"}
	_, err := Fill(a, map[string]any{"title": "new"}, Guard{Fillable: []string{"title", "body"}})
	require.NoError(t, err)
	assert.Equal(t, "new", a.Title)
	assert.Equal(t, "kept", a.Body)
}

func TestFillWeakTyping(t *testing.T) {
	a := &article{}
	_, err := Fill(a, map[string]any{"is_published": "1", "title": 42}, Guard{})
	require.NoError(t, err)
	assert.True(t, a.IsPublished)
	assert.Equal(t, "42", a.Title)
}

func TestForceFillBypassesGuard(t *testing.T) {
	a := &article{}
	require.NoError(t, ForceFill(a, map[string]any{"user_id": 5, "views": 1000}))
	assert.Equal(t, uint(5), a.UserID)
	assert.Equal(t, 1000, a.Views)
}

func TestFillRejectsBadTypes(t *testing.T) {
	a := &article{}
	_, err := Fill(a, map[string]any{"is_published": "maybe"}, Guard{})
	assert.Error(t, err)
}
