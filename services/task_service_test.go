package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"blogdesk/models"
	"blogdesk/services"
	"blogdesk/testutil"
)

func TestTaskService(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	svc := services.NewTaskService(db, services.NewValidator(), zaptest.NewLogger(t))
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	task, err := svc.Create(ctx, alice, services.Attributes{
		"title":        "Write the migration",
		"description":  "posts table",
		"is_completed": true,
		"user_id":      float64(bob.ID),
	})
	require.NoError(t, err)
	assert.False(t, task.IsCompleted, "new tasks start pending")
	assert.Equal(t, alice.ID, task.UserID)

	_, err = svc.Create(ctx, alice, services.Attributes{"title": "Second"})
	require.NoError(t, err)

	fields := validationFields(t, func() error {
		_, err := svc.Create(ctx, alice, services.Attributes{"description": "no title"})
		return err
	}())
	assert.Equal(t, "The title field is required.", fields["title"])

	t.Run("owner only", func(t *testing.T) {
		_, err := svc.Get(ctx, bob, task.ID)
		assert.ErrorIs(t, err, services.ErrForbidden)
		_, err = svc.Update(ctx, bob, task.ID, services.Attributes{"title": "mine now"})
		assert.ErrorIs(t, err, services.ErrForbidden)
		_, err = svc.Toggle(ctx, bob, task.ID)
		assert.ErrorIs(t, err, services.ErrForbidden)
		assert.ErrorIs(t, svc.Delete(ctx, bob, task.ID), services.ErrForbidden)
		_, err = svc.Get(ctx, nil, task.ID)
		assert.ErrorIs(t, err, services.ErrUnauthorized)
		_, err = svc.Get(ctx, alice, 9999)
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("toggle and filter", func(t *testing.T) {
		toggled, err := svc.Toggle(ctx, alice, task.ID)
		require.NoError(t, err)
		assert.True(t, toggled.IsCompleted)

		all, err := svc.List(ctx, alice, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Second", all[0].Title, "latest first")

		done, err := svc.List(ctx, alice, "completed")
		require.NoError(t, err)
		require.Len(t, done, 1)
		assert.Equal(t, task.ID, done[0].ID)

		pending, err := svc.List(ctx, alice, "pending")
		require.NoError(t, err)
		require.Len(t, pending, 1)

		none, err := svc.List(ctx, bob, "")
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = svc.List(ctx, alice, "someday")
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := svc.Update(ctx, alice, task.ID, services.Attributes{"title": "Write both migrations", "description": ""})
		require.NoError(t, err)
		assert.Equal(t, "Write both migrations", updated.Title)
		assert.Empty(t, updated.Description)

		_, err = svc.Update(ctx, alice, task.ID, services.Attributes{"description": "x"})
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Comment{Body: "note", UserID: alice.ID, CommentableType: models.CommentableTasks, CommentableID: task.ID}).Error)
		require.NoError(t, svc.Delete(ctx, alice, task.ID))
		_, err := svc.Get(ctx, alice, task.ID)
		assert.ErrorIs(t, err, services.ErrNotFound)

		var comments int64
		require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
		assert.Zero(t, comments)
	})
}
