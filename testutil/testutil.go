// Package testutil builds migrated in-memory databases and fixtures for
// package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blogdesk/database"
	"blogdesk/models"
)

var dbSeq atomic.Int64

// NewTestDB opens a private in-memory SQLite database with every migration
// applied. Foreign keys are not enforced, matching SQLite's default.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Prepare(db))

	_, err = database.Migrate(context.Background(), db, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewSeededDB is NewTestDB plus the initial roles, admin, taxonomy and tasks.
func NewSeededDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := NewTestDB(t)
	require.NoError(t, database.SeedInitialData(context.Background(), db, zaptest.NewLogger(t), database.SeedOptions{AdminPassword: "adminpassword"}))
	return db
}

// CreateUser inserts a user holding the given roles. The password is
// "password".
func CreateUser(t *testing.T, db *gorm.DB, username string, roles ...string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{Username: username, Name: username, Email: username + "@example.com", Password: string(hashed)}
	require.NoError(t, db.Create(u).Error)

	for _, name := range roles {
		role := models.Role{Name: name}
		require.NoError(t, db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error)
		require.NoError(t, db.Model(u).Association("Roles").Append(&role))
	}
	return LoadUser(t, db, u.ID)
}

// LoadUser fetches a user with roles and permissions preloaded.
func LoadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.Preload("Roles.Permissions").First(&u, id).Error)
	return &u
}

func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name}
	require.NoError(t, db.Create(c).Error)
	return c
}

func CreateTag(t *testing.T, db *gorm.DB, name string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

// CreatePost inserts a post; fields left zero in p get usable defaults.
func CreatePost(t *testing.T, db *gorm.DB, p models.Post, tags ...*models.Tag) *models.Post {
	t.Helper()
	if p.Title == "" {
		p.Title = "Untitled"
	}
	if p.Body == "" {
		p.Body = "Body text"
	}
	require.NoError(t, db.Create(&p).Error)
	for _, tag := range tags {
		require.NoError(t, db.Create(&models.PostTag{PostID: p.ID, TagID: tag.ID}).Error)
	}
	return &p
}
