package database

import (
	"time"

	"gorm.io/gorm"
)

// Each migration declares its own snapshot of the tables it touches, so the
// schema history stays fixed while the runtime models evolve.

type usersTable struct {
	ID              uint   `gorm:"primaryKey"`
	Username        string `gorm:"size:191;uniqueIndex;not null"`
	Name            string `gorm:"size:255"`
	Email           string `gorm:"size:191;uniqueIndex;not null"`
	EmailVerifiedAt *time.Time
	Password        string `gorm:"size:255;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (usersTable) TableName() string { return "users" }

type categoriesTable struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"size:255;not null;index"`
	Slug        string  `gorm:"size:191;uniqueIndex;not null"`
	Description *string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (categoriesTable) TableName() string { return "categories" }

type postsTable struct {
	ID          uint       `gorm:"primaryKey"`
	Title       string     `gorm:"size:255;not null"`
	Slug        string     `gorm:"size:191;uniqueIndex;not null"`
	Body        string     `gorm:"type:text;not null"`
	Image       *string    `gorm:"size:255"`
	IsPublished bool       `gorm:"not null;default:false;index"`
	PublishedAt *time.Time `gorm:"index"`

	// A deleted user or category takes its posts along.
	UserID     uint            `gorm:"not null;index"`
	User       usersTable      `gorm:"constraint:OnDelete:CASCADE"`
	CategoryID uint            `gorm:"not null;index"`
	Category   categoriesTable `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (postsTable) TableName() string { return "posts" }

type tagsTable struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"size:50;not null;index"`
	Slug      string  `gorm:"size:50;uniqueIndex;not null"`
	Color     *string `gorm:"size:7"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tagsTable) TableName() string { return "tags" }

type postTagTable struct {
	PostID    uint       `gorm:"primaryKey;autoIncrement:false"`
	Post      postsTable `gorm:"constraint:OnDelete:CASCADE"`
	TagID     uint       `gorm:"primaryKey;autoIncrement:false;index"`
	Tag       tagsTable  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

func (postTagTable) TableName() string { return "post_tag" }

type postsExtraColumns struct {
	Views      int            `gorm:"not null;default:0"`
	Likes      int            `gorm:"not null;default:0"`
	IsFeatured bool           `gorm:"not null;default:false"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (postsExtraColumns) TableName() string { return "posts" }

var postsExtraFields = []string{"Views", "Likes", "IsFeatured", "DeletedAt"}

type commentsTable struct {
	ID              uint       `gorm:"primaryKey"`
	Body            string     `gorm:"type:text;not null"`
	UserID          uint       `gorm:"not null;index"`
	User            usersTable `gorm:"constraint:OnDelete:CASCADE"`
	CommentableID   uint       `gorm:"not null;index:idx_comments_commentable,priority:2"`
	CommentableType string     `gorm:"size:191;not null;index:idx_comments_commentable,priority:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (commentsTable) TableName() string { return "comments" }

type tasksTable struct {
	ID          uint       `gorm:"primaryKey"`
	Title       string     `gorm:"size:255;not null"`
	Description string     `gorm:"type:text"`
	IsCompleted bool       `gorm:"not null;default:false;index"`
	UserID      uint       `gorm:"not null;index"`
	User        usersTable `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"index"`
	UpdatedAt   time.Time
}

func (tasksTable) TableName() string { return "tasks" }

type rolesTable struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:191;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (rolesTable) TableName() string { return "roles" }

type permissionsTable struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:191;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (permissionsTable) TableName() string { return "permissions" }

type rolePermissionsTable struct {
	RoleID       uint             `gorm:"primaryKey;autoIncrement:false"`
	Role         rolesTable       `gorm:"constraint:OnDelete:CASCADE"`
	PermissionID uint             `gorm:"primaryKey;autoIncrement:false"`
	Permission   permissionsTable `gorm:"constraint:OnDelete:CASCADE"`
}

func (rolePermissionsTable) TableName() string { return "role_permissions" }

type userRolesTable struct {
	UserID uint       `gorm:"primaryKey;autoIncrement:false"`
	User   usersTable `gorm:"constraint:OnDelete:CASCADE"`
	RoleID uint       `gorm:"primaryKey;autoIncrement:false"`
	Role   rolesTable `gorm:"constraint:OnDelete:CASCADE"`
}

func (userRolesTable) TableName() string { return "user_roles" }

func createTable(model any) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error { return tx.Migrator().CreateTable(model) }
}

func dropTables(names ...string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		for _, name := range names {
			if err := tx.Migrator().DropTable(name); err != nil {
				return err
			}
		}
		return nil
	}
}

// Migrations returns the application's schema history.
func Migrations() []Migration {
	return []Migration{
		{
			Version: "2024_01_01_000001",
			Name:    "create_users_table",
			Up:      createTable(&usersTable{}),
			Down:    dropTables("users"),
		},
		{
			Version: "2024_01_01_000002",
			Name:    "create_categories_table",
			Up:      createTable(&categoriesTable{}),
			Down:    dropTables("categories"),
		},
		{
			Version: "2024_01_01_000003",
			Name:    "create_posts_table",
			Up:      createTable(&postsTable{}),
			Down:    dropTables("posts"),
		},
		{
			Version: "2024_01_01_000004",
			Name:    "create_tags_table",
			Up:      createTable(&tagsTable{}),
			Down:    dropTables("tags"),
		},
		{
			Version: "2024_01_01_000005",
			Name:    "create_post_tag_table",
			Up:      createTable(&postTagTable{}),
			Down:    dropTables("post_tag"),
		},
		{
			Version: "2024_01_01_000006",
			Name:    "add_columns_to_posts",
			Up: func(tx *gorm.DB) error {
				m := tx.Migrator()
				for _, field := range postsExtraFields {
					if m.HasColumn(&postsExtraColumns{}, field) {
						continue
					}
					if err := m.AddColumn(&postsExtraColumns{}, field); err != nil {
						return err
					}
				}
				return m.CreateIndex(&postsExtraColumns{}, "DeletedAt")
			},
			Down: func(tx *gorm.DB) error {
				m := tx.Migrator()
				if m.HasIndex(&postsExtraColumns{}, "DeletedAt") {
					if err := m.DropIndex(&postsExtraColumns{}, "DeletedAt"); err != nil {
						return err
					}
				}
				for _, field := range postsExtraFields {
					if !m.HasColumn(&postsExtraColumns{}, field) {
						continue
					}
					if err := m.DropColumn(&postsExtraColumns{}, field); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version: "2024_01_01_000007",
			Name:    "create_comments_table",
			Up:      createTable(&commentsTable{}),
			Down:    dropTables("comments"),
		},
		{
			Version: "2024_01_01_000008",
			Name:    "create_tasks_table",
			Up:      createTable(&tasksTable{}),
			Down:    dropTables("tasks"),
		},
		{
			Version: "2024_01_01_000009",
			Name:    "create_roles_and_permissions_tables",
			Up: func(tx *gorm.DB) error {
				for _, model := range []any{&rolesTable{}, &permissionsTable{}, &rolePermissionsTable{}, &userRolesTable{}} {
					if err := tx.Migrator().CreateTable(model); err != nil {
						return err
					}
				}
				return nil
			},
			Down: dropTables("user_roles", "role_permissions", "permissions", "roles"),
		},
	}
}
