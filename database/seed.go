package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"blogdesk/models"
)

type SeedOptions struct {
	AdminPassword string
	// DemoPosts, when positive, adds that many generated posts plus a few
	// generated authors.
	DemoPosts int
	// FakerSeed makes demo data reproducible; 0 picks a random seed.
	FakerSeed uint64
}

var seedPermissions = []models.Permission{
	{Name: models.PermUsersList, Description: "Ability to list users"},
	{Name: models.PermUsersReadSelf, Description: "Ability to read own user profile"},
	{Name: models.PermUsersReadAll, Description: "Ability to read any user profile"},
	{Name: models.PermUsersUpdateSelf, Description: "Ability to update own user profile"},
	{Name: models.PermUsersUpdateAll, Description: "Ability to update any user profile"},
	{Name: models.PermUsersDeleteSelf, Description: "Ability to delete own user account"},
	{Name: models.PermUsersDeleteAll, Description: "Ability to delete any user account"},
	{Name: models.PermPostsManageAll, Description: "Ability to edit, trash and restore any post"},
	{Name: models.PermCommentsModerate, Description: "Ability to delete any comment"},
	{Name: models.PermCategoriesManage, Description: "Ability to create categories"},
	{Name: models.PermTagsManage, Description: "Ability to create tags"},
	{Name: models.PermRolesManage, Description: "Ability to manage roles and permissions"},
}

var seedRoles = []struct {
	Role        models.Role
	Permissions []string
}{
	{
		Role: models.Role{Name: models.RoleAdmin, Description: "Administrator with full access"},
		Permissions: []string{
			models.PermUsersList, models.PermUsersReadAll, models.PermUsersUpdateAll, models.PermUsersDeleteAll,
			models.PermUsersReadSelf, models.PermUsersUpdateSelf, models.PermUsersDeleteSelf,
			models.PermPostsManageAll, models.PermCommentsModerate,
			models.PermCategoriesManage, models.PermTagsManage, models.PermRolesManage,
		},
	},
	{
		Role:        models.Role{Name: models.RoleAuthor, Description: "Standard user"},
		Permissions: []string{models.PermUsersReadSelf, models.PermUsersUpdateSelf, models.PermUsersDeleteSelf},
	},
}

var seedCategories = []string{
	"Technology",
	"Programming",
	"Web Development",
	"Mobile Development",
	"Data Science",
	"Artificial Intelligence",
	"Cybersecurity",
	"Cloud Computing",
	"DevOps",
	"Tutorials",
}

var seedTags = []string{
	"Laravel", "PHP", "JavaScript", "Vue.js", "React",
	"Node.js", "Python", "Django", "Docker", "AWS",
	"Git", "MySQL", "PostgreSQL", "MongoDB", "Redis",
	"API", "REST", "GraphQL", "Testing", "Security",
}

var seedTasks = []models.Task{
	{Title: "Learn routing", Description: "Define routes and route parameters", IsCompleted: true},
	{Title: "Learn the ORM", Description: "Understand models and database queries", IsCompleted: true},
	{Title: "Build the to-do app", Description: "Full CRUD for the to-do list"},
	{Title: "Learn templating", Description: "Render resources for the client"},
	{Title: "Learn authentication", Description: "Set up login and registration"},
}

// SeedInitialData seeds permissions, roles, the admin account, categories,
// tags and the starter tasks. Rows that already exist are left alone, so it
// is safe to run repeatedly.
func SeedInitialData(ctx context.Context, db *gorm.DB, log *zap.Logger, opts SeedOptions) error {
	db = db.WithContext(ctx)
	log = log.Named("seed")

	for _, p := range seedPermissions {
		perm := p
		res := db.Where(models.Permission{Name: perm.Name}).Attrs(models.Permission{Description: perm.Description}).FirstOrCreate(&perm)
		if res.Error != nil {
			return fmt.Errorf("seed permission %s: %w", p.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info("Seeded permission", zap.String("name", p.Name))
		}
	}

	for _, rData := range seedRoles {
		role := rData.Role
		res := db.Where(models.Role{Name: role.Name}).Attrs(models.Role{Description: role.Description}).FirstOrCreate(&role)
		if res.Error != nil {
			return fmt.Errorf("seed role %s: %w", rData.Role.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info("Seeded role", zap.String("name", role.Name))
		}

		var perms []models.Permission
		if err := db.Where("name IN ?", rData.Permissions).Find(&perms).Error; err != nil {
			return fmt.Errorf("find permissions for role %s: %w", role.Name, err)
		}
		if err := db.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("associate permissions with role %s: %w", role.Name, err)
		}
	}

	admin, err := seedAdmin(db, log, opts.AdminPassword)
	if err != nil {
		return err
	}

	for _, name := range seedCategories {
		c := models.Category{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&c).Error; err != nil {
			return fmt.Errorf("seed category %s: %w", name, err)
		}
	}
	for _, name := range seedTags {
		t := models.Tag{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&t).Error; err != nil {
			return fmt.Errorf("seed tag %s: %w", name, err)
		}
	}
	log.Info("Seeded taxonomy", zap.Int("categories", len(seedCategories)), zap.Int("tags", len(seedTags)))

	var taskCount int64
	if err := db.Model(&models.Task{}).Where("user_id = ?", admin.ID).Count(&taskCount).Error; err != nil {
		return err
	}
	if taskCount == 0 {
		for _, t := range seedTasks {
			task := t
			task.UserID = admin.ID
			if err := db.Create(&task).Error; err != nil {
				return fmt.Errorf("seed task %q: %w", t.Title, err)
			}
		}
		log.Info("Seeded tasks", zap.Int("count", len(seedTasks)))
	}

	if opts.DemoPosts > 0 {
		return seedDemoPosts(db, log, opts)
	}
	return nil
}

func seedAdmin(db *gorm.DB, log *zap.Logger, password string) (*models.User, error) {
	var admin models.User
	err := db.Where("username = ?", "admin").First(&admin).Error
	if err == nil {
		return &admin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up admin user: %w", err)
	}

	if password == "" {
		password = "adminpassword"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	admin = models.User{
		Username:        "admin",
		Name:            "Administrator",
		Email:           "admin@example.com",
		EmailVerifiedAt: &now,
		Password:        string(hashed),
	}
	if err := db.Create(&admin).Error; err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}

	var adminRole models.Role
	if err := db.Where("name = ?", models.RoleAdmin).First(&adminRole).Error; err != nil {
		return nil, fmt.Errorf("find admin role: %w", err)
	}
	if err := db.Model(&admin).Association("Roles").Append(&adminRole); err != nil {
		return nil, fmt.Errorf("assign admin role: %w", err)
	}
	log.Info("Created initial admin user and assigned admin role")
	return &admin, nil
}

const demoAuthors = 3

func seedDemoPosts(db *gorm.DB, log *zap.Logger, opts SeedOptions) error {
	f := gofakeit.New(opts.FakerSeed)

	var authorRole models.Role
	if err := db.Where("name = ?", models.RoleAuthor).First(&authorRole).Error; err != nil {
		return fmt.Errorf("find author role: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		return err
	}
	for i := 0; i < demoAuthors; i++ {
		u := models.User{
			Username: fmt.Sprintf("%s%d", f.Username(), f.Number(100, 999)),
			Name:     f.Name(),
			Email:    f.Email(),
			Password: string(hashed),
		}
		if err := db.Create(&u).Error; err != nil {
			return fmt.Errorf("create demo author: %w", err)
		}
		if err := db.Model(&u).Association("Roles").Append(&authorRole); err != nil {
			return err
		}
	}

	var users []models.User
	var categories []models.Category
	var tags []models.Tag
	if err := db.Find(&users).Error; err != nil {
		return err
	}
	if err := db.Find(&categories).Error; err != nil {
		return err
	}
	if err := db.Find(&tags).Error; err != nil {
		return err
	}
	if len(categories) == 0 || len(users) == 0 {
		return errors.New("demo posts need at least one user and one category")
	}

	now := time.Now()
	yearAgo := now.AddDate(-1, 0, 0)
	for i := 0; i < opts.DemoPosts; i++ {
		post := models.Post{
			Title:      f.Sentence(6),
			Body:       f.Paragraph(10, 5, 12, "\n\n"),
			UserID:     users[f.Number(0, len(users)-1)].ID,
			CategoryID: categories[f.Number(0, len(categories)-1)].ID,
			Views:      f.Number(0, 500),
			Likes:      f.Number(0, 50),
		}
		post.CreatedAt = f.DateRange(yearAgo, now)
		if f.Number(1, 100) <= 70 {
			published := f.DateRange(post.CreatedAt, now)
			post.IsPublished = true
			post.PublishedAt = &published
		}
		if err := db.Create(&post).Error; err != nil {
			return fmt.Errorf("create demo post: %w", err)
		}

		if picked := pickTags(f, tags, f.Number(2, 4)); len(picked) > 0 {
			if err := db.Model(&post).Association("Tags").Append(picked); err != nil {
				return fmt.Errorf("attach demo tags: %w", err)
			}
		}
	}
	log.Info("Seeded demo posts", zap.Int("posts", opts.DemoPosts), zap.Int("authors", demoAuthors))
	return nil
}

// pickTags returns n distinct tags in random order.
func pickTags(f *gofakeit.Faker, tags []models.Tag, n int) []models.Tag {
	pool := make([]models.Tag, len(tags))
	copy(pool, tags)
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := f.Number(i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
