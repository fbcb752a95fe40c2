package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"blogdesk/models"
)

// UserRepository interface defines User-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByIDWithPermissions(ctx context.Context, id uint) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, user *models.User) error
	FindAll(ctx context.Context, page int, pageSize int) ([]models.User, int64, error)
	HasPermissions(ctx context.Context, userID uint, permissions ...string) (bool, error)
	CreateWithRole(ctx context.Context, user *models.User, roleName string) error
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
}

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new User
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds User by ID
func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDWithPermissions loads the user with roles and their permissions,
// ready for User.Can.
func (r *userRepository) FindByIDWithPermissions(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles.Permissions").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds User by Username
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update saves the user's own columns; roles are managed by AssignRole.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit("Roles").Save(user).Error
}

// Delete soft-deletes the User
func (r *userRepository) Delete(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Delete(user).Error
}

// FindAll Pagination find all Users
func (r *userRepository) FindAll(ctx context.Context, page int, pageSize int) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(Paginate(page, pageSize)).Order("id").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// HasPermissions checks if the user has all required permissions
func (r *userRepository) HasPermissions(ctx context.Context, userID uint, permissions ...string) (bool, error) {
	if len(permissions) == 0 {
		return true, nil
	}
	user, err := r.FindByIDWithPermissions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check permissions for user %d: %w", userID, err)
	}
	for _, perm := range permissions {
		if !user.Can(perm) {
			return false, nil
		}
	}
	return true, nil
}

// CreateWithRole creates the user and grants the role atomically.
func (r *userRepository) CreateWithRole(ctx context.Context, user *models.User, roleName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return assignRole(tx, user, roleName)
	})
}

func assignRole(db *gorm.DB, user *models.User, roleName string) error {
	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		return fmt.Errorf("find role %s: %w", roleName, err)
	}
	return db.Model(user).Association("Roles").Append(&role)
}

// UsernameTaken also counts deleted accounts, which keep their username.
func (r *userRepository) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	return r.taken(ctx, "username", username, exceptID)
}

// EmailTaken also counts deleted accounts, which keep their email.
func (r *userRepository) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	return r.taken(ctx, "email", email, exceptID)
}

func (r *userRepository) taken(ctx context.Context, column, value string, exceptID uint) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).Scopes(WithTrashed).Model(&models.User{}).Where(column+" = ?", value)
	if exceptID != 0 {
		db = db.Where("id <> ?", exceptID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
