package services

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"blogdesk/models"
	"blogdesk/repositories"
)

// The UserService interface defines the methods that user services need to implement
type UserService interface {
	CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	LoadActor(ctx context.Context, userID uint) (*models.User, error)
	GetUserByID(ctx context.Context, userID uint, actor *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, userID uint, actor *models.User, input *UpdateUserInput) (*models.User, error)
	ListUsers(ctx context.Context, page int, pageSize int, actor *models.User) ([]models.User, int64, error)
	DeleteUser(ctx context.Context, userID uint, actor *models.User) error
}

// --- Structs for Input ---
type CreateUserInput struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"max=255"`
}

// UpdateUserInput uses pointers to tell "not provided" from empty.
type UpdateUserInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// The userService structure is the implementation of the UserService interface
type userService struct {
	repo      repositories.UserRepository
	validator *Validator
	log       *zap.Logger
}

var _ UserService = (*userService)(nil)

// NewUserService creates a new UserService instance
func NewUserService(repo repositories.UserRepository, v *Validator, log *zap.Logger) UserService {
	return &userService{repo: repo, validator: v, log: log.Named("users")}
}

// CreateUser registers a user with the default author role.
func (s *userService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	// Check if username or email already exists
	taken, err := s.repo.UsernameTaken(ctx, input.Username, 0)
	if err != nil {
		return nil, errors.Wrap(err, "check existing username")
	}
	if taken {
		return nil, errors.Wrap(ErrConflict, "username already exists")
	}
	taken, err = s.repo.EmailTaken(ctx, models.NormalizeEmail(input.Email), 0)
	if err != nil {
		return nil, errors.Wrap(err, "check existing email")
	}
	if taken {
		return nil, errors.Wrap(ErrConflict, "email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "could not hash password")
	}

	user := models.User{
		Username: input.Username,
		Name:     input.Name,
		Password: string(hashedPassword),
		Email:    input.Email,
	}
	if user.Name == "" {
		user.Name = input.Username
	}
	if err := s.repo.CreateWithRole(ctx, &user, models.RoleAuthor); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	s.log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))

	return s.repo.FindByIDWithPermissions(ctx, user.ID)
}

// Authenticate checks credentials without revealing which part was wrong.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fieldError("username", "Username and password are required.")
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrUnauthorized, "invalid credentials")
		}
		return nil, errors.Wrap(err, "look up user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errors.Wrap(ErrUnauthorized, "invalid credentials")
	}
	return user, nil
}

// LoadActor loads the authenticated user with roles and permissions.
func (s *userService) LoadActor(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.FindByIDWithPermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrUnauthorized, "user no longer exists")
		}
		return nil, errors.Wrap(err, "load actor")
	}
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
// Permissions: "users:read:self" or "users:read:all"
func (s *userService) GetUserByID(ctx context.Context, targetUserID uint, actor *models.User) (*models.User, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	isSelf := targetUserID == actor.ID
	if !((isSelf && actor.Can(models.PermUsersReadSelf)) || (!isSelf && actor.Can(models.PermUsersReadAll))) {
		return nil, errors.Wrap(ErrForbidden, "you need 'users:read:all' permission to view other profiles")
	}

	user, err := s.repo.FindByIDWithPermissions(ctx, targetUserID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// UpdateUser updates a user's details.
// Permissions: "users:update:self" or "users:update:all"
func (s *userService) UpdateUser(ctx context.Context, targetUserID uint, actor *models.User, input *UpdateUserInput) (*models.User, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	isSelf := targetUserID == actor.ID
	if !((isSelf && actor.Can(models.PermUsersUpdateSelf)) || (!isSelf && actor.Can(models.PermUsersUpdateAll))) {
		return nil, errors.Wrap(ErrForbidden, "you can only update your own profile or require 'users:update:all' permission")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	needsSave := false

	if input.Email != nil {
		email := models.NormalizeEmail(*input.Email)
		// Check if the new email is already taken by *another* user
		taken, err := s.repo.EmailTaken(ctx, email, user.ID)
		if err != nil {
			return nil, errors.Wrap(err, "check email uniqueness")
		}
		if taken {
			return nil, errors.Wrap(ErrConflict, "email address is already in use by another account")
		}
		if user.Email != email {
			user.Email = email
			user.EmailVerifiedAt = nil
			needsSave = true
		}
	}

	if input.Name != nil && user.Name != *input.Name {
		user.Name = *input.Name
		needsSave = true
	}

	if input.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.Wrap(err, "could not hash new password")
		}
		user.Password = string(hashedPassword)
		needsSave = true
	}

	if needsSave {
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, errors.Wrap(err, "failed to save user updates")
		}
	}
	return s.repo.FindByIDWithPermissions(ctx, user.ID)
}

// ListUsers retrieves a paginated list of users.
// Permissions: "users:list"
func (s *userService) ListUsers(ctx context.Context, page int, pageSize int, actor *models.User) ([]models.User, int64, error) {
	if actor == nil {
		return nil, 0, ErrUnauthorized
	}
	if !actor.Can(models.PermUsersList) {
		return nil, 0, errors.Wrap(ErrForbidden, "you need 'users:list' permission")
	}
	users, total, err := s.repo.FindAll(ctx, page, pageSize)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	return users, total, nil
}

// DeleteUser soft-deletes a user.
// Permissions: "users:delete:self" or "users:delete:all"
func (s *userService) DeleteUser(ctx context.Context, userID uint, actor *models.User) error {
	if actor == nil {
		return ErrUnauthorized
	}
	isSelf := userID == actor.ID
	if !((isSelf && actor.Can(models.PermUsersDeleteSelf)) || (!isSelf && actor.Can(models.PermUsersDeleteAll))) {
		return errors.Wrap(ErrForbidden, "no permission to delete this user")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}
	if err := s.repo.Delete(ctx, user); err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	s.log.Info("User deleted", zap.Uint("user_id", userID), zap.Uint("by", actor.ID))
	return nil
}
