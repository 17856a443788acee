// Package accounts creates and authenticates users. It owns the rules for
// email normalisation and password hashing so handlers and the admin CLI
// share them.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	applog "recipebox/internal/log"
	"recipebox/models"
)

var (
	// ErrEmailRequired is returned when a user is created without an email address.
	ErrEmailRequired = errors.New("accounts: users must have an email address")
	// ErrEmailTaken is returned when the normalised email already belongs to a user.
	ErrEmailTaken = errors.New("accounts: a user with this email already exists")
	// ErrInvalidCredentials is returned by Authenticate for unknown users, wrong
	// passwords and inactive accounts alike.
	ErrInvalidCredentials = errors.New("accounts: unable to authenticate with provided credentials")
)

// Option customises a user before it is persisted.
type Option func(*models.User)

// WithName sets the display name.
func WithName(name string) Option {
	return func(u *models.User) {
		u.Name = strings.TrimSpace(name)
	}
}

// WithStaff grants access to the admin pages.
func WithStaff() Option {
	return func(u *models.User) {
		u.IsStaff = true
	}
}

// Service wraps the user table.
type Service struct {
	db *gorm.DB
}

// NewService returns a Service backed by db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateUser persists a new active user with a normalised email and hashed password.
func (s *Service) CreateUser(ctx context.Context, email, password string, opts ...Option) (*models.User, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrEmailRequired
	}
	if s.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	user := &models.User{Email: normalized, IsActive: true}
	for _, opt := range opts {
		opt(user)
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	taken, err := s.emailExists(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	applog.Debug(ctx, "user created", "userID", user.ID, "staff", user.IsStaff, "superuser", user.IsSuperuser)
	return user, nil
}

// CreateSuperuser creates a user with both the staff and superuser flags set.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string, opts ...Option) (*models.User, error) {
	opts = append(opts, func(u *models.User) {
		u.IsStaff = true
		u.IsSuperuser = true
	})
	return s.CreateUser(ctx, email, password, opts...)
}

// Authenticate returns the active user identified by email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail looks a user up by normalised email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	user := &models.User{}
	if err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by primary key.
func (s *Service) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	user := &models.User{}
	if err := s.db.WithContext(ctx).First(user, id).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ProfileUpdate lists the profile fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Name     *string
	Password *string
}

// UpdateProfile applies changes to user and persists them.
func (s *Service) UpdateProfile(ctx context.Context, user *models.User, changes ProfileUpdate) error {
	if s.db == nil {
		return gorm.ErrInvalidDB
	}
	updates := map[string]any{}
	if changes.Name != nil {
		user.Name = strings.TrimSpace(*changes.Name)
		updates["name"] = user.Name
	}
	if changes.Password != nil {
		if err := user.SetPassword(*changes.Password); err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = user.PasswordHash
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Count returns the number of registered users.
func (s *Service) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, gorm.ErrInvalidDB
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (s *Service) emailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check existing user: %w", err)
	}
	return count > 0, nil
}
