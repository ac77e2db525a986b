package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Username    string          `json:"username" validate:"required,min=3,max=64"`
	Email       string          `json:"email" validate:"required,email"`
	FullName    string          `json:"full_name" validate:"required"`
	Role        models.UserRole `json:"role" validate:"required,oneof=admin user"`
	Permissions []string        `json:"permissions"`
	Active      *bool           `json:"active"`
	Password    string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	Email       string          `json:"email" validate:"omitempty,email"`
	FullName    string          `json:"full_name" validate:"required"`
	Role        models.UserRole `json:"role" validate:"required,oneof=admin user"`
	Permissions []string        `json:"permissions"`
	Active      *bool           `json:"active"`
}

// RotatePasswordRequest is used by administrators to reset another user's password.
type RotatePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// UserService handles user management workflows. Every operation is admin only.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

func requireAdmin(session *models.Session) error {
	if !session.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	return nil
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, session *models.Session, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireAdmin(session); err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = normalisePage(filter.Page, filter.PageSize)
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, session *models.Session, id string) (*models.User, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Store(err, "failed to load user")
	}
	return user, nil
}

// Create adds a new user with a bcrypt hashed password.
func (s *UserService) Create(ctx context.Context, session *models.Session, req CreateUserRequest) (*models.User, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	permissions, err := checkPermissions(req.Permissions)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUnique(ctx, "", username, email); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := s.now().UTC()
	user := &models.User{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             email,
		FullName:          strings.TrimSpace(req.FullName),
		Role:              req.Role,
		IsActive:          active,
		Permissions:       permissions,
		PasswordHash:      string(passwordHash),
		PasswordChangedAt: &now,
		CreatedAt:         now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Store(err, "failed to create user")
	}

	recordAudit(ctx, s.repo, s.logger, session, models.AuditActionUserCreate, "users", user.ID, nil,
		map[string]interface{}{"username": user.Username, "email": user.Email, "role": user.Role, "permissions": permissions})
	return user, nil
}

// Update modifies the user attributes.
func (s *UserService) Update(ctx context.Context, session *models.Session, id string, req UpdateUserRequest) (*models.User, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	permissions, err := checkPermissions(req.Permissions)
	if err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	old := map[string]interface{}{"email": user.Email, "role": user.Role, "active": user.IsActive, "permissions": []string(user.Permissions)}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if err := s.ensureUnique(ctx, user.ID, "", email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	user.Permissions = permissions
	if req.Active != nil {
		user.IsActive = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Store(err, "failed to update user")
	}
	if !user.IsActive {
		s.signOut(ctx, user.ID)
	}

	recordAudit(ctx, s.repo, s.logger, session, models.AuditActionUserUpdate, "users", user.ID, old,
		map[string]interface{}{"email": user.Email, "role": user.Role, "active": user.IsActive, "permissions": permissions})
	return user, nil
}

// Deactivate soft deletes a user and revokes their sessions.
func (s *UserService) Deactivate(ctx context.Context, session *models.Session, id string) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if id == session.UserID {
		return appErrors.Clone(appErrors.ErrBusinessRule, "administrators cannot deactivate themselves")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Store(err, "failed to deactivate user")
	}
	s.signOut(ctx, id)

	recordAudit(ctx, s.repo, s.logger, session, models.AuditActionUserDeactivate, "users", id,
		map[string]bool{"active": user.IsActive}, map[string]bool{"active": false})
	return nil
}

// Delete permanently removes a user record.
func (s *UserService) Delete(ctx context.Context, session *models.Session, id string) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if id == session.UserID {
		return appErrors.Clone(appErrors.ErrBusinessRule, "administrators cannot delete themselves")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Store(err, "failed to delete user")
	}

	recordAudit(ctx, s.repo, s.logger, session, models.AuditActionUserDelete, "users", id,
		map[string]interface{}{"username": user.Username, "email": user.Email, "role": user.Role}, nil)
	return nil
}

// RotatePassword sets a new password for another user without knowing the
// current one and signs that user out everywhere.
func (s *UserService) RotatePassword(ctx context.Context, session *models.Session, id string, req RotatePasswordRequest) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash), s.now().UTC()); err != nil {
		return appErrors.Store(err, "failed to rotate password")
	}
	s.signOut(ctx, id)

	recordAudit(ctx, s.repo, s.logger, session, models.AuditActionPasswordRotate, "users", id, nil, map[string]string{"status": "rotated"})
	return nil
}

func (s *UserService) signOut(ctx context.Context, id string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", id), zap.Error(err))
	}
}

func (s *UserService) ensureUnique(ctx context.Context, selfID, username, email string) error {
	fields := map[string]string{}
	if username != "" {
		existing, err := s.repo.FindByUsername(ctx, username)
		switch {
		case err == nil && existing.ID != selfID:
			fields["username"] = "username already exists"
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Store(err, "failed to check username uniqueness")
		}
	}
	if email != "" {
		existing, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != selfID:
			fields["email"] = "email already exists"
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Store(err, "failed to check email uniqueness")
		}
	}
	if len(fields) > 0 {
		conflict := appErrors.Clone(appErrors.ErrConflict, "user already exists")
		conflict.Fields = fields
		return conflict
	}
	return nil
}

func checkPermissions(requested []string) ([]string, error) {
	known := make(map[string]bool, len(models.AllPermissions))
	for _, p := range models.AllPermissions {
		known[p] = true
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(requested))
	for _, p := range requested {
		p = strings.TrimSpace(p)
		if !known[p] {
			return nil, appErrors.Validation("invalid permissions", map[string]string{"permissions": "unknown permission " + p})
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}
