package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type mockUserRepo struct {
	users        map[string]*models.User
	listFilter   models.UserFilter
	listErr      error
	auditLogs    []*models.AuditLog
	revokedUsers []string
}

func (m *mockUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(_ context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.IsActive = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	if user, ok := m.users[id]; ok {
		user.PasswordHash = passwordHash
		user.PasswordChangedAt = &changedAt
	}
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func seededUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Username: "admin", Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true},
		"u1":      {ID: "u1", Username: "asha", Email: "asha@example.com", FullName: "Asha", Role: models.RoleUser, IsActive: true},
	}}
}

func TestUserServiceRequiresAdmin(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.List(ctx, staffSession, models.UserFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.Get(ctx, nil, "u1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, staffSession, "u1"), appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.RotatePassword(ctx, staffSession, "u1", RotatePasswordRequest{NewPassword: "secret1"}), appErrors.ErrForbidden)
	assert.Len(t, repo.users, 2)
	assert.Empty(t, repo.auditLogs)
}

func TestUserServiceList(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	users, pagination, err := svc.List(context.Background(), adminSession, models.UserFilter{Page: 0, PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 1, repo.listFilter.Page)
	assert.Equal(t, 20, repo.listFilter.PageSize)
}

func TestUserServiceCreate(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), adminSession, CreateUserRequest{
		Username:    "bala",
		Email:       "BALA@EXAMPLE.COM",
		FullName:    "Bala",
		Password:    "secret1",
		Role:        models.RoleUser,
		Permissions: []string{models.PermissionViewEnquiries, models.PermissionViewEnquiries},
	})
	require.NoError(t, err)
	assert.Equal(t, "bala@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.Equal(t, []string{models.PermissionViewEnquiries}, []string(user.Permissions))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceCreateRejectsConflictsAndUnknownPermissions(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), adminSession, CreateUserRequest{Username: "ASHA", Email: "asha@example.com", FullName: "Dup", Password: "secret1", Role: models.RoleUser})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	fields := appErrors.FromError(err).Fields
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")

	_, err = svc.Create(context.Background(), adminSession, CreateUserRequest{Username: "new", Email: "new@example.com", FullName: "New", Password: "secret1", Role: models.RoleUser, Permissions: []string{"root"}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), adminSession, CreateUserRequest{Username: "new", Email: "new@example.com", FullName: "New", Password: "secret1", Role: "owner"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, repo.users, 2)
}

func TestUserServiceUpdateDeactivationSignsOut(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	active := false

	user, err := svc.Update(context.Background(), adminSession, "u1", UpdateUserRequest{FullName: "Asha M", Role: models.RoleUser, Active: &active, Permissions: []string{models.PermissionExport}})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, "Asha M", repo.users["u1"].FullName)
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
	require.Len(t, repo.auditLogs, 1)
	assert.NotEmpty(t, repo.auditLogs[0].OldValues)

	_, err = svc.Update(context.Background(), adminSession, "u1", UpdateUserRequest{Email: "admin@example.com", FullName: "Asha", Role: models.RoleUser})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestUserServiceDeactivateAndDelete(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Deactivate(ctx, adminSession, adminSession.UserID), appErrors.ErrBusinessRule)

	require.NoError(t, svc.Deactivate(ctx, adminSession, "u1"))
	assert.False(t, repo.users["u1"].IsActive)
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)

	require.NoError(t, svc.Delete(ctx, adminSession, "u1"))
	assert.NotContains(t, repo.users, "u1")
	assert.ErrorIs(t, svc.Delete(ctx, adminSession, "u1"), appErrors.ErrNotFound)

	require.Len(t, repo.auditLogs, 2)
	assert.Equal(t, models.AuditActionUserDeactivate, repo.auditLogs[0].Action)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[1].Action)
}

func TestUserServiceRotatePassword(t *testing.T) {
	repo := seededUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.RotatePassword(context.Background(), adminSession, "u1", RotatePasswordRequest{NewPassword: "rotated1"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("rotated1")))
	assert.NotNil(t, repo.users["u1"].PasswordChangedAt)
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)

	err := svc.RotatePassword(context.Background(), adminSession, "missing", RotatePasswordRequest{NewPassword: "rotated1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	err = svc.RotatePassword(context.Background(), adminSession, "u1", RotatePasswordRequest{NewPassword: "x"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
