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

type mockAuthRepo struct {
	users            map[string]*models.User
	findErr          error
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedUsers     []string
}

func (m *mockAuthRepo) find(match func(*models.User) bool) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockAuthRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 30 * 24 * time.Hour,
		SessionTokenExpiry: 12 * time.Hour,
		Issuer:             "enquiry-desk",
	})
	svc.now = func() time.Time { return time.Now() }
	return svc
}

func staffUser(t *testing.T, active bool) *models.User {
	return &models.User{
		ID:           "u1",
		Username:     "asha",
		Email:        "asha@example.com",
		FullName:     "Asha Menon",
		PasswordHash: hashPassword(t, "password"),
		Role:         models.RoleUser,
		IsActive:     active,
		Permissions:  []string{models.PermissionViewEnquiries},
	}
}

func TestAuthServiceLoginByUsernameOrEmail(t *testing.T) {
	user := staffUser(t, true)
	repo := &mockAuthRepo{users: map[string]*models.User{user.ID: user}}
	svc := newTestAuthService(repo)

	for _, identifier := range []string{"asha", "ASHA", "Asha@Example.com"} {
		res, err := svc.Login(context.Background(), models.LoginRequest{Identifier: identifier, Password: "password"})
		require.NoError(t, err, identifier)
		assert.NotEmpty(t, res.AccessToken)
		assert.NotEmpty(t, res.RefreshToken)
		assert.Equal(t, "asha", res.User.Username)
		assert.Equal(t, []string{models.PermissionViewEnquiries}, res.User.Permissions)
	}
	assert.True(t, repo.lastLoginUpdated)
	require.NotEmpty(t, repo.auditLogs)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	user := staffUser(t, true)
	repo := &mockAuthRepo{users: map[string]*models.User{user.ID: user}}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "asha", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "nobody", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginInactiveSignsOut(t *testing.T) {
	user := staffUser(t, false)
	repo := &mockAuthRepo{
		users:         map[string]*models.User{user.ID: user},
		refreshTokens: map[string]*models.RefreshToken{"old": {ID: "rt0", UserID: user.ID, Token: "old", ExpiresAt: time.Now().Add(time.Hour)}},
	}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "asha", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
	assert.True(t, repo.refreshTokens["old"].Revoked)
	assert.Len(t, repo.refreshTokens, 1)
}

func TestAuthServiceRememberMeSelectsRefreshWindow(t *testing.T) {
	user := staffUser(t, true)
	repo := &mockAuthRepo{users: map[string]*models.User{user.ID: user}}
	svc := newTestAuthService(repo)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	short, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "asha", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(12*time.Hour), short.RefreshExpiresAt)
	assert.False(t, repo.refreshTokens[short.RefreshToken].RememberMe)

	long, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "asha", Password: "password", RememberMe: true})
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), long.RefreshExpiresAt)
	assert.True(t, repo.refreshTokens[long.RefreshToken].RememberMe)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := staffUser(t, true)
	repo := &mockAuthRepo{
		users:         map[string]*models.User{user.ID: user},
		refreshTokens: map[string]*models.RefreshToken{"token": {ID: "rt1", UserID: user.ID, Token: "token", RememberMe: true, ExpiresAt: time.Now().Add(time.Hour)}},
	}
	svc := newTestAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
	assert.True(t, repo.refreshTokens[res.RefreshToken].RememberMe)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	user := staffUser(t, true)
	repo := &mockAuthRepo{
		users:         map[string]*models.User{user.ID: user},
		refreshTokens: map[string]*models.RefreshToken{"token": {ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(-time.Minute)}},
	}
	svc := newTestAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceLogout(t *testing.T) {
	user := staffUser(t, true)
	repo := &mockAuthRepo{
		users:         map[string]*models.User{user.ID: user},
		refreshTokens: map[string]*models.RefreshToken{"token": {ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}},
	}
	svc := newTestAuthService(repo)

	err := svc.Logout(context.Background(), &models.Session{UserID: "someone-else"}, "token")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.False(t, repo.refreshTokens["token"].Revoked)

	require.NoError(t, svc.Logout(context.Background(), &models.Session{UserID: user.ID}, "token"))
	assert.True(t, repo.refreshTokens["token"].Revoked)

	assert.ErrorIs(t, svc.Logout(context.Background(), nil, "token"), appErrors.ErrUnauthorized)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := staffUser(t, true)
	oldHash := user.PasswordHash
	repo := &mockAuthRepo{users: map[string]*models.User{user.ID: user}}
	svc := newTestAuthService(repo)
	session := &models.Session{UserID: user.ID, Username: user.Username}

	err := svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newpassword"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{CurrentPassword: "password", NewPassword: "password"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	require.NoError(t, svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{CurrentPassword: "password", NewPassword: "newpassword"}))
	assert.NotEqual(t, oldHash, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword")))
	assert.Equal(t, []string{user.ID}, repo.revokedUsers)
}

func TestAuthServiceMeAdminHoldsAllPermissions(t *testing.T) {
	admin := &models.User{ID: "a1", Username: "root", Role: models.RoleAdmin, IsActive: true}
	svc := newTestAuthService(&mockAuthRepo{users: map[string]*models.User{admin.ID: admin}})

	info, err := svc.Me(context.Background(), &models.Session{UserID: "a1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, models.AllPermissions, info.Permissions)

	_, err = svc.Me(context.Background(), &models.Session{UserID: "missing"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})
	user := &models.User{ID: "u1", Username: "asha", Email: "asha@example.com", Role: models.RoleUser, Permissions: []string{models.PermissionExport}}
	token, _, err := svc.generateAccessToken(user, time.Now())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "asha", claims.Username)
	assert.Equal(t, []string{models.PermissionExport}, claims.Permissions)

	_, err = svc.ValidateToken(token + "x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
