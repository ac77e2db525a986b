package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type fakeAuthSrv struct {
	login     models.LoginRequest
	loggedOut string
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if req.Password != "password" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuthSrv) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (f *fakeAuthSrv) Logout(_ context.Context, _ *models.Session, token string) error {
	f.loggedOut = token
	return nil
}

func (f *fakeAuthSrv) ChangePassword(context.Context, *models.Session, models.ChangePasswordRequest) error {
	return nil
}

func (f *fakeAuthSrv) Me(_ context.Context, session *models.Session) (*models.UserInfo, error) {
	return &models.UserInfo{ID: session.UserID, Username: session.Username}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv)
	c, rec := newContext(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"asha","password":"password","rememberMe":true}`), nil)
	c.Request.Header.Set("User-Agent", "browser")

	h.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "asha", srv.login.Identifier)
	assert.True(t, srv.login.RememberMe)
	assert.Equal(t, "browser", srv.login.UserAgent)
	assert.Contains(t, rec.Body.String(), `"access_token":"access"`)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{})
	c, rec := newContext(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"asha","password":"nope"}`), nil)

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerLogoutAndMe(t *testing.T) {
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv)

	c, rec := newContext(http.MethodPost, "/auth/logout", strings.NewReader(`{}`), staffSession)
	h.Logout(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, _ = newContext(http.MethodPost, "/auth/logout", strings.NewReader(`{"refresh_token":"rt"}`), staffSession)
	h.Logout(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "rt", srv.loggedOut)

	c, rec = newContext(http.MethodGet, "/auth/me", nil, staffSession)
	h.Me(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"staff"`)

	c, rec = newContext(http.MethodGet, "/auth/me", nil, nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
