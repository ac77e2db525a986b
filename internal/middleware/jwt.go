package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
	"github.com/noah-isme/enquiry-desk-api/pkg/logger"
	"github.com/noah-isme/enquiry-desk-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the caller's *models.Session.
const ContextSessionKey = "currentSession"

// TokenValidator validates bearer access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		attachSession(c, claims)
		c.Next()
	}
}

// OptionalJWT attaches a session when a valid token is present but does not block.
func OptionalJWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := validator.ValidateToken(token); err == nil {
				attachSession(c, claims)
			}
		}
		c.Next()
	}
}

// CurrentSession returns the session set by JWT, or nil.
func CurrentSession(c *gin.Context) *models.Session {
	if value, ok := c.Get(ContextSessionKey); ok {
		if session, ok := value.(*models.Session); ok {
			return session
		}
	}
	return nil
}

func attachSession(c *gin.Context, claims *models.JWTClaims) {
	session := models.SessionFromClaims(claims)
	session.IP = c.ClientIP()
	session.UserAgent = c.GetHeader("User-Agent")
	c.Set(ContextSessionKey, session)
	c.Set(logger.UserIDKey, session.UserID)
	c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), session.UserID))
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
