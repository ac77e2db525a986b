package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enquiry-desk-api/internal/middleware"
	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
	"github.com/noah-isme/enquiry-desk-api/pkg/response"
)

// sessionFromContext returns the caller's session, writing a 401 when absent.
func sessionFromContext(c *gin.Context) (*models.Session, bool) {
	session := middleware.CurrentSession(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return session, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func withCacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	middleware.SetCacheHit(c, hit)
	return middleware.ResponseMeta(c)
}
