package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit row. Failures are logged and never returned.
func recordAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, session *models.Session, action, resource, resourceID string, oldValues, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:   session.Actor(),
		Action:   action,
		Resource: resource,
	}
	if resourceID != "" {
		id := resourceID
		entry.ResourceID = &id
	}
	if session != nil {
		entry.IPAddress = session.IP
		entry.UserAgent = session.UserAgent
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}
