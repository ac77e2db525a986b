package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type paymentStore interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.PaymentRecord, error)
	Delete(ctx context.Context, id string) error
}

// PaymentService exposes the payment ledger.
type PaymentService struct {
	store  paymentStore
	audit  auditRecorder
	events EventPublisher
	cache  *CacheService
	logger *zap.Logger
}

// NewPaymentService constructs the service.
func NewPaymentService(store paymentStore, audit auditRecorder, events EventPublisher, cache *CacheService, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &PaymentService{store: store, audit: audit, events: events, cache: cache, logger: logger}
}

// List pages ledger rows, newest first.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, *models.Pagination, error) {
	filter.Mode = strings.TrimSpace(filter.Mode)
	if filter.Mode != "" && filter.Mode != string(models.PaymentModeOnline) && filter.Mode != string(models.PaymentModeOffline) {
		return nil, nil, appErrors.Validation("invalid payment filter", map[string]string{"mode": "mode must be Online or Offline"})
	}
	for field, raw := range map[string]string{"from": filter.From, "to": filter.To} {
		if raw == "" {
			continue
		}
		if _, err := validation.ParseDate(raw, nil); err != nil {
			return nil, nil, appErrors.Validation("invalid payment filter", map[string]string{field: "must be a date in YYYY-MM-DD format"})
		}
	}
	filter.Page, filter.PageSize = normalisePage(filter.Page, filter.PageSize)

	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list payments")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Delete removes a ledger row. The enquiry's own payment history is left untouched.
func (s *PaymentService) Delete(ctx context.Context, session *models.Session, id string) (bool, error) {
	if !session.CanDelete() {
		return false, appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete payments")
	}
	previous, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return false, appErrors.Store(err, "failed to load payment")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return false, appErrors.Store(err, "failed to delete payment")
	}

	recordAudit(ctx, s.audit, s.logger, session, models.AuditActionPaymentDelete, "payments", id, previous, nil)
	s.cache.Invalidate(ctx, statsCachePattern)
	s.events.Publish(ctx, EventPaymentDeleted, previous.EnquiryID, map[string]interface{}{
		"id":        id,
		"enquiryId": previous.EnquiryID,
		"amount":    previous.Amount,
	})
	return true, nil
}
