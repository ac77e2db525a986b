package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
	"github.com/noah-isme/enquiry-desk-api/pkg/export"
)

// headerRows offsets row numbers so reported rows match the spreadsheet, header included.
const headerRows = 2

type advertisementStore interface {
	List(ctx context.Context, filter models.AdvertisementFilter) ([]models.AdvertisementEnquiry, int, error)
	ExistingPhones(ctx context.Context, phones []string) (map[string]bool, error)
	BulkCreate(ctx context.Context, items []models.AdvertisementEnquiry) error
	Delete(ctx context.Context, id string) error
}

// AdvertisementServiceConfig wires the optional collaborators of AdvertisementService.
type AdvertisementServiceConfig struct {
	Audit     auditRecorder
	Events    EventPublisher
	Metrics   *MetricsService
	Validator *validator.Validate
	MaxRows   int
	Logger    *zap.Logger
}

// AdvertisementService validates and imports advertisement-sourced leads.
type AdvertisementService struct {
	store    advertisementStore
	audit    auditRecorder
	events   EventPublisher
	metrics  *MetricsService
	validate *validator.Validate
	maxRows  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdvertisementService constructs the service.
func NewAdvertisementService(store advertisementStore, cfg AdvertisementServiceConfig) *AdvertisementService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Events == nil {
		cfg.Events = nopPublisher{}
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	return &AdvertisementService{
		store:    store,
		audit:    cfg.Audit,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		validate: cfg.Validator,
		maxRows:  cfg.MaxRows,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// List pages imported leads, newest first.
func (s *AdvertisementService) List(ctx context.Context, filter models.AdvertisementFilter) ([]models.AdvertisementEnquiry, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalisePage(filter.Page, filter.PageSize)
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list advertisement enquiries")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ValidateEnquiry reports every rule a normalised candidate breaks.
func (s *AdvertisementService) ValidateEnquiry(candidate models.AdvertisementCandidate) models.CandidateValidation {
	return validation.ValidateCandidate(s.validate, validation.NormalizeCandidate(candidate))
}

// BulkImport validates every row, drops duplicates against stored leads and
// within the batch, then writes the survivors in a single batch.
func (s *AdvertisementService) BulkImport(ctx context.Context, session *models.Session, candidates []models.AdvertisementCandidate) (*models.ImportResult, error) {
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import contains no rows")
	}
	if len(candidates) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import is limited to %d rows", s.maxRows))
	}

	normalised := make([]models.AdvertisementCandidate, len(candidates))
	phones := make([]string, 0, len(candidates))
	for i, c := range candidates {
		normalised[i] = validation.NormalizeCandidate(c)
		if normalised[i].PhoneNo != "" {
			phones = append(phones, normalised[i].PhoneNo)
		}
	}

	existing, err := s.store.ExistingPhones(ctx, phones)
	if err != nil {
		return nil, appErrors.Store(err, "failed to check existing advertisement enquiries")
	}

	result := &models.ImportResult{Errors: make([]string, 0)}
	now := s.now().UTC()
	importedBy := session.Actor()
	if session != nil && session.Username != "" {
		name := session.Username
		importedBy = &name
	}

	staged := make([]models.AdvertisementEnquiry, 0, len(normalised))
	seen := make(map[string]int, len(normalised))
	for i, c := range normalised {
		row := i + headerRows
		if check := validation.ValidateCandidate(s.validate, c); !check.IsValid {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", row, strings.Join(check.Errors, "; ")))
			continue
		}
		if existing[c.PhoneNo] {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: phone number %s already exists", row, c.PhoneNo))
			continue
		}
		if first, dup := seen[c.PhoneNo]; dup {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: phone number %s duplicates row %d", row, c.PhoneNo, first))
			continue
		}
		seen[c.PhoneNo] = row
		staged = append(staged, models.AdvertisementEnquiry{
			Name:       c.Name,
			PhoneNo:    c.PhoneNo,
			Email:      c.Email,
			AadharNo:   optionalString(c.AadharNo),
			PanNo:      optionalString(c.PanNo),
			ImportedAt: now,
			ImportedBy: importedBy,
		})
	}

	if len(staged) > 0 {
		if err := s.store.BulkCreate(ctx, staged); err != nil {
			return nil, appErrors.Store(err, "failed to import advertisement enquiries")
		}
	}
	result.Success = len(staged)

	s.metrics.RecordImport(*result)
	s.logger.Info("advertisement import finished", zap.Int("rows", len(candidates)), zap.Int("success", result.Success), zap.Int("failed", result.Failed))
	if result.Success > 0 {
		recordAudit(ctx, s.audit, s.logger, session, models.AuditActionAdvertImport, "advertisements", "", nil, map[string]int{"success": result.Success, "failed": result.Failed})
		s.events.Publish(ctx, EventAdvertisementImported, "", map[string]int{"success": result.Success, "failed": result.Failed})
	}
	return result, nil
}

// ImportCSV parses an uploaded sheet and imports its rows.
func (s *AdvertisementService) ImportCSV(ctx context.Context, session *models.Session, r io.Reader) (*models.ImportResult, error) {
	rows, err := export.ParseCSV(r)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unable to read CSV file: "+err.Error())
	}
	candidates := make([]models.AdvertisementCandidate, len(rows))
	for i, row := range rows {
		candidates[i] = candidateFromRow(row)
	}
	return s.BulkImport(ctx, session, candidates)
}

func candidateFromRow(row map[string]string) models.AdvertisementCandidate {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := row[k]; ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}
	return models.AdvertisementCandidate{
		Name:     pick("name", "fullname"),
		PhoneNo:  pick("phoneno", "phone", "mobile", "phonenumber"),
		Email:    pick("email", "emailid"),
		AadharNo: pick("aadharno", "aadhar", "aadharnumber"),
		PanNo:    pick("panno", "pan", "pannumber"),
	}
}

// Delete removes an imported lead; administrators only.
func (s *AdvertisementService) Delete(ctx context.Context, session *models.Session, id string) (bool, error) {
	if !session.CanDelete() {
		return false, appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete advertisement enquiries")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "advertisement enquiry not found")
		}
		return false, appErrors.Store(err, "failed to delete advertisement enquiry")
	}
	recordAudit(ctx, s.audit, s.logger, session, models.AuditActionAdvertDelete, "advertisements", id, nil, nil)
	return true, nil
}
