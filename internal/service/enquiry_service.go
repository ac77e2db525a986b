package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

const initialPaymentNote = "initial payment recorded at registration"

// Fields a patch may never overwrite.
var protectedEnquiryFields = []string{"id", "createdAt", "updatedAt"}

type enquiryStore interface {
	List(ctx context.Context) ([]models.Enquiry, error)
	FindByID(ctx context.Context, id string) (*models.Enquiry, error)
	CreateWithPayment(ctx context.Context, enquiry *models.Enquiry, payment *models.PaymentRecord) error
	UpdateWithPayment(ctx context.Context, enquiry *models.Enquiry, payment *models.PaymentRecord) error
	Delete(ctx context.Context, id string) error
}

// EnquiryServiceConfig wires the optional collaborators of EnquiryService.
type EnquiryServiceConfig struct {
	Audit     auditRecorder
	Events    EventPublisher
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validation.EnquiryValidator
	Location  *time.Location
	Logger    *zap.Logger
}

// EnquiryService owns the enquiry lifecycle and its payment bookkeeping.
type EnquiryService struct {
	store     enquiryStore
	audit     auditRecorder
	events    EventPublisher
	cache     *CacheService
	metrics   *MetricsService
	validator *validation.EnquiryValidator
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnquiryService constructs the service.
func NewEnquiryService(store enquiryStore, cfg EnquiryServiceConfig) *EnquiryService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.NewEnquiryValidator(nil, cfg.Location)
	}
	if cfg.Events == nil {
		cfg.Events = nopPublisher{}
	}
	return &EnquiryService{
		store:     store,
		audit:     cfg.Audit,
		events:    cfg.Events,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		validator: cfg.Validator,
		loc:       cfg.Location,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// GetAll returns every enquiry after the normalisation pass.
func (s *EnquiryService) GetAll(ctx context.Context) ([]models.Enquiry, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load enquiries")
	}
	enquiries := make([]models.Enquiry, len(stored))
	for i := range stored {
		enquiries[i] = MigrateEnquiry(stored[i])
	}
	return enquiries, nil
}

// List filters and pages the normalised enquiries in memory.
func (s *EnquiryService) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, *models.Pagination, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]models.Enquiry, 0, len(all))
	for _, e := range all {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if search != "" && !enquiryMatches(e, search) {
			continue
		}
		matched = append(matched, e)
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(matched)}, nil
}

func enquiryMatches(e models.Enquiry, search string) bool {
	for _, field := range []string{e.FullName, e.Mobile, e.Email, e.AadharNumber} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// Get returns a single normalised enquiry.
func (s *EnquiryService) Get(ctx context.Context, id string) (*models.Enquiry, error) {
	stored, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Store(err, "failed to load enquiry")
	}
	enquiry := MigrateEnquiry(*stored)
	return &enquiry, nil
}

// Save creates an enquiry. A first history entry with a positive amount is
// mirrored into the payment ledger in the same transaction.
func (s *EnquiryService) Save(ctx context.Context, session *models.Session, input models.Enquiry) (*models.Enquiry, error) {
	statusGiven := input.Status != ""
	interestGiven := input.InterestedStatus != ""

	enquiry := input
	enquiry.ID = ""
	if enquiry.Status == "" {
		enquiry.Status = models.EnquiryStatusPending
	}
	normaliseEnquiryFields(&enquiry)
	ApplyStatusRules(&enquiry, statusGiven, interestGiven)

	now := s.now().UTC()
	for i := range enquiry.PaymentHistory {
		entry := &enquiry.PaymentHistory[i]
		if entry.ID == "" {
			entry.ID = NewPaymentID(now)
		}
		if entry.Date == "" {
			entry.Date = now.In(s.loc).Format("2006-01-02")
		}
		if entry.CreatedBy == "" && session != nil {
			entry.CreatedBy = session.Username
		}
	}
	enquiry = MigrateEnquiry(enquiry)

	if err := s.validator.ValidateNew(&enquiry); err != nil {
		return nil, err
	}

	candidate := models.DuplicateCandidate{Mobile: enquiry.Mobile, Email: enquiry.Email, AadharNumber: enquiry.AadharNumber}
	if err := s.rejectDuplicates(ctx, candidate, ""); err != nil {
		return nil, err
	}

	if enquiry.CreatedAt.IsZero() {
		enquiry.CreatedAt = now
	}
	if enquiry.UpdatedAt.IsZero() {
		enquiry.UpdatedAt = now
	}

	var ledger *models.PaymentRecord
	if len(enquiry.PaymentHistory) > 0 && enquiry.PaymentHistory[0].Amount.Float() > 0 {
		first := enquiry.PaymentHistory[0]
		if first.Note == "" {
			first.Note = initialPaymentNote
		}
		ledger = ledgerRecord(&enquiry, first, now)
	}

	if err := s.store.CreateWithPayment(ctx, &enquiry, ledger); err != nil {
		return nil, appErrors.Store(err, "failed to save enquiry")
	}

	s.afterWrite(ctx, "create")
	s.events.Publish(ctx, EventEnquiryCreated, enquiry.ID, enquiry)
	if ledger != nil {
		s.metrics.RecordPayment(enquiry.PaymentHistory[0].Mode, ledger.Amount)
		s.events.Publish(ctx, EventPaymentRecorded, enquiry.ID, ledger)
	}

	saved := MigrateEnquiry(enquiry)
	return &saved, nil
}

// Update shallow-merges patch over the stored enquiry.
func (s *EnquiryService) Update(ctx context.Context, session *models.Session, id string, patch models.EnquiryPatch) (*models.Enquiry, error) {
	patch = sanitisePatch(patch)

	previous, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, err := mergeEnquiry(*previous, patch)
	if err != nil {
		return nil, err
	}
	if patch.Has("enquiryDistrict") && !patch.Has("enquiryState") {
		merged.EnquiryState = merged.EnquiryDistrict
	}
	if patch.Has("knowledgeOfAndroid") && !patch.Has("knowledgeOfDevelopment") {
		merged.KnowledgeOfDevelopment = merged.KnowledgeOfAndroid
	}
	normaliseEnquiryFields(&merged)
	ApplyStatusRules(&merged, patch.Has("status"), patch.Has("interestedStatus"))
	merged = MigrateEnquiry(merged)

	if err := s.validator.ValidateChanges(&merged, patch); err != nil {
		return nil, err
	}

	candidate := models.DuplicateCandidate{}
	if patch.Has("mobile") {
		candidate.Mobile = merged.Mobile
	}
	if patch.Has("email") {
		candidate.Email = merged.Email
	}
	if patch.Has("aadharNumber") {
		candidate.AadharNumber = merged.AadharNumber
	}
	if err := s.rejectDuplicates(ctx, candidate, id); err != nil {
		return nil, err
	}

	merged.ID = previous.ID
	merged.CreatedAt = previous.CreatedAt
	merged.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateWithPayment(ctx, &merged, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Store(err, "failed to update enquiry")
	}

	s.afterWrite(ctx, "update")
	s.events.Publish(ctx, EventEnquiryUpdated, merged.ID, map[string]interface{}{
		"id":     merged.ID,
		"fields": patchFields(patch),
		"status": merged.Status,
	})
	return &merged, nil
}

// AddPayment appends a payment to the enquiry's history and the ledger atomically.
// Business rule violations are reported before anything is written.
func (s *EnquiryService) AddPayment(ctx context.Context, session *models.Session, id string, req models.AddPaymentRequest) (*models.Enquiry, error) {
	if err := s.validatePayment(&req); err != nil {
		return nil, err
	}

	enquiry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	total := enquiry.TotalFees.Float()
	if !enquiry.TotalFees.IsSet() || total <= 0 {
		s.metrics.RecordPaymentRejected(req.Mode)
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "total fees must be set before recording a payment")
	}
	amount := req.Amount.Float()
	paid := PaidSoFar(enquiry)
	if paid+amount > total+paymentTolerance {
		s.metrics.RecordPaymentRejected(req.Mode)
		remaining := models.AmountOf(total - paid)
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, fmt.Sprintf("payment of %s exceeds remaining fees of %s", models.AmountOf(amount), remaining))
	}

	now := s.now().UTC()
	entry := models.PaymentEntry{
		ID:        NewPaymentID(now),
		Date:      req.Date,
		Amount:    models.AmountOf(amount),
		Mode:      req.Mode,
		Reference: strings.TrimSpace(req.Reference),
		Note:      strings.TrimSpace(req.Note),
	}
	if req.Mode == models.PaymentModeOffline {
		entry.Method = req.Method
	}
	if session != nil {
		entry.CreatedBy = session.Username
	}

	updated := *enquiry
	updated.PaymentHistory = append(models.PaymentHistory{}, enquiry.PaymentHistory...)
	if opening, ok := OpeningBalance(enquiry, now, s.loc); ok {
		updated.PaymentHistory = append(updated.PaymentHistory, opening)
	}
	updated.PaymentHistory = append(updated.PaymentHistory, entry)
	RecomputeFees(&updated)
	updated.UpdatedAt = now

	var ledger *models.PaymentRecord
	if amount > 0 {
		ledger = ledgerRecord(&updated, entry, now)
	}

	if err := s.store.UpdateWithPayment(ctx, &updated, ledger); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Store(err, "failed to record payment")
	}

	s.afterWrite(ctx, "payment")
	s.metrics.RecordPayment(entry.Mode, amount)
	if ledger != nil {
		s.events.Publish(ctx, EventPaymentRecorded, updated.ID, ledger)
	}
	return &updated, nil
}

func (s *EnquiryService) validatePayment(req *models.AddPaymentRequest) error {
	problems := map[string]string{}
	if !req.Amount.Valid() || req.Amount.Float() <= 0 {
		problems["amount"] = "amount must be a positive number"
	}
	switch req.Mode {
	case models.PaymentModeOnline:
	case models.PaymentModeOffline:
		if req.Method != models.PaymentMethodCash && req.Method != models.PaymentMethodCheque {
			problems["method"] = "offline payments need a method of Cash or Cheque"
		}
	default:
		problems["mode"] = "mode must be Online or Offline"
	}
	if strings.TrimSpace(req.Date) == "" {
		req.Date = s.now().In(s.loc).Format("2006-01-02")
	} else if _, err := validation.ParseDate(req.Date, s.loc); err != nil {
		problems["date"] = "date is not a valid date"
	}
	if len(problems) > 0 {
		return appErrors.Validation("invalid payment", problems)
	}
	return nil
}

// Delete removes an enquiry. Non-administrators get (false, FORBIDDEN) and the store is never touched.
func (s *EnquiryService) Delete(ctx context.Context, session *models.Session, id string) (bool, error) {
	if !session.CanDelete() {
		return false, appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete enquiries")
	}

	previous, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return false, appErrors.Store(err, "failed to delete enquiry")
	}

	recordAudit(ctx, s.audit, s.logger, session, models.AuditActionEnquiryDelete, "enquiries", id, previous, nil)
	s.afterWrite(ctx, "delete")
	s.events.Publish(ctx, EventEnquiryDeleted, id, map[string]string{"id": id, "fullName": previous.FullName})
	return true, nil
}

// CheckDuplicates reports fields of candidate already used by another enquiry.
func (s *EnquiryService) CheckDuplicates(ctx context.Context, candidate models.DuplicateCandidate, excludeID string) ([]models.DuplicateCheck, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return FindDuplicates(all, candidate, excludeID), nil
}

// GetExisting finds a lead by Aadhar, mobile or email, in that order.
func (s *EnquiryService) GetExisting(ctx context.Context, aadhar, mobile, email string) (*models.Enquiry, error) {
	if strings.TrimSpace(aadhar) == "" && strings.TrimSpace(mobile) == "" && strings.TrimSpace(email) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "aadhar, mobile or email is required")
	}
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	found := FindExisting(all, aadhar, mobile, email)
	if found == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no matching enquiry")
	}
	return found, nil
}

// MigrateAliases rewrites every stored document whose normalised form differs,
// so both alias pairs and the fee fields are persisted. It returns the number rewritten.
func (s *EnquiryService) MigrateAliases(ctx context.Context, session *models.Session) (int, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return 0, appErrors.Store(err, "failed to load enquiries")
	}
	rewritten := make([]string, 0)
	for i := range stored {
		migrated := MigrateEnquiry(stored[i])
		before, _ := json.Marshal(stored[i])
		after, _ := json.Marshal(migrated)
		if string(before) == string(after) {
			continue
		}
		if err := s.store.UpdateWithPayment(ctx, &migrated, nil); err != nil {
			return len(rewritten), appErrors.Store(err, fmt.Sprintf("failed to migrate enquiry %s", migrated.ID))
		}
		rewritten = append(rewritten, migrated.ID)
	}
	if len(rewritten) > 0 {
		recordAudit(ctx, s.audit, s.logger, session, models.AuditActionAliasMigration, "enquiries", "", nil, map[string]interface{}{"ids": rewritten})
		s.cache.Invalidate(ctx, statsCachePattern)
	}
	s.logger.Info("enquiry alias migration finished", zap.Int("scanned", len(stored)), zap.Int("rewritten", len(rewritten)))
	return len(rewritten), nil
}

func (s *EnquiryService) rejectDuplicates(ctx context.Context, candidate models.DuplicateCandidate, excludeID string) error {
	if candidate.Mobile == "" && candidate.Email == "" && candidate.AadharNumber == "" {
		return nil
	}
	findings, err := s.CheckDuplicates(ctx, candidate, excludeID)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		return nil
	}
	fields := make(map[string]string, len(findings))
	for _, f := range findings {
		fields[f.Field] = fmt.Sprintf("already used by enquiry %s (%s)", f.EnquiryName, f.EnquiryID)
	}
	conflict := appErrors.Clone(appErrors.ErrConflict, "duplicate enquiry")
	conflict.Fields = fields
	return conflict
}

func (s *EnquiryService) afterWrite(ctx context.Context, operation string) {
	s.cache.Invalidate(ctx, statsCachePattern)
	s.metrics.RecordEnquiryWrite(operation)
}

func ledgerRecord(e *models.Enquiry, entry models.PaymentEntry, now time.Time) *models.PaymentRecord {
	record := &models.PaymentRecord{
		ID:          entry.ID,
		EnquiryID:   e.ID,
		EnquiryName: e.FullName,
		Date:        entry.Date,
		Amount:      entry.Amount.Float(),
		Mode:        string(entry.Mode),
		OfflineType: optionalString(string(entry.Method)),
		Reference:   optionalString(entry.Reference),
		Note:        optionalString(entry.Note),
		CreatedBy:   optionalString(entry.CreatedBy),
		CreatedAt:   now,
	}
	return record
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func normaliseEnquiryFields(e *models.Enquiry) {
	e.FullName = validation.CollapseSpaces(e.FullName)
	e.Mobile = strings.TrimSpace(e.Mobile)
	e.AlternateMobile = strings.TrimSpace(e.AlternateMobile)
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.AadharNumber = validation.StripSpaces(e.AadharNumber)
	e.PanNumber = strings.ToUpper(strings.TrimSpace(e.PanNumber))
	e.DemateAccount1 = strings.ToUpper(strings.TrimSpace(e.DemateAccount1))
	e.DemateAccount2 = strings.ToUpper(strings.TrimSpace(e.DemateAccount2))
}

func sanitisePatch(patch models.EnquiryPatch) models.EnquiryPatch {
	clean := make(models.EnquiryPatch, len(patch))
	for k, v := range patch {
		clean[k] = v
	}
	for _, field := range protectedEnquiryFields {
		delete(clean, field)
	}
	return clean
}

func mergeEnquiry(previous models.Enquiry, patch models.EnquiryPatch) (models.Enquiry, error) {
	base, err := json.Marshal(previous)
	if err != nil {
		return models.Enquiry{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode enquiry")
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &doc); err != nil {
		return models.Enquiry{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode enquiry")
	}
	for k, v := range patch {
		doc[k] = v
	}
	mergedDoc, err := json.Marshal(doc)
	if err != nil {
		return models.Enquiry{}, appErrors.Validation("invalid enquiry patch", nil)
	}
	var merged models.Enquiry
	if err := json.Unmarshal(mergedDoc, &merged); err != nil {
		return models.Enquiry{}, appErrors.Validation("invalid enquiry patch: "+err.Error(), nil)
	}
	return merged, nil
}

func patchFields(patch models.EnquiryPatch) []string {
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
