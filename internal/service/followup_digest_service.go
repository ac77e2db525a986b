package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

type followUpSource interface {
	FollowUps(ctx context.Context, kind FollowUpKind) ([]models.FollowUp, bool, error)
}

// FollowUpDigest summarises the callbacks due today and those already missed.
type FollowUpDigest struct {
	Date    string            `json:"date"`
	Today   []models.FollowUp `json:"today"`
	Overdue []models.FollowUp `json:"overdue"`
}

// FollowUpDigestService builds the daily digest for the scheduler.
type FollowUpDigestService struct {
	followUps followUpSource
	events    EventPublisher
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewFollowUpDigestService constructs the digest job.
func NewFollowUpDigestService(followUps followUpSource, events EventPublisher, loc *time.Location, logger *zap.Logger) *FollowUpDigestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopPublisher{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &FollowUpDigestService{followUps: followUps, events: events, loc: loc, logger: logger, now: time.Now}
}

// Run computes the digest and publishes it as a followups.digest event.
func (s *FollowUpDigestService) Run(ctx context.Context) error {
	today, _, err := s.followUps.FollowUps(ctx, FollowUpToday)
	if err != nil {
		return err
	}
	overdue, _, err := s.followUps.FollowUps(ctx, FollowUpOverdue)
	if err != nil {
		return err
	}
	digest := FollowUpDigest{
		Date:    s.now().In(s.loc).Format("2006-01-02"),
		Today:   today,
		Overdue: overdue,
	}
	s.logger.Info("follow-up digest", zap.String("date", digest.Date), zap.Int("today", len(today)), zap.Int("overdue", len(overdue)))
	s.events.Publish(ctx, EventFollowUpDigest, digest.Date, digest)
	return nil
}
