package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

// FollowUpKind selects a follow-up window relative to today.
type FollowUpKind string

const (
	FollowUpToday    FollowUpKind = "today"
	FollowUpUpcoming FollowUpKind = "upcoming"
	FollowUpOverdue  FollowUpKind = "overdue"
)

const unknownLabel = "Unknown"

type enquirySource interface {
	GetAll(ctx context.Context) ([]models.Enquiry, error)
}

// StatisticsService derives aggregates from the normalised enquiry collection.
type StatisticsService struct {
	enquiries enquirySource
	cache     *CacheService
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatisticsService constructs the service. Dates are bucketed in loc.
func NewStatisticsService(enquiries enquirySource, cache *CacheService, loc *time.Location, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &StatisticsService{enquiries: enquiries, cache: cache, loc: loc, logger: logger, now: time.Now}
}

func (s *StatisticsService) today() time.Time {
	return validation.Day(s.now().In(s.loc))
}

// GetStatistics counts enquiries by status and interest.
func (s *StatisticsService) GetStatistics(ctx context.Context) (*models.EnquiryStatistics, bool, error) {
	stats, hit, err := Remember(ctx, s.cache, statsCachePrefix+"overview:"+s.today().Format("2006-01-02"), func(ctx context.Context) (models.EnquiryStatistics, error) {
		all, err := s.enquiries.GetAll(ctx)
		if err != nil {
			return models.EnquiryStatistics{}, err
		}
		return s.computeStatistics(all), nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stats, hit, nil
}

func (s *StatisticsService) computeStatistics(all []models.Enquiry) models.EnquiryStatistics {
	today := s.today()
	stats := models.EnquiryStatistics{Total: len(all), ByInterest: map[string]int{}}
	for _, level := range models.InterestLevels {
		stats.ByInterest[string(level)] = 0
	}
	for _, e := range all {
		switch e.Status {
		case models.EnquiryStatusPending:
			stats.Pending++
		case models.EnquiryStatusInProcess:
			stats.InProcess++
		case models.EnquiryStatusConfirmed:
			stats.Confirmed++
		}
		if e.InterestedStatus != "" {
			stats.ByInterest[string(e.InterestedStatus)]++
		}
		if !e.CreatedAt.IsZero() {
			created := e.CreatedAt.In(s.loc)
			if validation.Day(created).Equal(today) {
				stats.CreatedToday++
			}
			if created.Year() == today.Year() && created.Month() == today.Month() {
				stats.CreatedThisMonth++
			}
		}
	}
	if stats.Total > 0 {
		stats.ConversionRate = math.Round(float64(stats.Confirmed)/float64(stats.Total)*10000) / 100
	}
	return stats
}

// GetPaymentStatistics aggregates fees and collections.
func (s *StatisticsService) GetPaymentStatistics(ctx context.Context) (*models.PaymentStatistics, bool, error) {
	stats, hit, err := Remember(ctx, s.cache, statsCachePrefix+"payments", func(ctx context.Context) (models.PaymentStatistics, error) {
		all, err := s.enquiries.GetAll(ctx)
		if err != nil {
			return models.PaymentStatistics{}, err
		}
		return computePaymentStatistics(all), nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stats, hit, nil
}

func computePaymentStatistics(all []models.Enquiry) models.PaymentStatistics {
	var stats models.PaymentStatistics
	for _, e := range all {
		total := e.TotalFees.Float()
		paid := e.PaidFees.Float()
		remaining := e.RemainingFees.Float()
		stats.TotalFees += total
		stats.Collected += paid
		stats.Outstanding += remaining
		for _, entry := range e.PaymentHistory {
			stats.PaymentCount++
			switch entry.Mode {
			case models.PaymentModeOnline:
				stats.OnlineAmount += entry.Amount.Float()
			case models.PaymentModeOffline:
				stats.OfflineAmount += entry.Amount.Float()
			}
		}
		if total <= 0 {
			continue
		}
		switch {
		case remaining <= 0:
			stats.FullyPaid++
		case paid > 0:
			stats.PartiallyPaid++
		default:
			stats.Unpaid++
		}
	}
	stats.TotalFees = roundMoney(stats.TotalFees)
	stats.Collected = roundMoney(stats.Collected)
	stats.Outstanding = roundMoney(stats.Outstanding)
	stats.OnlineAmount = roundMoney(stats.OnlineAmount)
	stats.OfflineAmount = roundMoney(stats.OfflineAmount)
	return stats
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetEnquiriesByState groups enquiries by state, largest group first.
func (s *StatisticsService) GetEnquiriesByState(ctx context.Context) ([]models.GroupCount, bool, error) {
	return s.grouped(ctx, "states", func(e models.Enquiry) string { return e.EnquiryState })
}

// GetEnquiriesByEducation groups enquiries by education, using the custom value for "Other".
func (s *StatisticsService) GetEnquiriesByEducation(ctx context.Context) ([]models.GroupCount, bool, error) {
	return s.grouped(ctx, "education", func(e models.Enquiry) string {
		if strings.EqualFold(e.Education, "Other") && strings.TrimSpace(e.CustomEducation) != "" {
			return e.CustomEducation
		}
		return e.Education
	})
}

func (s *StatisticsService) grouped(ctx context.Context, name string, label func(models.Enquiry) string) ([]models.GroupCount, bool, error) {
	return Remember(ctx, s.cache, statsCachePrefix+name, func(ctx context.Context) ([]models.GroupCount, error) {
		all, err := s.enquiries.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		return groupCounts(all, label), nil
	})
}

func groupCounts(all []models.Enquiry, label func(models.Enquiry) string) []models.GroupCount {
	counts := map[string]int{}
	for _, e := range all {
		key := strings.TrimSpace(label(e))
		if key == "" {
			key = unknownLabel
		}
		counts[key]++
	}
	groups := make([]models.GroupCount, 0, len(counts))
	for k, v := range counts {
		groups = append(groups, models.GroupCount{Label: k, Count: v})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Label < groups[j].Label
	})
	return groups
}

// FollowUps lists enquiries whose callback date falls in the window, earliest first.
// Records without a parsable callback date are skipped.
func (s *StatisticsService) FollowUps(ctx context.Context, kind FollowUpKind) ([]models.FollowUp, bool, error) {
	switch kind {
	case FollowUpToday, FollowUpUpcoming, FollowUpOverdue:
	default:
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "follow-up window must be today, upcoming or overdue")
	}
	today := s.today()
	key := followUpCacheKey + string(kind) + ":" + today.Format("2006-01-02")
	return Remember(ctx, s.cache, key, func(ctx context.Context) ([]models.FollowUp, error) {
		all, err := s.enquiries.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		return s.selectFollowUps(all, kind, today), nil
	})
}

func (s *StatisticsService) selectFollowUps(all []models.Enquiry, kind FollowUpKind, today time.Time) []models.FollowUp {
	type dated struct {
		day time.Time
		fu  models.FollowUp
	}
	selected := make([]dated, 0)
	for _, e := range all {
		if strings.TrimSpace(e.CallBackDate) == "" {
			continue
		}
		date, err := validation.ParseDate(e.CallBackDate, s.loc)
		if err != nil {
			s.logger.Debug("skipping unparsable callback date", zap.String("enquiry_id", e.ID), zap.String("value", e.CallBackDate))
			continue
		}
		day := validation.Day(date)
		var include bool
		switch kind {
		case FollowUpToday:
			include = day.Equal(today)
		case FollowUpUpcoming:
			include = !day.Before(today)
		case FollowUpOverdue:
			include = day.Before(today)
		}
		if !include {
			continue
		}
		fu := models.FollowUp{
			EnquiryID:        e.ID,
			FullName:         e.FullName,
			Mobile:           e.Mobile,
			Status:           e.Status,
			InterestedStatus: e.InterestedStatus,
			CallBackDate:     e.CallBackDate,
		}
		if kind == FollowUpOverdue {
			fu.DaysOverdue = validation.DaysBetween(day, today)
		}
		selected = append(selected, dated{day: day, fu: fu})
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].day.Equal(selected[j].day) {
			return selected[i].day.Before(selected[j].day)
		}
		return selected[i].fu.FullName < selected[j].fu.FullName
	})
	result := make([]models.FollowUp, len(selected))
	for i := range selected {
		result[i] = selected[i].fu
	}
	return result
}
