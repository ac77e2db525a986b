package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type memoryCache struct {
	values  map[string][]byte
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	m.values = map[string][]byte{}
	return nil
}

type countingSource struct {
	items []models.Enquiry
	err   error
	calls int
}

func (c *countingSource) GetAll(context.Context) ([]models.Enquiry, error) {
	c.calls++
	return c.items, c.err
}

func newTestStatisticsService(items []models.Enquiry, cache *CacheService) (*StatisticsService, *countingSource) {
	source := &countingSource{items: items}
	svc := NewStatisticsService(source, cache, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, source
}

func withFields(id string, mutate func(*models.Enquiry)) models.Enquiry {
	e := sampleEnquiry(id)
	mutate(&e)
	return MigrateEnquiry(e)
}

func TestStatisticsServiceCountsStatusAndInterest(t *testing.T) {
	items := []models.Enquiry{
		withFields("a", func(e *models.Enquiry) { e.CreatedAt = fixedNow }),
		withFields("b", func(e *models.Enquiry) {
			e.Status = models.EnquiryStatusInProcess
			e.InterestedStatus = models.Interest75
			e.CreatedAt = fixedNow.AddDate(0, 0, -3)
		}),
		withFields("c", func(e *models.Enquiry) {
			e.Status = models.EnquiryStatusConfirmed
			e.InterestedStatus = models.Interest100
			e.CreatedAt = fixedNow.AddDate(0, -2, 0)
		}),
	}
	svc, _ := newTestStatisticsService(items, nil)

	stats, hit, err := svc.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.InProcess)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.ByInterest[string(models.Interest75)])
	assert.Equal(t, 0, stats.ByInterest[string(models.Interest0)])
	assert.Equal(t, 1, stats.CreatedToday)
	assert.Equal(t, 2, stats.CreatedThisMonth)
	assert.Equal(t, 33.33, stats.ConversionRate)
}

func TestStatisticsServicePaymentTotals(t *testing.T) {
	items := []models.Enquiry{
		withFields("a", func(e *models.Enquiry) {
			e.TotalFees = "5000"
			e.PaymentHistory = models.PaymentHistory{
				{Amount: "2000", Mode: models.PaymentModeOnline},
				{Amount: "500", Mode: models.PaymentModeOffline, Method: models.PaymentMethodCash},
			}
		}),
		withFields("b", func(e *models.Enquiry) {
			e.TotalFees = "1000"
			e.PaymentHistory = models.PaymentHistory{{Amount: "1000", Mode: models.PaymentModeOnline}}
		}),
		withFields("c", func(e *models.Enquiry) { e.TotalFees = "3000" }),
		withFields("d", func(e *models.Enquiry) {}),
	}
	svc, _ := newTestStatisticsService(items, nil)

	stats, _, err := svc.GetPaymentStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9000.0, stats.TotalFees)
	assert.Equal(t, 3500.0, stats.Collected)
	assert.Equal(t, 5500.0, stats.Outstanding)
	assert.Equal(t, 3, stats.PaymentCount)
	assert.Equal(t, 3000.0, stats.OnlineAmount)
	assert.Equal(t, 500.0, stats.OfflineAmount)
	assert.Equal(t, 1, stats.FullyPaid)
	assert.Equal(t, 1, stats.PartiallyPaid)
	assert.Equal(t, 1, stats.Unpaid)
}

func TestStatisticsServiceGroups(t *testing.T) {
	items := []models.Enquiry{
		withFields("a", func(e *models.Enquiry) { e.EnquiryDistrict = "Kerala"; e.Education = "Graduate" }),
		withFields("b", func(e *models.Enquiry) {
			e.EnquiryState = "Kerala"
			e.Education = "Other"
			e.CustomEducation = "Diploma"
		}),
		withFields("c", func(e *models.Enquiry) { e.EnquiryState = "Goa"; e.Education = "Graduate" }),
		withFields("d", func(e *models.Enquiry) {}),
	}
	svc, _ := newTestStatisticsService(items, nil)

	states, _, err := svc.GetEnquiriesByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.GroupCount{{Label: "Kerala", Count: 2}, {Label: "Goa", Count: 1}, {Label: "Unknown", Count: 1}}, states)

	education, _, err := svc.GetEnquiriesByEducation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.GroupCount{{Label: "Graduate", Count: 2}, {Label: "Diploma", Count: 1}, {Label: "Unknown", Count: 1}}, education)
}

func TestStatisticsServiceFollowUps(t *testing.T) {
	items := []models.Enquiry{
		withFields("late", func(e *models.Enquiry) { e.FullName = "Late Lead"; e.CallBackDate = "2024-05-07" }),
		withFields("today", func(e *models.Enquiry) { e.FullName = "Today Lead"; e.CallBackDate = "2024-05-10T15:00" }),
		withFields("soon", func(e *models.Enquiry) { e.FullName = "Soon Lead"; e.CallBackDate = "2024-05-12" }),
		withFields("older", func(e *models.Enquiry) { e.FullName = "Older Lead"; e.CallBackDate = "01/05/2024" }),
		withFields("none", func(e *models.Enquiry) { e.CallBackDate = "" }),
		withFields("bad", func(e *models.Enquiry) { e.CallBackDate = "next week" }),
	}
	svc, _ := newTestStatisticsService(items, nil)
	ctx := context.Background()

	today, _, err := svc.FollowUps(ctx, FollowUpToday)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "today", today[0].EnquiryID)

	upcoming, _, err := svc.FollowUps(ctx, FollowUpUpcoming)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "today", upcoming[0].EnquiryID)
	assert.Equal(t, "soon", upcoming[1].EnquiryID)

	overdue, _, err := svc.FollowUps(ctx, FollowUpOverdue)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, "older", overdue[0].EnquiryID)
	assert.Equal(t, 9, overdue[0].DaysOverdue)
	assert.Equal(t, "late", overdue[1].EnquiryID)
	assert.Equal(t, 3, overdue[1].DaysOverdue)

	_, _, err = svc.FollowUps(ctx, "someday")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStatisticsServiceOverdueCountsCalendarDaysAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	items := []models.Enquiry{
		withFields("spring-forward", func(e *models.Enquiry) { e.CallBackDate = "2026-03-08" }),
		withFields("before", func(e *models.Enquiry) { e.CallBackDate = "2026-03-07" }),
	}
	svc := NewStatisticsService(&countingSource{items: items}, nil, ny, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, ny) }

	overdue, _, err := svc.FollowUps(context.Background(), FollowUpOverdue)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, "before", overdue[0].EnquiryID)
	assert.Equal(t, 2, overdue[0].DaysOverdue)
	assert.Equal(t, "spring-forward", overdue[1].EnquiryID)
	assert.Equal(t, 1, overdue[1].DaysOverdue)
}

func TestStatisticsServiceUsesCache(t *testing.T) {
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc, source := newTestStatisticsService([]models.Enquiry{withFields("a", func(*models.Enquiry) {})}, cache)
	ctx := context.Background()

	_, hit, err := svc.GetStatistics(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	stats, hit, err := svc.GetStatistics(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, source.calls)
}

func TestStatisticsServicePropagatesStoreErrors(t *testing.T) {
	source := &countingSource{err: appErrors.Store(errors.New("down"), "failed to load enquiries")}
	svc := NewStatisticsService(source, nil, time.UTC, nil)

	_, _, err := svc.GetStatistics(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
}
