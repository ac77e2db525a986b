package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type fakeStatsSrv struct {
	kind service.FollowUpKind
}

func (f *fakeStatsSrv) GetStatistics(context.Context) (*models.EnquiryStatistics, bool, error) {
	return &models.EnquiryStatistics{Total: 3}, true, nil
}

func (f *fakeStatsSrv) GetPaymentStatistics(context.Context) (*models.PaymentStatistics, bool, error) {
	return &models.PaymentStatistics{Collected: 3500}, false, nil
}

func (f *fakeStatsSrv) GetEnquiriesByState(context.Context) ([]models.GroupCount, bool, error) {
	return []models.GroupCount{{Label: "Kerala", Count: 2}}, false, nil
}

func (f *fakeStatsSrv) GetEnquiriesByEducation(context.Context) ([]models.GroupCount, bool, error) {
	return nil, false, appErrors.Store(assert.AnError, "down")
}

func (f *fakeStatsSrv) FollowUps(_ context.Context, kind service.FollowUpKind) ([]models.FollowUp, bool, error) {
	f.kind = kind
	if kind != service.FollowUpToday {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown kind")
	}
	return []models.FollowUp{{EnquiryID: "e1"}}, true, nil
}

func TestStatsHandlerOverviewReportsCacheHit(t *testing.T) {
	h := NewStatsHandler(&fakeStatsSrv{})
	c, rec := newContext(http.MethodGet, "/enquiries/stats", nil, staffSession)

	h.Overview(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"total":3`)
}

func TestStatsHandlerStoreFailure(t *testing.T) {
	h := NewStatsHandler(&fakeStatsSrv{})
	c, rec := newContext(http.MethodGet, "/enquiries/stats/education", nil, staffSession)

	h.Education(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsHandlerFollowUps(t *testing.T) {
	srv := &fakeStatsSrv{}
	h := NewStatsHandler(srv)

	c, rec := newContext(http.MethodGet, "/followups/today", nil, staffSession)
	c.Params = gin.Params{{Key: "kind", Value: "today"}}
	h.FollowUps(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.FollowUpToday, srv.kind)

	c, rec = newContext(http.MethodGet, "/followups/someday", nil, staffSession)
	c.Params = gin.Params{{Key: "kind", Value: "someday"}}
	h.FollowUps(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
