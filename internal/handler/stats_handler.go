package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	"github.com/noah-isme/enquiry-desk-api/pkg/response"
)

type statisticsService interface {
	GetStatistics(ctx context.Context) (*models.EnquiryStatistics, bool, error)
	GetPaymentStatistics(ctx context.Context) (*models.PaymentStatistics, bool, error)
	GetEnquiriesByState(ctx context.Context) ([]models.GroupCount, bool, error)
	GetEnquiriesByEducation(ctx context.Context) ([]models.GroupCount, bool, error)
	FollowUps(ctx context.Context, kind service.FollowUpKind) ([]models.FollowUp, bool, error)
}

// StatsHandler serves aggregated enquiry figures and follow-up lists.
type StatsHandler struct {
	service statisticsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(svc statisticsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

func respondCached[T any](c *gin.Context, load func(context.Context) (T, bool, error)) {
	data, hit, err := load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil, withCacheMeta(c, hit))
}

// Overview godoc
// @Summary Enquiry statistics
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enquiries/stats [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	respondCached(c, h.service.GetStatistics)
}

// Payments godoc
// @Summary Payment statistics
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enquiries/stats/payments [get]
func (h *StatsHandler) Payments(c *gin.Context) {
	respondCached(c, h.service.GetPaymentStatistics)
}

// States godoc
// @Summary Enquiries grouped by state
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enquiries/stats/states [get]
func (h *StatsHandler) States(c *gin.Context) {
	respondCached(c, h.service.GetEnquiriesByState)
}

// Education godoc
// @Summary Enquiries grouped by education
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enquiries/stats/education [get]
func (h *StatsHandler) Education(c *gin.Context) {
	respondCached(c, h.service.GetEnquiriesByEducation)
}

// FollowUps godoc
// @Summary Follow-up list
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Param kind path string true "today, upcoming or overdue"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /followups/{kind} [get]
func (h *StatsHandler) FollowUps(c *gin.Context) {
	kind := service.FollowUpKind(c.Param("kind"))
	respondCached(c, func(ctx context.Context) ([]models.FollowUp, bool, error) {
		return h.service.FollowUps(ctx, kind)
	})
}
