package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enquiry-desk-api/internal/dto"
	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
	"github.com/noah-isme/enquiry-desk-api/pkg/response"
)

type enquiryService interface {
	List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Enquiry, error)
	Save(ctx context.Context, session *models.Session, input models.Enquiry) (*models.Enquiry, error)
	Update(ctx context.Context, session *models.Session, id string, patch models.EnquiryPatch) (*models.Enquiry, error)
	AddPayment(ctx context.Context, session *models.Session, id string, req models.AddPaymentRequest) (*models.Enquiry, error)
	Delete(ctx context.Context, session *models.Session, id string) (bool, error)
	CheckDuplicates(ctx context.Context, candidate models.DuplicateCandidate, excludeID string) ([]models.DuplicateCheck, error)
	GetExisting(ctx context.Context, aadhar, mobile, email string) (*models.Enquiry, error)
}

type enquiryExporter interface {
	Enquiries(ctx context.Context) (*service.ExportFile, error)
}

// EnquiryHandler exposes the enquiry lifecycle over HTTP.
type EnquiryHandler struct {
	service  enquiryService
	exporter enquiryExporter
}

// NewEnquiryHandler constructs the handler.
func NewEnquiryHandler(svc enquiryService, exporter enquiryExporter) *EnquiryHandler {
	return &EnquiryHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List enquiries
// @Tags Enquiries
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Pending, In Process or Confirmed"
// @Param search query string false "Name, mobile or email fragment"
// @Success 200 {object} response.Envelope
// @Router /enquiries [get]
func (h *EnquiryHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	filter := models.EnquiryFilter{
		Status:   models.EnquiryStatus(strings.TrimSpace(query.Status)),
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enquiry
// @Tags Enquiries
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enquiries/{id} [get]
func (h *EnquiryHandler) Get(c *gin.Context) {
	enquiry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Create godoc
// @Summary Create enquiry
// @Description Validates, applies status rules and rejects duplicate mobile, email or Aadhar numbers
// @Tags Enquiries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.Enquiry true "Enquiry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enquiries [post]
func (h *EnquiryHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var input models.Enquiry
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid enquiry payload"))
		return
	}
	created, err := h.service.Save(c.Request.Context(), session, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update enquiry
// @Description Applies a partial update; only the fields present are validated
// @Tags Enquiries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enquiry ID"
// @Param payload body object true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enquiries/{id} [patch]
func (h *EnquiryHandler) Update(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var patch models.EnquiryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, bindError(err, "invalid enquiry patch"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), session, c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// AddPayment godoc
// @Summary Record payment
// @Description Appends a payment to the enquiry history and the ledger in one transaction
// @Tags Enquiries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enquiry ID"
// @Param payload body models.AddPaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enquiries/{id}/payments [post]
func (h *EnquiryHandler) AddPayment(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req models.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payment payload"))
		return
	}
	updated, err := h.service.AddPayment(c.Request.Context(), session, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, updated)
}

// Delete godoc
// @Summary Delete enquiry
// @Tags Enquiries
// @Security BearerAuth
// @Param id path string true "Enquiry ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enquiries/{id} [delete]
func (h *EnquiryHandler) Delete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !deleted {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.NoContent(c)
}

// CheckDuplicates godoc
// @Summary Check duplicate fields
// @Tags Enquiries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.DuplicateCheckRequest true "Fields to check"
// @Success 200 {object} response.Envelope
// @Router /enquiries/duplicates [post]
func (h *EnquiryHandler) CheckDuplicates(c *gin.Context) {
	var req dto.DuplicateCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid duplicate check payload"))
		return
	}
	found, err := h.service.CheckDuplicates(c.Request.Context(), req.Candidate(), req.ExcludeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if found == nil {
		found = []models.DuplicateCheck{}
	}
	response.JSON(c, http.StatusOK, dto.DuplicateCheckResponse{HasDuplicates: len(found) > 0, Duplicates: found}, nil)
}

// Existing godoc
// @Summary Find existing enquiry
// @Description Looks up a lead by Aadhar, then mobile, then email
// @Tags Enquiries
// @Produce json
// @Security BearerAuth
// @Param aadhar query string false "Aadhar number"
// @Param mobile query string false "Mobile number"
// @Param email query string false "Email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enquiries/existing [get]
func (h *EnquiryHandler) Existing(c *gin.Context) {
	var query dto.ExistingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	enquiry, err := h.service.GetExisting(c.Request.Context(), query.Aadhar, query.Mobile, query.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Export godoc
// @Summary Export enquiries as CSV
// @Tags Enquiries
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /enquiries/export [get]
func (h *EnquiryHandler) Export(c *gin.Context) {
	file, err := h.exporter.Enquiries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
