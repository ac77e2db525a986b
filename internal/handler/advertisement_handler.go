package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enquiry-desk-api/internal/dto"
	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
	"github.com/noah-isme/enquiry-desk-api/pkg/response"
)

type advertisementService interface {
	List(ctx context.Context, filter models.AdvertisementFilter) ([]models.AdvertisementEnquiry, *models.Pagination, error)
	ValidateEnquiry(candidate models.AdvertisementCandidate) models.CandidateValidation
	BulkImport(ctx context.Context, session *models.Session, candidates []models.AdvertisementCandidate) (*models.ImportResult, error)
	ImportCSV(ctx context.Context, session *models.Session, r io.Reader) (*models.ImportResult, error)
	Delete(ctx context.Context, session *models.Session, id string) (bool, error)
}

type advertisementExporter interface {
	Advertisements(ctx context.Context) (*service.ExportFile, error)
}

// AdvertisementHandler exposes campaign lead import and listing.
type AdvertisementHandler struct {
	service  advertisementService
	exporter advertisementExporter
}

// NewAdvertisementHandler constructs the handler.
func NewAdvertisementHandler(svc advertisementService, exporter advertisementExporter) *AdvertisementHandler {
	return &AdvertisementHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List advertisement leads
// @Tags Advertisements
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Name, phone or email fragment"
// @Success 200 {object} response.Envelope
// @Router /advertisements [get]
func (h *AdvertisementHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), models.AdvertisementFilter{
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Validate godoc
// @Summary Validate a single lead
// @Tags Advertisements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AdvertisementCandidate true "Candidate"
// @Success 200 {object} response.Envelope
// @Router /advertisements/validate [post]
func (h *AdvertisementHandler) Validate(c *gin.Context) {
	var candidate models.AdvertisementCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		response.Error(c, bindError(err, "invalid candidate payload"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.ValidateEnquiry(candidate), nil)
}

// Import godoc
// @Summary Bulk import leads
// @Description Accepts a JSON array of candidates or a multipart CSV upload in the "file" field
// @Tags Advertisements
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param payload body []models.AdvertisementCandidate false "Candidates"
// @Param file formData file false "CSV sheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /advertisements/import [post]
func (h *AdvertisementHandler) Import(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}

	var (
		result *models.ImportResult
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, ferr := c.FormFile("file")
		if ferr != nil {
			response.Error(c, bindError(ferr, "file is required"))
			return
		}
		file, ferr := header.Open()
		if ferr != nil {
			response.Error(c, appErrors.Wrap(ferr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read upload"))
			return
		}
		defer file.Close()
		result, err = h.service.ImportCSV(c.Request.Context(), session, file)
	} else {
		var candidates []models.AdvertisementCandidate
		if berr := c.ShouldBindJSON(&candidates); berr != nil {
			response.Error(c, bindError(berr, "expected a JSON array of candidates"))
			return
		}
		result, err = h.service.BulkImport(c.Request.Context(), session, candidates)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete advertisement lead
// @Tags Advertisements
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /advertisements/{id} [delete]
func (h *AdvertisementHandler) Delete(c *gin.Context) {
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

// Export godoc
// @Summary Export advertisement leads as CSV
// @Tags Advertisements
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /advertisements/export [get]
func (h *AdvertisementHandler) Export(c *gin.Context) {
	file, err := h.exporter.Advertisements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
