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

type paymentService interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, *models.Pagination, error)
	Delete(ctx context.Context, session *models.Session, id string) (bool, error)
}

type paymentExporter interface {
	Payments(ctx context.Context, filter models.PaymentFilter, format service.ExportFormat) (*service.ExportFile, error)
}

// PaymentHandler exposes the payment ledger.
type PaymentHandler struct {
	service  paymentService
	exporter paymentExporter
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(svc paymentService, exporter paymentExporter) *PaymentHandler {
	return &PaymentHandler{service: svc, exporter: exporter}
}

type paymentQuery dto.PaymentListQuery

func (q paymentQuery) filter() models.PaymentFilter {
	return models.PaymentFilter{
		EnquiryID: strings.TrimSpace(q.EnquiryID),
		Mode:      strings.TrimSpace(q.Mode),
		From:      strings.TrimSpace(q.From),
		To:        strings.TrimSpace(q.To),
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param enquiry_id query string false "Enquiry ID"
// @Param mode query string false "Online or Offline"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var query paymentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query.filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Delete godoc
// @Summary Delete payment ledger row
// @Description Removes the ledger row only; the enquiry's payment history is unchanged
// @Tags Payments
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
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
// @Summary Export payments
// @Tags Payments
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	var query paymentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	format := service.ExportFormat(strings.ToLower(strings.TrimSpace(query.Format)))
	if format == "" {
		format = service.ExportFormatCSV
	}
	file, err := h.exporter.Payments(c.Request.Context(), query.filter(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
