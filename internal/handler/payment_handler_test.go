package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
)

type fakePaymentSrv struct {
	filter models.PaymentFilter
}

func (f *fakePaymentSrv) List(_ context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, *models.Pagination, error) {
	f.filter = filter
	return []models.PaymentRecord{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakePaymentSrv) Delete(context.Context, *models.Session, string) (bool, error) {
	return true, nil
}

func TestPaymentHandlerListFilter(t *testing.T) {
	srv := &fakePaymentSrv{}
	h := NewPaymentHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodGet, "/payments?mode=Online&from=2024-05-01&enquiry_id=e1", nil, staffSession)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentFilter{EnquiryID: "e1", Mode: "Online", From: "2024-05-01"}, srv.filter)
}

func TestPaymentHandlerExportFormat(t *testing.T) {
	exporter := &fakeExporter{}
	h := NewPaymentHandler(&fakePaymentSrv{}, exporter)

	c, rec := newContext(http.MethodGet, "/payments/export", nil, staffSession)
	h.Export(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ExportFormatCSV, exporter.format)

	c, rec = newContext(http.MethodGet, "/payments/export?format=PDF", nil, staffSession)
	h.Export(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ExportFormatPDF, exporter.format)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments.pdf")
}
