package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enquiry-desk-api/internal/dto"
	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type fakeEnquirySrv struct {
	filter    models.EnquiryFilter
	saved     *models.Session
	patch     models.EnquiryPatch
	payment   models.AddPaymentRequest
	err       error
	dupes     []models.DuplicateCheck
	excludeID string
	deleted   bool
}

func (f *fakeEnquirySrv) List(_ context.Context, filter models.EnquiryFilter) ([]models.Enquiry, *models.Pagination, error) {
	f.filter = filter
	return []models.Enquiry{{ID: "e1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.err
}

func (f *fakeEnquirySrv) Get(_ context.Context, id string) (*models.Enquiry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Enquiry{ID: id}, nil
}

func (f *fakeEnquirySrv) Save(_ context.Context, session *models.Session, input models.Enquiry) (*models.Enquiry, error) {
	f.saved = session
	if f.err != nil {
		return nil, f.err
	}
	input.ID = "e-new"
	return &input, nil
}

func (f *fakeEnquirySrv) Update(_ context.Context, _ *models.Session, id string, patch models.EnquiryPatch) (*models.Enquiry, error) {
	f.patch = patch
	return &models.Enquiry{ID: id}, f.err
}

func (f *fakeEnquirySrv) AddPayment(_ context.Context, _ *models.Session, id string, req models.AddPaymentRequest) (*models.Enquiry, error) {
	f.payment = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Enquiry{ID: id, PaidFees: req.Amount}, nil
}

func (f *fakeEnquirySrv) Delete(_ context.Context, session *models.Session, _ string) (bool, error) {
	if !session.CanDelete() {
		return false, appErrors.ErrForbidden
	}
	f.deleted = true
	return true, nil
}

func (f *fakeEnquirySrv) CheckDuplicates(_ context.Context, _ models.DuplicateCandidate, excludeID string) ([]models.DuplicateCheck, error) {
	f.excludeID = excludeID
	return f.dupes, f.err
}

func (f *fakeEnquirySrv) GetExisting(_ context.Context, aadhar, mobile, email string) (*models.Enquiry, error) {
	if mobile == "" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Enquiry{ID: "e1", Mobile: mobile}, nil
}

type fakeExporter struct {
	format service.ExportFormat
	err    error
}

func (f *fakeExporter) Enquiries(context.Context) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "enquiries.csv", ContentType: "text/csv", Payload: []byte("\"ID\"\n")}, f.err
}

func (f *fakeExporter) Payments(_ context.Context, _ models.PaymentFilter, format service.ExportFormat) (*service.ExportFile, error) {
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "payments." + string(format), ContentType: "application/pdf", Payload: []byte("%PDF")}, nil
}

func (f *fakeExporter) Advertisements(context.Context) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "adverts.csv", ContentType: "text/csv", Payload: []byte("x")}, f.err
}

func TestEnquiryHandlerListBindsQuery(t *testing.T) {
	srv := &fakeEnquirySrv{}
	h := NewEnquiryHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodGet, "/enquiries?page=2&page_size=5&status=Pending&search=ravi", nil, staffSession)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.EnquiryFilter{Status: "Pending", Search: "ravi", Page: 2, PageSize: 5}, srv.filter)
	assert.Equal(t, 1, decode(t, rec).Pagination.TotalCount)
}

func TestEnquiryHandlerCreate(t *testing.T) {
	srv := &fakeEnquirySrv{}
	h := NewEnquiryHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/enquiries", jsonBody(t, map[string]interface{}{"fullName": "Ravi Kumar", "totalFees": 5000}), staffSession)

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, staffSession, srv.saved)
	var created models.Enquiry
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	assert.Equal(t, "e-new", created.ID)
}

func TestEnquiryHandlerCreateRequiresSession(t *testing.T) {
	srv := &fakeEnquirySrv{}
	h := NewEnquiryHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/enquiries", strings.NewReader(`{}`), nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, srv.saved)
}

func TestEnquiryHandlerCreateConflict(t *testing.T) {
	conflict := appErrors.Clone(appErrors.ErrConflict, "duplicate")
	conflict.Fields = map[string]string{"mobile": "already used by Ravi"}
	h := NewEnquiryHandler(&fakeEnquirySrv{err: conflict}, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/enquiries", strings.NewReader(`{"fullName":"x"}`), staffSession)

	h.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "mobile")
}

func TestEnquiryHandlerUpdatePassesRawPatch(t *testing.T) {
	srv := &fakeEnquirySrv{}
	h := NewEnquiryHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodPatch, "/enquiries/e1", strings.NewReader(`{"status":"In Process"}`), staffSession)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	h.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	status, ok := srv.patch.String("status")
	assert.True(t, ok)
	assert.Equal(t, "In Process", status)
}

func TestEnquiryHandlerAddPaymentBusinessRule(t *testing.T) {
	srv := &fakeEnquirySrv{err: appErrors.Clone(appErrors.ErrBusinessRule, "payment exceeds remaining fees")}
	h := NewEnquiryHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/enquiries/e1/payments", strings.NewReader(`{"amount":"3500","mode":"Online"}`), staffSession)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	h.AddPayment(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, models.Amount("3500"), srv.payment.Amount)
}

func TestEnquiryHandlerDelete(t *testing.T) {
	srv := &fakeEnquirySrv{}
	h := NewEnquiryHandler(srv, &fakeExporter{})

	c, rec := newContext(http.MethodDelete, "/enquiries/e1", nil, staffSession)
	h.Delete(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, srv.deleted)

	c, _ = newContext(http.MethodDelete, "/enquiries/e1", nil, adminSession)
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.True(t, srv.deleted)
}

func TestEnquiryHandlerCheckDuplicates(t *testing.T) {
	srv := &fakeEnquirySrv{dupes: []models.DuplicateCheck{{Field: "mobile", Value: "9876543210", EnquiryID: "e9"}}}
	h := NewEnquiryHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/enquiries/duplicates", jsonBody(t, dto.DuplicateCheckRequest{Mobile: "9876543210", ExcludeID: "e1"}), staffSession)

	h.CheckDuplicates(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.DuplicateCheckResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &resp))
	assert.True(t, resp.HasDuplicates)
	assert.Len(t, resp.Duplicates, 1)
	assert.Equal(t, "e1", srv.excludeID)
}

func TestEnquiryHandlerExistingAndExport(t *testing.T) {
	h := NewEnquiryHandler(&fakeEnquirySrv{}, &fakeExporter{})

	c, rec := newContext(http.MethodGet, "/enquiries/existing?mobile=9876543210", nil, staffSession)
	h.Existing(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/enquiries/existing", nil, staffSession)
	h.Existing(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(http.MethodGet, "/enquiries/export", nil, staffSession)
	h.Export(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="enquiries.csv"`)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
}
