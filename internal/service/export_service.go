package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
	"github.com/noah-isme/enquiry-desk-api/pkg/export"
)

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

type paymentLedger interface {
	ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error)
}

type advertisementLister interface {
	ListAll(ctx context.Context) ([]models.AdvertisementEnquiry, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, footer ...string) ([]byte, error)
}

var (
	enquiryExportHeaders = []string{"Full Name", "Mobile", "Alternate Mobile", "Email", "Status", "Interest", "Call Back Date", "State", "Education", "Profession", "Source", "Total Fees", "Paid Fees", "Remaining Fees", "Created At"}
	paymentExportHeaders = []string{"Payment ID", "Enquiry", "Date", "Amount", "Mode", "Offline Type", "Reference", "Note", "Recorded By"}
	advertExportHeaders  = []string{"Name", "Phone No", "Email", "Aadhar No", "PAN No", "Imported At", "Imported By"}
)

// ExportService renders enquiries, payments and advertisement leads for download.
type ExportService struct {
	enquiries enquirySource
	payments  paymentLedger
	adverts   advertisementLister
	csv       csvRenderer
	pdf       pdfRenderer
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(enquiries enquirySource, payments paymentLedger, adverts advertisementLister, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		enquiries: enquiries,
		payments:  payments,
		adverts:   adverts,
		csv:       csv,
		pdf:       pdf,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Enquiries renders every enquiry as CSV with a fixed column order.
func (s *ExportService) Enquiries(ctx context.Context) (*ExportFile, error) {
	all, err := s.enquiries.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{Headers: enquiryExportHeaders, Rows: make([]map[string]string, 0, len(all))}
	for _, e := range all {
		data.Rows = append(data.Rows, map[string]string{
			"Full Name":        e.FullName,
			"Mobile":           e.Mobile,
			"Alternate Mobile": e.AlternateMobile,
			"Email":            e.Email,
			"Status":           string(e.Status),
			"Interest":         string(e.InterestedStatus),
			"Call Back Date":   e.CallBackDate,
			"State":            e.EnquiryState,
			"Education":        e.Education,
			"Profession":       e.Profession,
			"Source":           e.SourceOfEnquiry,
			"Total Fees":       string(e.TotalFees),
			"Paid Fees":        string(e.PaidFees),
			"Remaining Fees":   string(e.RemainingFees),
			"Created At":       s.formatTime(e.CreatedAt),
		})
	}
	return s.render(data, ExportFormatCSV, "enquiries", "Enquiries")
}

// Payments renders the ledger, optionally filtered, as CSV or a PDF report with totals.
func (s *ExportService) Payments(ctx context.Context, filter models.PaymentFilter, format ExportFormat) (*ExportFile, error) {
	records, err := s.payments.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load payments")
	}
	data := export.Dataset{Headers: paymentExportHeaders, Rows: make([]map[string]string, 0, len(records))}
	var total float64
	for _, p := range records {
		total += p.Amount
		data.Rows = append(data.Rows, map[string]string{
			"Payment ID":   p.ID,
			"Enquiry":      p.EnquiryName,
			"Date":         p.Date,
			"Amount":       strconv.FormatFloat(p.Amount, 'f', 2, 64),
			"Mode":         p.Mode,
			"Offline Type": deref(p.OfflineType),
			"Reference":    deref(p.Reference),
			"Note":         deref(p.Note),
			"Recorded By":  deref(p.CreatedBy),
		})
	}
	footer := fmt.Sprintf("%d payments, total %s", len(records), strconv.FormatFloat(roundMoney(total), 'f', 2, 64))
	return s.render(data, format, "payments", "Payment Ledger", footer)
}

// Advertisements renders every imported lead as CSV.
func (s *ExportService) Advertisements(ctx context.Context) (*ExportFile, error) {
	items, err := s.adverts.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load advertisement enquiries")
	}
	data := export.Dataset{Headers: advertExportHeaders, Rows: make([]map[string]string, 0, len(items))}
	for _, a := range items {
		data.Rows = append(data.Rows, map[string]string{
			"Name":        a.Name,
			"Phone No":    a.PhoneNo,
			"Email":       a.Email,
			"Aadhar No":   deref(a.AadharNo),
			"PAN No":      deref(a.PanNo),
			"Imported At": s.formatTime(a.ImportedAt),
			"Imported By": deref(a.ImportedBy),
		})
	}
	return s.render(data, ExportFormatCSV, "advertisements", "Advertisement Enquiries")
}

func (s *ExportService) render(data export.Dataset, format ExportFormat, name, title string, footer ...string) (*ExportFile, error) {
	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatCSV, "":
		format = ExportFormatCSV
		payload, err = s.csv.Render(data)
		contentType = "text/csv; charset=utf-8"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(data, title, footer...)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Validation("unsupported export format", map[string]string{"format": "format must be csv or pdf"})
	}
	if err != nil {
		s.logger.Error("export render failed", zap.String("export", name), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    s.buildFilename(name, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func (s *ExportService) buildFilename(name string, format ExportFormat) string {
	timestamp := s.now().In(s.loc).Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", sanitizeFilename(name), timestamp, format)
}

func (s *ExportService) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.loc).Format("2006-01-02 15:04")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
