package service

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
)

// paymentTolerance absorbs float rounding when comparing fee sums.
const paymentTolerance = 0.000001

// MigrateEnquiry reconciles the legacy field names and recomputes the fee
// fields from the payment history. Applying it twice yields the same record.
func MigrateEnquiry(e models.Enquiry) models.Enquiry {
	if e.EnquiryState == "" {
		e.EnquiryState = e.EnquiryDistrict
	}
	e.EnquiryDistrict = e.EnquiryState

	if e.KnowledgeOfDevelopment == "" {
		e.KnowledgeOfDevelopment = e.KnowledgeOfAndroid
	}
	e.KnowledgeOfAndroid = e.KnowledgeOfDevelopment

	if e.PaymentHistory == nil {
		e.PaymentHistory = models.PaymentHistory{}
	}
	RecomputeFees(&e)
	return e
}

// RecomputeFees derives paidFees from a non-empty history and remainingFees from totalFees.
func RecomputeFees(e *models.Enquiry) {
	if len(e.PaymentHistory) > 0 {
		e.PaidFees = models.AmountOf(e.PaymentHistory.Sum())
	}
	if !e.TotalFees.IsSet() {
		e.RemainingFees = ""
		return
	}
	remaining := math.Max(e.TotalFees.Float()-e.PaidFees.Float(), 0)
	e.RemainingFees = models.AmountOf(remaining)
}

// PaidSoFar is the cumulative amount collected. Records without a history keep
// their stored paidFees.
func PaidSoFar(e *models.Enquiry) float64 {
	paid := e.PaymentHistory.Sum()
	if len(e.PaymentHistory) == 0 {
		paid = math.Max(paid, e.PaidFees.Float())
	}
	return paid
}

// OpeningBalance returns an entry carrying a stored paidFees into an empty
// history, so the amount survives once the history becomes authoritative.
func OpeningBalance(e *models.Enquiry, now time.Time, loc *time.Location) (models.PaymentEntry, bool) {
	if len(e.PaymentHistory) > 0 || e.PaidFees.Float() <= 0 {
		return models.PaymentEntry{}, false
	}
	day := e.CreatedAt
	if day.IsZero() {
		day = now
	}
	return models.PaymentEntry{
		ID:     NewPaymentID(now),
		Date:   day.In(loc).Format("2006-01-02"),
		Amount: models.AmountOf(e.PaidFees.Float()),
		Note:   "opening balance carried forward",
	}, true
}

// ApplyStatusRules keeps Pending enquiries at or below 25% interest. When the
// status was set in this write it wins and interest is clamped to 25%; when
// only the interest was raised the enquiry moves to In Process.
func ApplyStatusRules(e *models.Enquiry, statusChanged, interestChanged bool) {
	if e.Status != models.EnquiryStatusPending || e.InterestedStatus.Percent() <= 25 {
		return
	}
	switch {
	case statusChanged:
		e.InterestedStatus = models.Interest25
	case interestChanged:
		e.Status = models.EnquiryStatusInProcess
	}
}

// FindDuplicates reports, per field, the first other enquiry sharing the candidate's
// mobile, email (ignoring case) or Aadhar number (ignoring whitespace).
func FindDuplicates(all []models.Enquiry, candidate models.DuplicateCandidate, excludeID string) []models.DuplicateCheck {
	mobile := strings.TrimSpace(candidate.Mobile)
	email := strings.ToLower(strings.TrimSpace(candidate.Email))
	aadhar := validation.StripSpaces(candidate.AadharNumber)

	var mobileHit, emailHit, aadharHit *models.DuplicateCheck
	for i := range all {
		e := all[i]
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if mobileHit == nil && mobile != "" && strings.TrimSpace(e.Mobile) == mobile {
			mobileHit = &models.DuplicateCheck{Field: "mobile", Value: mobile, EnquiryID: e.ID, EnquiryName: e.FullName}
		}
		if emailHit == nil && email != "" && strings.ToLower(strings.TrimSpace(e.Email)) == email {
			emailHit = &models.DuplicateCheck{Field: "email", Value: email, EnquiryID: e.ID, EnquiryName: e.FullName}
		}
		if aadharHit == nil && aadhar != "" && validation.StripSpaces(e.AadharNumber) == aadhar {
			aadharHit = &models.DuplicateCheck{Field: "aadharNumber", Value: aadhar, EnquiryID: e.ID, EnquiryName: e.FullName}
		}
	}

	findings := make([]models.DuplicateCheck, 0, 3)
	for _, hit := range []*models.DuplicateCheck{mobileHit, emailHit, aadharHit} {
		if hit != nil {
			findings = append(findings, *hit)
		}
	}
	return findings
}

// FindExisting returns the first enquiry matching by Aadhar, then mobile, then email.
func FindExisting(all []models.Enquiry, aadhar, mobile, email string) *models.Enquiry {
	aadhar = validation.StripSpaces(aadhar)
	mobile = strings.TrimSpace(mobile)
	email = strings.ToLower(strings.TrimSpace(email))

	matchers := []func(models.Enquiry) bool{
		func(e models.Enquiry) bool {
			return aadhar != "" && validation.StripSpaces(e.AadharNumber) == aadhar
		},
		func(e models.Enquiry) bool {
			return mobile != "" && strings.TrimSpace(e.Mobile) == mobile
		},
		func(e models.Enquiry) bool {
			return email != "" && strings.ToLower(strings.TrimSpace(e.Email)) == email
		},
	}
	for _, match := range matchers {
		for i := range all {
			if match(all[i]) {
				found := all[i]
				return &found
			}
		}
	}
	return nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewPaymentID returns PMT-<base36 millis>-<6 random base36>, upper-cased.
func NewPaymentID(now time.Time) string {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			suffix[i] = base36[now.UnixNano()%int64(len(base36))]
			continue
		}
		suffix[i] = base36[n.Int64()]
	}
	return strings.ToUpper("PMT-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + string(suffix))
}
