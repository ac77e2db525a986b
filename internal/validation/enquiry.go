package validation

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

// maxCallBackYears bounds how far ahead a callback may be scheduled.
const maxCallBackYears = 2

type fieldRule struct {
	field   string
	tag     string
	message string
	value   func(*models.Enquiry) string
}

var enquiryRules = []fieldRule{
	{"fullName", "required,min=3,max=100," + TagPersonName, "full name must be 3-100 characters of letters, spaces or dots", func(e *models.Enquiry) string { return strings.TrimSpace(e.FullName) }},
	{"mobile", "required," + TagMobile, "mobile must be 10 digits starting with 6-9", func(e *models.Enquiry) string { return e.Mobile }},
	{"alternateMobile", "omitempty," + TagMobile, "alternate mobile must be 10 digits starting with 6-9", func(e *models.Enquiry) string { return e.AlternateMobile }},
	{"email", "required,email,max=100", "email must be a valid address of at most 100 characters", func(e *models.Enquiry) string { return strings.TrimSpace(e.Email) }},
	{"address", "omitempty,min=10,max=500", "address must be 10-500 characters", func(e *models.Enquiry) string { return strings.TrimSpace(e.Address) }},
	{"aadharNumber", "omitempty," + TagAadhaar, "aadhar number must be 12 digits", func(e *models.Enquiry) string { return e.AadharNumber }},
	{"panNumber", "omitempty," + TagPAN, "PAN must match AAAAA9999A with a valid holder category", func(e *models.Enquiry) string { return e.PanNumber }},
	{"demateAccount1", "omitempty," + TagDemat, "demat account must be 8-16 letters or digits", func(e *models.Enquiry) string { return e.DemateAccount1 }},
	{"demateAccount2", "omitempty," + TagDemat, "demat account must be 8-16 letters or digits", func(e *models.Enquiry) string { return e.DemateAccount2 }},
}

// confirmedFields must be present before an enquiry can be Confirmed.
var confirmedFields = []fieldRule{
	{field: "aadharNumber", message: "aadhar number is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.AadharNumber }},
	{field: "panNumber", message: "PAN is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.PanNumber }},
	{field: "demateAccount1", message: "demat account is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.DemateAccount1 }},
	{field: "sourceOfEnquiry", message: "source of enquiry is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.SourceOfEnquiry }},
	{field: "profession", message: "profession is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.Profession }},
	{field: "knowledgeOfDevelopment", message: "knowledge level is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.KnowledgeOfDevelopment }},
	{field: "howDidYouKnow", message: "how did you know is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.HowDidYouKnow }},
	{field: "depositInwardDate", message: "deposit inward date is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.DepositInwardDate }},
	{field: "depositOutwardDate", message: "deposit outward date is required for confirmed enquiries", value: func(e *models.Enquiry) string { return e.DepositOutwardDate }},
}

// EnquiryValidator checks enquiry documents before they are written.
type EnquiryValidator struct {
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

// NewEnquiryValidator builds a validator evaluating dates in loc.
func NewEnquiryValidator(validate *validator.Validate, loc *time.Location) *EnquiryValidator {
	if validate == nil {
		validate = New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &EnquiryValidator{validate: validate, loc: loc, now: time.Now}
}

// WithClock overrides the reference time, for tests.
func (v *EnquiryValidator) WithClock(now func() time.Time) *EnquiryValidator {
	v.now = now
	return v
}

// ValidateNew checks every field of a new enquiry.
func (v *EnquiryValidator) ValidateNew(e *models.Enquiry) error {
	return v.check(e, nil, e.Status == models.EnquiryStatusConfirmed)
}

// ValidateChanges checks the merged enquiry, limited to the fields the patch sets.
// Moving to Confirmed checks every confirmed-only field.
func (v *EnquiryValidator) ValidateChanges(merged *models.Enquiry, patch models.EnquiryPatch) error {
	scope := make(map[string]bool, len(patch))
	for field := range patch {
		scope[field] = true
	}
	if scope["enquiryDistrict"] {
		scope["enquiryState"] = true
	}
	if scope["knowledgeOfAndroid"] {
		scope["knowledgeOfDevelopment"] = true
	}
	confirming := patch.Has("status") && merged.Status == models.EnquiryStatusConfirmed
	return v.check(merged, scope, confirming)
}

func (v *EnquiryValidator) check(e *models.Enquiry, scope map[string]bool, confirming bool) error {
	inScope := func(fields ...string) bool {
		if scope == nil {
			return true
		}
		for _, f := range fields {
			if scope[f] {
				return true
			}
		}
		return false
	}

	problems := map[string]string{}
	for _, rule := range enquiryRules {
		if !inScope(rule.field) {
			continue
		}
		if err := v.validate.Var(rule.value(e), rule.tag); err != nil {
			problems[rule.field] = rule.message
		}
	}

	if inScope("status") && !e.Status.Valid() {
		problems["status"] = "status must be Pending, In Process or Confirmed"
	}
	if inScope("interestedStatus") && e.InterestedStatus != "" && !e.InterestedStatus.Valid() {
		problems["interestedStatus"] = "interest level must be one of 0%, 25%, 50%, 75% or 100% Interested"
	}
	if inScope("totalFees") && e.TotalFees.IsSet() && (!e.TotalFees.Valid() || e.TotalFees.Float() < 0) {
		problems["totalFees"] = "total fees must be a non-negative number"
	}

	if inScope("mobile", "alternateMobile") && e.AlternateMobile != "" &&
		strings.TrimSpace(e.AlternateMobile) == strings.TrimSpace(e.Mobile) {
		problems["alternateMobile"] = "alternate mobile must differ from mobile"
	}
	if inScope("demateAccount1", "demateAccount2") && e.DemateAccount2 != "" &&
		strings.EqualFold(strings.TrimSpace(e.DemateAccount1), strings.TrimSpace(e.DemateAccount2)) {
		problems["demateAccount2"] = "second demat account must differ from the first"
	}

	if inScope("callBackDate") {
		if msg := v.checkCallBack(e.CallBackDate); msg != "" {
			problems["callBackDate"] = msg
		}
	}
	v.checkDeposits(e, inScope, problems)

	for _, rule := range confirmedFields {
		if !confirming && !(e.Status == models.EnquiryStatusConfirmed && scope != nil && scope[rule.field]) {
			continue
		}
		if strings.TrimSpace(rule.value(e)) == "" {
			if _, exists := problems[rule.field]; !exists {
				problems[rule.field] = rule.message
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return appErrors.Validation("enquiry validation failed", problems)
}

func (v *EnquiryValidator) checkCallBack(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "callback date is required"
	}
	date, err := ParseDate(raw, v.loc)
	if err != nil {
		return "callback date is not a valid date"
	}
	today := Day(v.now().In(v.loc))
	day := Day(date)
	if day.Before(today) {
		return "callback date cannot be in the past"
	}
	if day.After(today.AddDate(maxCallBackYears, 0, 0)) {
		return "callback date cannot be more than 2 years ahead"
	}
	return ""
}

func (v *EnquiryValidator) checkDeposits(e *models.Enquiry, inScope func(...string) bool, problems map[string]string) {
	if !inScope("depositInwardDate", "depositOutwardDate") {
		return
	}
	var inward, outward time.Time
	var err error
	if e.DepositInwardDate != "" {
		if inward, err = ParseDate(e.DepositInwardDate, v.loc); err != nil {
			problems["depositInwardDate"] = "deposit inward date is not a valid date"
		}
	}
	if e.DepositOutwardDate != "" {
		if outward, err = ParseDate(e.DepositOutwardDate, v.loc); err != nil {
			problems["depositOutwardDate"] = "deposit outward date is not a valid date"
		}
	}
	if !inward.IsZero() && !outward.IsZero() && Day(outward).Before(Day(inward)) {
		problems["depositOutwardDate"] = "deposit outward date cannot be before the inward date"
	}
}
