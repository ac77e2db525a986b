package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

// NormalizeCandidate tidies an imported row: whitespace collapsed, email
// lower-cased, PAN upper-cased and the phone reduced to its digits.
func NormalizeCandidate(c models.AdvertisementCandidate) models.AdvertisementCandidate {
	return models.AdvertisementCandidate{
		Name:     CollapseSpaces(c.Name),
		PhoneNo:  DigitsOnly(c.PhoneNo),
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		AadharNo: StripSpaces(c.AadharNo),
		PanNo:    strings.ToUpper(strings.TrimSpace(c.PanNo)),
	}
}

// ValidateCandidate reports every rule the candidate breaks.
func ValidateCandidate(v *validator.Validate, c models.AdvertisementCandidate) models.CandidateValidation {
	if v == nil {
		v = New()
	}
	errs := make([]string, 0)
	if len([]rune(strings.TrimSpace(c.Name))) < 2 {
		errs = append(errs, "name must be at least 2 characters")
	}
	if !IsMobile(c.PhoneNo) {
		errs = append(errs, "phone number must be 10 digits starting with 6-9")
	}
	if err := v.Var(strings.TrimSpace(c.Email), "required,email"); err != nil {
		errs = append(errs, "email is invalid")
	}
	if aadhar := StripSpaces(c.AadharNo); aadhar != "" && !aadhaarPattern.MatchString(aadhar) {
		errs = append(errs, "aadhar number must be 12 digits")
	}
	if pan := strings.TrimSpace(c.PanNo); pan != "" && !IsPAN(pan) {
		errs = append(errs, "PAN is invalid")
	}
	return models.CandidateValidation{IsValid: len(errs) == 0, Errors: errs}
}
