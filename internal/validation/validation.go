package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Custom tag names registered by Register.
const (
	TagMobile     = "mobile"
	TagAadhaar    = "aadhaar"
	TagPAN        = "pan"
	TagDemat      = "demat"
	TagPersonName = "person_name"
)

var (
	mobilePattern     = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	aadhaarPattern    = regexp.MustCompile(`^[0-9]{12}$`)
	panPattern        = regexp.MustCompile(`^[A-Z]{3}[PCHFATBLJG][A-Z][0-9]{4}[A-Z]$`)
	dematPattern      = regexp.MustCompile(`^[A-Z0-9]{8,16}$`)
	personNamePattern = regexp.MustCompile(`^[A-Za-z .]+$`)
)

// New returns a validator with the enquiry tags registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the enquiry tags to v.
func Register(v *validator.Validate) error {
	tags := map[string]validator.Func{
		TagMobile: func(fl validator.FieldLevel) bool {
			return IsMobile(fl.Field().String())
		},
		TagAadhaar: func(fl validator.FieldLevel) bool {
			return IsAadhaar(fl.Field().String())
		},
		TagPAN: func(fl validator.FieldLevel) bool {
			return IsPAN(fl.Field().String())
		},
		TagDemat: func(fl validator.FieldLevel) bool {
			return dematPattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		},
		TagPersonName: func(fl validator.FieldLevel) bool {
			return personNamePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// IsMobile reports whether raw is a ten digit mobile number starting 6-9.
func IsMobile(raw string) bool {
	return mobilePattern.MatchString(strings.TrimSpace(raw))
}

// IsAadhaar reports whether raw holds twelve digits once spaces are removed.
// Repeated zeros or ones are placeholder values and are rejected.
func IsAadhaar(raw string) bool {
	digits := StripSpaces(raw)
	if !aadhaarPattern.MatchString(digits) {
		return false
	}
	return digits != strings.Repeat("0", 12) && digits != strings.Repeat("1", 12)
}

// IsPAN reports whether raw is a PAN with a known holder category in the fourth position.
func IsPAN(raw string) bool {
	return panPattern.MatchString(strings.ToUpper(strings.TrimSpace(raw)))
}

// StripSpaces removes every whitespace rune.
func StripSpaces(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// DigitsOnly keeps the decimal digits of raw.
func DigitsOnly(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// CollapseSpaces trims raw and folds internal whitespace runs to a single space.
func CollapseSpaces(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ParseDate accepts the date and timestamp layouts stored by clients.
// Values without a zone are read in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from from to to, each read in its own
// location. Days shortened or lengthened by DST still count as one.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
