package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// EnquiryStatus is the lifecycle stage of an enquiry.
type EnquiryStatus string

const (
	EnquiryStatusPending   EnquiryStatus = "Pending"
	EnquiryStatusInProcess EnquiryStatus = "In Process"
	EnquiryStatusConfirmed EnquiryStatus = "Confirmed"
)

// Valid reports whether s is a known status.
func (s EnquiryStatus) Valid() bool {
	switch s {
	case EnquiryStatusPending, EnquiryStatusInProcess, EnquiryStatusConfirmed:
		return true
	}
	return false
}

// InterestLevel is the recorded interest of a lead, e.g. "50% Interested".
type InterestLevel string

const (
	Interest0   InterestLevel = "0% Interested"
	Interest25  InterestLevel = "25% Interested"
	Interest50  InterestLevel = "50% Interested"
	Interest75  InterestLevel = "75% Interested"
	Interest100 InterestLevel = "100% Interested"
)

// InterestLevels lists the accepted interest levels in ascending order.
var InterestLevels = []InterestLevel{Interest0, Interest25, Interest50, Interest75, Interest100}

// Valid reports whether l is one of InterestLevels.
func (l InterestLevel) Valid() bool {
	for _, level := range InterestLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Percent returns the numeric prefix of the level, or 0 when absent.
func (l InterestLevel) Percent() int {
	raw := strings.TrimSpace(string(l))
	idx := strings.Index(raw, "%")
	if idx <= 0 {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw[:idx]))
	if err != nil {
		return 0
	}
	return v
}

// PaymentMode distinguishes online from offline collections.
type PaymentMode string

const (
	PaymentModeOnline  PaymentMode = "Online"
	PaymentModeOffline PaymentMode = "Offline"
)

// PaymentMethod is the offline instrument used.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodCheque PaymentMethod = "Cheque"
)

// Amount is a decimal carried as a string. Stored documents hold either JSON
// numbers or strings, both decode into Amount.
type Amount string

// UnmarshalJSON accepts a JSON string, number or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// IsSet reports whether the amount carries a value.
func (a Amount) IsSet() bool {
	return strings.TrimSpace(string(a)) != ""
}

// Float parses the amount; unparsable or empty values are zero.
func (a Amount) Float() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Valid reports whether the amount parses as a finite number.
func (a Amount) Valid() bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AmountOf formats v without trailing zeros.
func AmountOf(v float64) Amount {
	return Amount(strconv.FormatFloat(roundCents(v), 'f', -1, 64))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// PaymentEntry is one transaction in an enquiry's payment history.
type PaymentEntry struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	Amount    Amount        `json:"amount"`
	Mode      PaymentMode   `json:"mode"`
	Method    PaymentMethod `json:"method,omitempty"`
	Reference string        `json:"reference,omitempty"`
	Note      string        `json:"note,omitempty"`
	CreatedBy string        `json:"createdBy,omitempty"`
}

// PaymentHistory is the ordered list of payments recorded against an enquiry.
// Anything other than an array decodes as empty.
type PaymentHistory []PaymentEntry

// UnmarshalJSON tolerates absent or malformed history.
func (h *PaymentHistory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*h = PaymentHistory{}
		return nil
	}
	var entries []PaymentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if entries == nil {
		entries = []PaymentEntry{}
	}
	*h = entries
	return nil
}

// MarshalJSON always emits an array.
func (h PaymentHistory) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]PaymentEntry(h))
}

// Sum totals the amounts in the history.
func (h PaymentHistory) Sum() float64 {
	var total float64
	for _, entry := range h {
		total += entry.Amount.Float()
	}
	return roundCents(total)
}

// Enquiry is a sales lead tracked through the Pending, In Process and Confirmed stages.
type Enquiry struct {
	ID              string `json:"id"`
	FullName        string `json:"fullName"`
	Mobile          string `json:"mobile"`
	AlternateMobile string `json:"alternateMobile,omitempty"`
	Email           string `json:"email"`
	Address         string `json:"address,omitempty"`

	AadharNumber string `json:"aadharNumber,omitempty"`
	PanNumber    string `json:"panNumber,omitempty"`

	Education              string `json:"education,omitempty"`
	CustomEducation        string `json:"customEducation,omitempty"`
	KnowledgeOfDevelopment string `json:"knowledgeOfDevelopment,omitempty"`
	KnowledgeOfAndroid     string `json:"knowledgeOfAndroid,omitempty"`
	SourceOfEnquiry        string `json:"sourceOfEnquiry,omitempty"`
	HowDidYouKnow          string `json:"howDidYouKnow,omitempty"`
	CustomHowDidYouKnow    string `json:"customHowDidYouKnow,omitempty"`
	Profession             string `json:"profession,omitempty"`
	CustomProfession       string `json:"customProfession,omitempty"`
	EnquiryState           string `json:"enquiryState,omitempty"`
	EnquiryDistrict        string `json:"enquiryDistrict,omitempty"`

	Status           EnquiryStatus `json:"status"`
	InterestedStatus InterestLevel `json:"interestedStatus,omitempty"`
	CallBackDate     string        `json:"callBackDate"`

	TotalFees      Amount         `json:"totalFees"`
	PaidFees       Amount         `json:"paidFees"`
	RemainingFees  Amount         `json:"remainingFees"`
	PaymentHistory PaymentHistory `json:"paymentHistory"`

	DemateAccount1     string `json:"demateAccount1,omitempty"`
	DemateAccount2     string `json:"demateAccount2,omitempty"`
	DepositInwardDate  string `json:"depositInwardDate,omitempty"`
	DepositOutwardDate string `json:"depositOutwardDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnquiryPatch is a partial update keyed by JSON field name.
type EnquiryPatch map[string]json.RawMessage

// Has reports whether the patch sets field.
func (p EnquiryPatch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// String decodes a string-valued field; ok is false when absent or not a string.
func (p EnquiryPatch) String(field string) (string, bool) {
	raw, ok := p[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// EnquiryFilter narrows in-memory enquiry listings.
type EnquiryFilter struct {
	Status   EnquiryStatus
	Search   string
	Page     int
	PageSize int
}

// DuplicateCandidate carries the fields checked for uniqueness.
type DuplicateCandidate struct {
	Mobile       string `json:"mobile"`
	Email        string `json:"email"`
	AadharNumber string `json:"aadharNumber"`
}

// DuplicateCheck reports one field of a candidate that already exists on another enquiry.
type DuplicateCheck struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	EnquiryID   string `json:"enquiryId"`
	EnquiryName string `json:"enquiryName"`
}

// EnquiryStatistics summarises the enquiry collection.
type EnquiryStatistics struct {
	Total            int            `json:"total"`
	Pending          int            `json:"pending"`
	InProcess        int            `json:"inProcess"`
	Confirmed        int            `json:"confirmed"`
	ByInterest       map[string]int `json:"byInterest"`
	CreatedToday     int            `json:"createdToday"`
	CreatedThisMonth int            `json:"createdThisMonth"`
	ConversionRate   float64        `json:"conversionRate"`
}

// PaymentStatistics aggregates fee collection across enquiries.
type PaymentStatistics struct {
	TotalFees     float64 `json:"totalFees"`
	Collected     float64 `json:"collected"`
	Outstanding   float64 `json:"outstanding"`
	PaymentCount  int     `json:"paymentCount"`
	OnlineAmount  float64 `json:"onlineAmount"`
	OfflineAmount float64 `json:"offlineAmount"`
	FullyPaid     int     `json:"fullyPaid"`
	PartiallyPaid int     `json:"partiallyPaid"`
	Unpaid        int     `json:"unpaid"`
}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FollowUp is an enquiry due for a callback.
type FollowUp struct {
	EnquiryID        string        `json:"enquiryId"`
	FullName         string        `json:"fullName"`
	Mobile           string        `json:"mobile"`
	Status           EnquiryStatus `json:"status"`
	InterestedStatus InterestLevel `json:"interestedStatus,omitempty"`
	CallBackDate     string        `json:"callBackDate"`
	DaysOverdue      int           `json:"daysOverdue,omitempty"`
}
