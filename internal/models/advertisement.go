package models

import "time"

// AdvertisementEnquiry is a lead imported from an advertising campaign sheet.
type AdvertisementEnquiry struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	PhoneNo    string    `db:"phone_no" json:"phoneNo"`
	Email      string    `db:"email" json:"email"`
	AadharNo   *string   `db:"aadhar_no" json:"aadharNo,omitempty"`
	PanNo      *string   `db:"pan_no" json:"panNo,omitempty"`
	ImportedAt time.Time `db:"imported_at" json:"importedAt"`
	ImportedBy *string   `db:"imported_by" json:"importedBy,omitempty"`
}

// AdvertisementCandidate is one row of an import before validation.
type AdvertisementCandidate struct {
	Name     string `json:"name"`
	PhoneNo  string `json:"phoneNo"`
	Email    string `json:"email"`
	AadharNo string `json:"aadharNo,omitempty"`
	PanNo    string `json:"panNo,omitempty"`
}

// AdvertisementFilter narrows advertisement listings.
type AdvertisementFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CandidateValidation lists every rule a candidate breaks.
type CandidateValidation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ImportResult accounts for every row of a bulk import.
type ImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}
