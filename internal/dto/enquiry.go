package dto

import "github.com/noah-isme/enquiry-desk-api/internal/models"

// ListQuery holds the paging and filter parameters accepted by list endpoints.
type ListQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	Search   string `form:"search"`
}

// DuplicateCheckRequest asks whether any of the fields already belong to another enquiry.
type DuplicateCheckRequest struct {
	Mobile       string `json:"mobile"`
	Email        string `json:"email"`
	AadharNumber string `json:"aadharNumber"`
	ExcludeID    string `json:"excludeId,omitempty"`
}

// Candidate converts the request into the service input.
func (r DuplicateCheckRequest) Candidate() models.DuplicateCandidate {
	return models.DuplicateCandidate{Mobile: r.Mobile, Email: r.Email, AadharNumber: r.AadharNumber}
}

// DuplicateCheckResponse lists the fields in use elsewhere.
type DuplicateCheckResponse struct {
	HasDuplicates bool                    `json:"hasDuplicates"`
	Duplicates    []models.DuplicateCheck `json:"duplicates"`
}

// ExistingQuery looks up a lead by any of its identifying fields.
type ExistingQuery struct {
	Aadhar string `form:"aadhar"`
	Mobile string `form:"mobile"`
	Email  string `form:"email"`
}
