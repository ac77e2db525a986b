package models

import "time"

// PaymentRecord is a ledger row mirroring an entry appended to an enquiry's payment history.
type PaymentRecord struct {
	ID          string    `db:"id" json:"id"`
	EnquiryID   string    `db:"enquiry_id" json:"enquiryId"`
	EnquiryName string    `db:"enquiry_name" json:"enquiryName"`
	Date        string    `db:"date" json:"date"`
	Amount      float64   `db:"amount" json:"amount"`
	Mode        string    `db:"mode" json:"mode"`
	OfflineType *string   `db:"offline_type" json:"offlineType,omitempty"`
	Reference   *string   `db:"reference" json:"reference,omitempty"`
	Note        *string   `db:"note" json:"note,omitempty"`
	CreatedBy   *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// PaymentFilter narrows ledger listings.
type PaymentFilter struct {
	EnquiryID string
	Mode      string
	From      string
	To        string
	Page      int
	PageSize  int
}

// AddPaymentRequest is the caller-supplied portion of a new payment entry.
type AddPaymentRequest struct {
	Amount    Amount        `json:"amount"`
	Date      string        `json:"date"`
	Mode      PaymentMode   `json:"mode"`
	Method    PaymentMethod `json:"method,omitempty"`
	Reference string        `json:"reference,omitempty"`
	Note      string        `json:"note,omitempty"`
}
