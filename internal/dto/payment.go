package dto

// PaymentListQuery filters the payment ledger.
type PaymentListQuery struct {
	EnquiryID string `form:"enquiry_id"`
	Mode      string `form:"mode"`
	From      string `form:"from"`
	To        string `form:"to"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Format    string `form:"format"`
}
