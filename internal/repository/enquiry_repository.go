package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

const insertPaymentQuery = `INSERT INTO payments (id, enquiry_id, enquiry_name, date, amount, mode, offline_type, reference, note, created_by, created_at) VALUES (:id, :enquiry_id, :enquiry_name, :date, :amount, :mode, :offline_type, :reference, :note, :created_by, :created_at)`

// EnquiryRepository stores enquiries as JSON documents.
type EnquiryRepository struct {
	db *sqlx.DB
}

// NewEnquiryRepository creates a new EnquiryRepository.
func NewEnquiryRepository(db *sqlx.DB) *EnquiryRepository {
	return &EnquiryRepository{db: db}
}

type enquiryRow struct {
	ID        string    `db:"id"`
	Document  []byte    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row enquiryRow) decode() (models.Enquiry, error) {
	var enquiry models.Enquiry
	if len(row.Document) > 0 {
		if err := json.Unmarshal(row.Document, &enquiry); err != nil {
			return models.Enquiry{}, fmt.Errorf("decode enquiry %s: %w", row.ID, err)
		}
	}
	if enquiry.PaymentHistory == nil {
		enquiry.PaymentHistory = models.PaymentHistory{}
	}
	enquiry.ID = row.ID
	enquiry.CreatedAt = row.CreatedAt
	enquiry.UpdatedAt = row.UpdatedAt
	return enquiry, nil
}

// List returns every stored enquiry, newest first.
func (r *EnquiryRepository) List(ctx context.Context) ([]models.Enquiry, error) {
	const query = `SELECT id, document, created_at, updated_at FROM enquiries ORDER BY created_at DESC`
	var rows []enquiryRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list enquiries: %w", err)
	}
	enquiries := make([]models.Enquiry, 0, len(rows))
	for _, row := range rows {
		enquiry, err := row.decode()
		if err != nil {
			return nil, err
		}
		enquiries = append(enquiries, enquiry)
	}
	return enquiries, nil
}

// FindByID returns a single enquiry or sql.ErrNoRows.
func (r *EnquiryRepository) FindByID(ctx context.Context, id string) (*models.Enquiry, error) {
	const query = `SELECT id, document, created_at, updated_at FROM enquiries WHERE id = $1 LIMIT 1`
	var row enquiryRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enquiry by id: %w", err)
	}
	enquiry, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &enquiry, nil
}

// Create inserts a new enquiry document.
func (r *EnquiryRepository) Create(ctx context.Context, enquiry *models.Enquiry) error {
	return r.CreateWithPayment(ctx, enquiry, nil)
}

// CreateWithPayment inserts the enquiry and, when payment is non-nil, its ledger row in one transaction.
func (r *EnquiryRepository) CreateWithPayment(ctx context.Context, enquiry *models.Enquiry, payment *models.PaymentRecord) (err error) {
	if enquiry.ID == "" {
		enquiry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enquiry.CreatedAt.IsZero() {
		enquiry.CreatedAt = now
	}
	if enquiry.UpdatedAt.IsZero() {
		enquiry.UpdatedAt = enquiry.CreatedAt
	}
	doc, err := json.Marshal(enquiry)
	if err != nil {
		return fmt.Errorf("encode enquiry: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enquiry tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO enquiries (id, document, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, query, enquiry.ID, string(doc), enquiry.CreatedAt, enquiry.UpdatedAt); err != nil {
		return fmt.Errorf("create enquiry: %w", err)
	}
	if payment != nil {
		payment.EnquiryID = enquiry.ID
		if err = insertPayment(ctx, tx, payment); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create enquiry tx: %w", err)
	}
	return nil
}

// Update replaces the stored document. It returns sql.ErrNoRows when the enquiry does not exist.
func (r *EnquiryRepository) Update(ctx context.Context, enquiry *models.Enquiry) error {
	return r.UpdateWithPayment(ctx, enquiry, nil)
}

// UpdateWithPayment replaces the document and, when payment is non-nil, appends the ledger row in one transaction.
func (r *EnquiryRepository) UpdateWithPayment(ctx context.Context, enquiry *models.Enquiry, payment *models.PaymentRecord) (err error) {
	if enquiry.UpdatedAt.IsZero() {
		enquiry.UpdatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(enquiry)
	if err != nil {
		return fmt.Errorf("encode enquiry: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update enquiry tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE enquiries SET document = $2, updated_at = $3 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, enquiry.ID, string(doc), enquiry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update enquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enquiry rows affected: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if payment != nil {
		if err = insertPayment(ctx, tx, payment); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update enquiry tx: %w", err)
	}
	return nil
}

// Delete removes an enquiry document. It returns sql.ErrNoRows when nothing was deleted.
func (r *EnquiryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enquiries WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enquiry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertPayment(ctx context.Context, ext sqlx.ExtContext, payment *models.PaymentRecord) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertPaymentQuery, payment); err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}
	return nil
}
