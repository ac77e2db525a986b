package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

const advertisementColumns = `id, name, phone_no, email, aadhar_no, pan_no, imported_at, imported_by`

// AdvertisementRepository stores imported advertisement leads.
type AdvertisementRepository struct {
	db *sqlx.DB
}

// NewAdvertisementRepository creates a new AdvertisementRepository.
func NewAdvertisementRepository(db *sqlx.DB) *AdvertisementRepository {
	return &AdvertisementRepository{db: db}
}

func advertisementConditions(filter models.AdvertisementFilter) (string, []interface{}) {
	baseQuery := `FROM advertisements WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d OR phone_no LIKE $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	return baseQuery, args
}

// List returns a page of advertisement leads with the total count.
func (r *AdvertisementRepository) List(ctx context.Context, filter models.AdvertisementFilter) ([]models.AdvertisementEnquiry, int, error) {
	baseQuery, args := advertisementConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY imported_at DESC LIMIT %d OFFSET %d", advertisementColumns, baseQuery, pageSize, offset)
	var items []models.AdvertisementEnquiry
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list advertisements: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count advertisements: %w", err)
	}
	return items, total, nil
}

// ListAll returns every advertisement lead, newest first.
func (r *AdvertisementRepository) ListAll(ctx context.Context) ([]models.AdvertisementEnquiry, error) {
	query := fmt.Sprintf("SELECT %s FROM advertisements ORDER BY imported_at DESC", advertisementColumns)
	var items []models.AdvertisementEnquiry
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list all advertisements: %w", err)
	}
	return items, nil
}

// ExistingPhones returns the subset of phones already stored.
func (r *AdvertisementRepository) ExistingPhones(ctx context.Context, phones []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(phones) == 0 {
		return existing, nil
	}
	var found []string
	const query = `SELECT DISTINCT phone_no FROM advertisements WHERE phone_no = ANY($1)`
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(phones)); err != nil {
		return nil, fmt.Errorf("find existing advertisement phones: %w", err)
	}
	for _, phone := range found {
		existing[phone] = true
	}
	return existing, nil
}

// BulkCreate inserts all items in a single transaction.
func (r *AdvertisementRepository) BulkCreate(ctx context.Context, items []models.AdvertisementEnquiry) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk advertisement tx: %w", err)
	}
	const query = `INSERT INTO advertisements (id, name, phone_no, email, aadhar_no, pan_no, imported_at, imported_by) VALUES (:id, :name, :phone_no, :email, :aadhar_no, :pan_no, :imported_at, :imported_by)`
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].ImportedAt.IsZero() {
			items[i].ImportedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, items[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bulk create advertisement: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk advertisement tx: %w", err)
	}
	return nil
}

// Delete removes an advertisement lead. It returns sql.ErrNoRows when nothing was deleted.
func (r *AdvertisementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM advertisements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete advertisement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete advertisement rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
