package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

var paymentRowColumns = []string{"id", "enquiry_id", "enquiry_name", "date", "amount", "mode", "offline_type", "reference", "note", "created_by", "created_at"}

func paymentSelect(rest string) string {
	return "SELECT " + paymentColumns + " " + rest
}

func TestPaymentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(paymentSelect("FROM payments WHERE 1=1 AND enquiry_id = $1 AND mode = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10"))).
		WithArgs("enq-1", "Offline").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("PMT-1", "enq-1", "Asha", "2024-05-01", 1500.0, "Offline", "Cash", nil, nil, "u1", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE 1=1 AND enquiry_id = $1 AND mode = $2")).
		WithArgs("enq-1", "Offline").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	records, total, err := repo.List(context.Background(), models.PaymentFilter{EnquiryID: "enq-1", Mode: "Offline", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, 1500.0, records[0].Amount)
	require.NotNil(t, records[0].OfflineType)
	assert.Equal(t, "Cash", *records[0].OfflineType)
	assert.Nil(t, records[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListDefaultsPaging(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(paymentRowColumns).
		AddRow("PMT-1", "e1", "Asha", "2026-10-17", 2000.0, "Offline", "Cash", nil, nil, "u1", now)
	mock.ExpectQuery(regexp.QuoteMeta(paymentSelect("FROM payments WHERE 1=1 AND enquiry_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0"))).
		WithArgs("e1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE 1=1 AND enquiry_id = $1")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.PaymentFilter{EnquiryID: "e1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 2000.0, records[0].Amount)
	require.NotNil(t, records[0].OfflineType)
	assert.Equal(t, "Cash", *records[0].OfflineType)
	assert.Nil(t, records[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListAllDateRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(paymentSelect("FROM payments WHERE 1=1 AND date >= $1 AND date <= $2 ORDER BY created_at ASC"))).
		WithArgs("2024-05-01", "2024-05-31").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	records, err := repo.ListAll(context.Background(), models.PaymentFilter{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1 LIMIT 1")).
		WithArgs("PMT-X").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "PMT-X")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs("PMT-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs("PMT-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "PMT-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "PMT-2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
