package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
)

var enquiryRowColumns = []string{"id", "document", "created_at", "updated_at"}

func TestEnquiryRepositoryListDecodesDocuments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(enquiryRowColumns).
		AddRow("e1", []byte(`{"fullName":"Asha","totalFees":5000,"knowledgeOfAndroid":"Basic","paymentHistory":null}`), created, created).
		AddRow("e2", []byte(`{"fullName":"Ravi","paymentHistory":[{"id":"PMT-1","amount":"100","mode":"Online"}]}`), created, created)
	mock.ExpectQuery("SELECT id, document, created_at, updated_at FROM enquiries ORDER BY created_at DESC").WillReturnRows(rows)

	enquiries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, enquiries, 2)
	assert.Equal(t, "e1", enquiries[0].ID)
	assert.Equal(t, models.Amount("5000"), enquiries[0].TotalFees)
	assert.Equal(t, "Basic", enquiries[0].KnowledgeOfAndroid)
	assert.NotNil(t, enquiries[0].PaymentHistory)
	assert.Equal(t, created, enquiries[0].CreatedAt)
	assert.Len(t, enquiries[1].PaymentHistory, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectQuery("FROM enquiries WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnquiryRepositoryCreateWithPaymentCommitsBoth(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enquiries").WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enquiry := &models.Enquiry{FullName: "Asha"}
	payment := &models.PaymentRecord{ID: "PMT-1", Amount: 1000, Mode: "Online", Date: "2026-10-17"}
	require.NoError(t, repo.CreateWithPayment(context.Background(), enquiry, payment))
	assert.NotEmpty(t, enquiry.ID)
	assert.Equal(t, enquiry.ID, payment.EnquiryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryUpdateWithPaymentRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE enquiries SET document").WithArgs("e1", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.UpdateWithPayment(context.Background(), &models.Enquiry{ID: "e1"}, &models.PaymentRecord{ID: "PMT-1", EnquiryID: "e1", Amount: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create payment record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE enquiries SET document").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.Enquiry{ID: "ghost"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectExec("DELETE FROM enquiries").WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
