package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/internal/models"
	appErrors "github.com/noah-isme/enquiry-desk-api/pkg/errors"
)

type fakePaymentStore struct {
	records map[string]models.PaymentRecord
	filter  models.PaymentFilter
	deletes int
}

func (f *fakePaymentStore) List(_ context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, int, error) {
	f.filter = filter
	out := make([]models.PaymentRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakePaymentStore) FindByID(_ context.Context, id string) (*models.PaymentRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (f *fakePaymentStore) Delete(_ context.Context, id string) error {
	f.deletes++
	if _, ok := f.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.records, id)
	return nil
}

func TestPaymentServiceListNormalisesPaging(t *testing.T) {
	store := &fakePaymentStore{records: map[string]models.PaymentRecord{"p1": {ID: "p1", Amount: 100}}}
	svc := NewPaymentService(store, nil, nil, nil, zap.NewNop())

	items, page, err := svc.List(context.Background(), models.PaymentFilter{Mode: "Online", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 20, store.filter.PageSize)
}

func TestPaymentServiceListRejectsBadFilter(t *testing.T) {
	svc := NewPaymentService(&fakePaymentStore{}, nil, nil, nil, nil)

	_, _, err := svc.List(context.Background(), models.PaymentFilter{Mode: "Barter"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = svc.List(context.Background(), models.PaymentFilter{From: "yesterday"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPaymentServiceDelete(t *testing.T) {
	store := &fakePaymentStore{records: map[string]models.PaymentRecord{"p1": {ID: "p1", EnquiryID: "e1", Amount: 250}}}
	audit := &fakeAuditRepo{}
	events := &fakePublisher{}
	svc := NewPaymentService(store, audit, events, nil, zap.NewNop())
	ctx := context.Background()

	ok, err := svc.Delete(ctx, staffSession, "p1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Zero(t, store.deletes)

	ok, err = svc.Delete(ctx, adminSession, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPaymentDelete, audit.logs[0].Action)
	assert.Equal(t, []recordedEvent{{eventType: EventPaymentDeleted, key: "e1"}}, events.events)

	_, err = svc.Delete(ctx, adminSession, "p1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
