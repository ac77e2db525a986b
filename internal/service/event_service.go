package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enquiry-desk-api/pkg/events"
	"github.com/noah-isme/enquiry-desk-api/pkg/jobs"
)

// Domain event types.
const (
	EventEnquiryCreated        = "enquiry.created"
	EventEnquiryUpdated        = "enquiry.updated"
	EventEnquiryDeleted        = "enquiry.deleted"
	EventPaymentRecorded       = "payment.recorded"
	EventPaymentDeleted        = "payment.deleted"
	EventAdvertisementImported = "advertisements.imported"
	EventFollowUpDigest        = "followups.digest"
)

// EventPublisher hands domain events to the delivery pipeline. Publish never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, interface{}) {}

// EventEnvelope is the JSON body written to the broker.
type EventEnvelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Actor      string          `json:"actor,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type eventQueue interface {
	Enqueue(job jobs.Job) error
}

// EventService queues events for asynchronous delivery.
type EventService struct {
	queue   eventQueue
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventService constructs the publisher. A nil queue drops every event.
func NewEventService(queue eventQueue, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{queue: queue, metrics: metrics, logger: logger, now: time.Now}
}

type actorKey struct{}

// WithActor tags events published under ctx with the acting user.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// Publish serialises data and enqueues it without blocking.
func (s *EventService) Publish(ctx context.Context, eventType, key string, data interface{}) {
	if s == nil || s.queue == nil {
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("event encode failed", zap.String("type", eventType), zap.Error(err))
		s.metrics.RecordEvent(eventType, "dropped")
		return
	}
	envelope := EventEnvelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: s.now().UTC(),
		Data:       body,
	}
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		envelope.Actor = actor
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Warn("event encode failed", zap.String("type", eventType), zap.Error(err))
		s.metrics.RecordEvent(eventType, "dropped")
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: envelope.ID, Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn("event dropped", zap.String("type", eventType), zap.String("key", key), zap.Error(err))
		s.metrics.RecordEvent(eventType, "dropped")
		return
	}
	s.metrics.RecordEvent(eventType, "queued")
}

// NewEventDeliveryHandler returns the queue handler writing envelopes to producer.
func NewEventDeliveryHandler(producer events.Producer, metrics *MetricsService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		var envelope EventEnvelope
		if err := json.Unmarshal(job.Payload, &envelope); err != nil {
			logger.Error("discarding malformed event", zap.String("job_id", job.ID), zap.Error(err))
			metrics.RecordEvent(job.Type, "malformed")
			return nil
		}
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := producer.Send(sendCtx, []byte(envelope.Key), job.Payload); err != nil {
			metrics.RecordEvent(job.Type, "failed")
			return fmt.Errorf("deliver %s: %w", job.Type, err)
		}
		metrics.RecordEvent(job.Type, "delivered")
		return nil
	}
}
