// Package events publishes billing domain events after their transaction
// commits. Delivery is best effort.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

type Type string

const (
	InvoiceCreated       Type = "invoice.created"
	InvoiceStatusUpdated Type = "invoice.status_updated"
	InvoiceDeleted       Type = "invoice.deleted"
	InvoiceOverdue       Type = "invoice.overdue"
	LateFeeApplied       Type = "invoice.late_fee_applied"
	ReadingCorrected     Type = "meter_reading.corrected"
	PaymentRecorded      Type = "payment.recorded"
	PaymentApproved      Type = "payment.approved"
	ContractTerminated   Type = "contract.terminated"
)

// Event is the wire envelope. Key orders events of one aggregate on a partition.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Key        string         `json:"-"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

func New(eventType Type, key string, occurredAt time.Time, data map[string]any) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		Key:        key,
		OccurredAt: occurredAt.UTC(),
		Data:       data,
	}
}

//go:generate mockgen -source=events.go -destination=mock/publisher_mock.go -package=mock
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher is used when no broker is configured.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, ...Event) error { return nil }
func (noopPublisher) Close() error                            { return nil }
