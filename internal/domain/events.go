package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicOrderConfirmed = "orders.confirmed.v1"
	TopicOrderCancelled = "orders.cancelled.v1"

	EnvelopeVersion = "1"
)

// Metadata is attached by the producing service and travels with every
// envelope unchanged.
type Metadata struct {
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Producer      string    `json:"producer"`
	Version       string    `json:"version"`
}

type Envelope[T any] struct {
	Metadata Metadata `json:"metadata"`
	Payload  T        `json:"payload"`
}

func NewEnvelope[T any](producer, correlationID string, payload T) Envelope[T] {
	return Envelope[T]{
		Metadata: Metadata{
			EventID:       uuid.New().String(),
			CorrelationID: correlationID,
			Timestamp:     time.Now().UTC(),
			Producer:      producer,
			Version:       EnvelopeVersion,
		},
		Payload: payload,
	}
}

type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderConfirmedPayload struct {
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId,omitempty"`
	Items      []OrderLine `json:"items,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Items      []OrderLine `json:"items,omitempty"`
}

type SupplierDeactivatedPayload struct {
	SupplierID string `json:"supplierId"`
}
