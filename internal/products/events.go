package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
	"github.com/joao-fontenele/product-service/internal/messaging"
)

const (
	GroupProductService  = "product-service"
	GroupSupplierService = "supplier-service"
)

// EventHandler reacts to order and supplier lifecycle events.
type EventHandler struct {
	service    *Service
	failPrefix string
	logger     *slog.Logger
}

// NewEventHandler returns a handler that fails every event whose order or
// supplier id starts with failPrefix. An empty prefix disables that.
func NewEventHandler(service *Service, failPrefix string, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service:    service,
		failPrefix: failPrefix,
		logger:     logger,
	}
}

// Register binds every topic this service consumes.
func (h *EventHandler) Register(r *messaging.Registry, supplierTopic, supplierGroup string) error {
	for _, group := range []string{GroupProductService, GroupSupplierService} {
		if err := messaging.Register(r, domain.TopicOrderConfirmed, group, h.orderConfirmed(group), deadLetterLogger[domain.OrderConfirmedPayload](h.logger, group)); err != nil {
			return err
		}
		if err := messaging.Register(r, domain.TopicOrderCancelled, group, h.orderCancelled(group), deadLetterLogger[domain.OrderCancelledPayload](h.logger, group)); err != nil {
			return err
		}
	}

	return messaging.Register(r, supplierTopic, supplierGroup, h.HandleSupplierDeactivated, deadLetterLogger[domain.SupplierDeactivatedPayload](h.logger, supplierGroup))
}

func (h *EventHandler) orderConfirmed(group string) messaging.HandlerFunc[domain.OrderConfirmedPayload] {
	return func(ctx context.Context, env domain.Envelope[domain.OrderConfirmedPayload]) error {
		orderID := env.Payload.OrderID
		h.logger.Info("order confirmed event received", "group_id", group, "order_id", orderID, "event_id", env.Metadata.EventID)

		if err := h.injectFault("order", orderID); err != nil {
			return err
		}

		if group == GroupSupplierService {
			h.logger.Info("supplier notified of confirmed order", "order_id", orderID)
			return nil
		}
		h.logger.Info("confirmed order acknowledged", "order_id", orderID, "lines", len(env.Payload.Items))
		return nil
	}
}

func (h *EventHandler) orderCancelled(group string) messaging.HandlerFunc[domain.OrderCancelledPayload] {
	return func(ctx context.Context, env domain.Envelope[domain.OrderCancelledPayload]) error {
		orderID := env.Payload.OrderID
		h.logger.Info("order cancelled event received", "group_id", group, "order_id", orderID, "event_id", env.Metadata.EventID)

		if err := h.injectFault("order", orderID); err != nil {
			return err
		}

		if group == GroupSupplierService {
			h.logger.Info("supplier notified of cancelled order", "order_id", orderID)
			return nil
		}
		h.logger.Info("cancelled order acknowledged", "order_id", orderID, "lines", len(env.Payload.Items))
		return nil
	}
}

// HandleSupplierDeactivated applies the deactivation to the supplier's
// products. Rule violations are not retried.
func (h *EventHandler) HandleSupplierDeactivated(ctx context.Context, env domain.Envelope[domain.SupplierDeactivatedPayload]) error {
	raw := env.Payload.SupplierID
	h.logger.Info("supplier deactivated event received", "supplier_id", raw, "event_id", env.Metadata.EventID)

	if err := h.injectFault("supplier", raw); err != nil {
		return err
	}

	supplierID, err := uuid.Parse(raw)
	if err != nil {
		return messaging.Permanent(fmt.Errorf("parse supplier id %q: %w", raw, err))
	}

	updated, err := h.service.ReactivateFromSupplierEvent(ctx, supplierID)
	if err != nil {
		if IsBusinessRule(err) {
			return messaging.Permanent(err)
		}
		return err
	}

	h.logger.Info("products updated for deactivated supplier", "supplier_id", raw, "updated", updated)
	return nil
}

func (h *EventHandler) injectFault(kind, id string) error {
	if h.failPrefix != "" && strings.HasPrefix(id, h.failPrefix) {
		return fmt.Errorf("simulated failure for %s: %s", kind, id)
	}
	return nil
}

func deadLetterLogger[T any](logger *slog.Logger, group string) messaging.DeadLetterFunc[T] {
	return func(_ context.Context, env domain.Envelope[T], cause error) {
		logger.Error("message moved to DLT",
			"group_id", group,
			"event_id", env.Metadata.EventID,
			"correlation_id", env.Metadata.CorrelationID,
			"producer", env.Metadata.Producer,
			"payload", env.Payload,
			"error", cause,
		)
	}
}
