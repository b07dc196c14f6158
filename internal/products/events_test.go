package products

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
	"github.com/joao-fontenele/product-service/internal/messaging"
)

func supplierEvent(id string) domain.Envelope[domain.SupplierDeactivatedPayload] {
	return domain.NewEnvelope("supplier-service", "corr-1", domain.SupplierDeactivatedPayload{SupplierID: id})
}

func TestEventHandler_Register(t *testing.T) {
	f := newFixture()
	h := NewEventHandler(f.service, "FAIL", discardLogger())
	r := messaging.NewRegistry()

	if err := h.Register(r, "supplier.deactivated", GroupProductService); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type key struct{ topic, group string }
	want := map[key]bool{
		{domain.TopicOrderCancelled, GroupProductService}:  true,
		{domain.TopicOrderCancelled, GroupSupplierService}: true,
		{domain.TopicOrderConfirmed, GroupProductService}:  true,
		{domain.TopicOrderConfirmed, GroupSupplierService}: true,
		{"supplier.deactivated", GroupProductService}:      true,
	}

	listeners := r.Listeners()
	if len(listeners) != len(want) {
		t.Fatalf("expected %d listeners, got %d", len(want), len(listeners))
	}
	for _, l := range listeners {
		if !want[key{l.Topic, l.GroupID}] {
			t.Errorf("unexpected listener %s/%s", l.Topic, l.GroupID)
		}
	}

	if err := h.Register(r, "supplier.deactivated", GroupProductService); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestEventHandler_OrderEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	h := NewEventHandler(f.service, "FAIL", discardLogger())

	for _, group := range []string{GroupProductService, GroupSupplierService} {
		t.Run(group, func(t *testing.T) {
			confirmed := h.orderConfirmed(group)
			cancelled := h.orderCancelled(group)

			if err := confirmed(ctx, domain.NewEnvelope("order-service", "c", domain.OrderConfirmedPayload{OrderID: "ORD-1"})); err != nil {
				t.Errorf("expected confirmed ORD-1 to succeed, got %v", err)
			}
			if err := cancelled(ctx, domain.NewEnvelope("order-service", "c", domain.OrderCancelledPayload{OrderID: "ORD-2"})); err != nil {
				t.Errorf("expected cancelled ORD-2 to succeed, got %v", err)
			}

			err := confirmed(ctx, domain.NewEnvelope("order-service", "c", domain.OrderConfirmedPayload{OrderID: "FAIL-1"}))
			if err == nil {
				t.Fatal("expected FAIL-1 to fail")
			}
			if messaging.IsPermanent(err) {
				t.Error("expected injected failure to be retryable")
			}
			if err := cancelled(ctx, domain.NewEnvelope("order-service", "c", domain.OrderCancelledPayload{OrderID: "FAIL-2"})); err == nil {
				t.Error("expected FAIL-2 to fail")
			}
		})
	}

	t.Run("empty prefix disables fault injection", func(t *testing.T) {
		h := NewEventHandler(f.service, "", discardLogger())
		err := h.orderConfirmed(GroupProductService)(ctx, domain.NewEnvelope("order-service", "c", domain.OrderConfirmedPayload{OrderID: "FAIL-1"}))
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})
}

func TestEventHandler_HandleSupplierDeactivated(t *testing.T) {
	ctx := context.Background()

	t.Run("updates supplier products", func(t *testing.T) {
		f := newFixture()
		supplierID := uuid.New()
		p := f.seed(domain.Product{SupplierID: &supplierID})
		h := NewEventHandler(f.service, "FAIL", discardLogger())

		if err := h.HandleSupplierDeactivated(ctx, supplierEvent(supplierID.String())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := f.repo.GetByID(ctx, p.ID)
		if stored.Discontinued {
			t.Error("expected product to remain active")
		}
	})

	tests := []struct {
		name          string
		supplierID    func(f *fixture) string
		wantPermanent bool
	}{
		{
			name:          "fault prefix is retryable",
			supplierID:    func(*fixture) string { return "FAIL-SUP" },
			wantPermanent: false,
		},
		{
			name:          "malformed id is permanent",
			supplierID:    func(*fixture) string { return "not-a-uuid" },
			wantPermanent: true,
		},
		{
			name:          "unknown supplier is permanent",
			supplierID:    func(*fixture) string { return uuid.NewString() },
			wantPermanent: true,
		},
		{
			name: "pending orders are permanent",
			supplierID: func(f *fixture) string {
				supplierID := uuid.New()
				p := f.seed(domain.Product{SupplierID: &supplierID})
				f.orders.pending[p.ID] = true
				return supplierID.String()
			},
			wantPermanent: true,
		},
		{
			name: "order service failure is retryable",
			supplierID: func(f *fixture) string {
				supplierID := uuid.New()
				f.seed(domain.Product{SupplierID: &supplierID})
				f.orders.err = errNoOrderService
				return supplierID.String()
			},
			wantPermanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			h := NewEventHandler(f.service, "FAIL", discardLogger())

			err := h.HandleSupplierDeactivated(ctx, supplierEvent(tt.supplierID(f)))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := messaging.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("expected permanent=%v, got %v (%v)", tt.wantPermanent, got, err)
			}
		})
	}

	t.Run("permanent error keeps cause", func(t *testing.T) {
		f := newFixture()
		h := NewEventHandler(f.service, "FAIL", discardLogger())

		err := h.HandleSupplierDeactivated(ctx, supplierEvent(uuid.NewString()))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound in chain, got %v", err)
		}
	})
}
