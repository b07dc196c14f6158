package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/product-service/internal/domain"
)

func noopOrderHandler(context.Context, domain.Envelope[domain.OrderConfirmedPayload]) error {
	return nil
}

func TestRegister(t *testing.T) {
	t.Run("rejects duplicate topic and group", func(t *testing.T) {
		r := NewRegistry()
		if err := Register(r, domain.TopicOrderConfirmed, "product-service", noopOrderHandler, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := Register(r, domain.TopicOrderConfirmed, "product-service", noopOrderHandler, nil); err == nil {
			t.Fatal("expected duplicate registration to fail")
		}
	})

	t.Run("same topic in another group is a separate listener", func(t *testing.T) {
		r := NewRegistry()
		_ = Register(r, domain.TopicOrderConfirmed, "supplier-service", noopOrderHandler, nil)
		_ = Register(r, domain.TopicOrderConfirmed, "product-service", noopOrderHandler, nil)
		_ = Register(r, domain.TopicOrderCancelled, "product-service", func(context.Context, domain.Envelope[domain.OrderCancelledPayload]) error { return nil }, nil)

		listeners := r.Listeners()
		if len(listeners) != 3 {
			t.Fatalf("expected 3 listeners, got %d", len(listeners))
		}
		if listeners[0].Topic != domain.TopicOrderCancelled {
			t.Errorf("expected listeners sorted by topic, first is %s", listeners[0].Topic)
		}
		if listeners[1].GroupID != "product-service" || listeners[2].GroupID != "supplier-service" {
			t.Errorf("expected listeners sorted by group, got %s, %s", listeners[1].GroupID, listeners[2].GroupID)
		}
	})

	t.Run("requires topic, group and handler", func(t *testing.T) {
		r := NewRegistry()
		if err := Register[domain.OrderConfirmedPayload](r, "", "g", noopOrderHandler, nil); err == nil {
			t.Error("expected missing topic to fail")
		}
		if err := Register[domain.OrderConfirmedPayload](r, "t", "", noopOrderHandler, nil); err == nil {
			t.Error("expected missing group to fail")
		}
		if err := Register[domain.OrderConfirmedPayload](r, "t", "g", nil, nil); err == nil {
			t.Error("expected missing handler to fail")
		}
	})
}

func TestRegistry_Run(t *testing.T) {
	t.Run("fails without listeners", func(t *testing.T) {
		err := NewRegistry().Run(context.Background(), RunOptions{Logger: discardLogger()})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("runs one reader per worker and stops on cancel", func(t *testing.T) {
		r := NewRegistry()

		var mu sync.Mutex
		var seen []string
		done := make(chan struct{})
		err := Register(r, domain.TopicOrderConfirmed, "product-service",
			func(_ context.Context, env domain.Envelope[domain.OrderConfirmedPayload]) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, env.Payload.OrderID)
				if len(seen) == 2 {
					close(done)
				}
				return nil
			}, nil)
		if err != nil {
			t.Fatalf("failed to register: %v", err)
		}

		var readers []*fakeReader
		factory := func(topic, groupID string) MessageReader {
			if topic != domain.TopicOrderConfirmed || groupID != "product-service" {
				t.Errorf("unexpected reader for %s/%s", topic, groupID)
			}
			env := domain.NewEnvelope("order-service", "", domain.OrderConfirmedPayload{OrderID: "ORD-1"})
			data, _ := json.Marshal(env)
			reader := &fakeReader{block: true, messages: []kafka.Message{{Topic: topic, Value: data}}}
			readers = append(readers, reader)
			return reader
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- r.Run(ctx, RunOptions{
				NewReader:   factory,
				DeadLetters: NewDeadLetterProducer(&fakeWriter{}),
				Policy:      DefaultRetryPolicy(),
				Workers:     2,
				Logger:      discardLogger(),
			})
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
		cancel()

		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for Run to return")
		}

		if len(readers) != 2 {
			t.Fatalf("expected 2 readers, got %d", len(readers))
		}
		for _, reader := range readers {
			if !reader.closed {
				t.Error("expected reader closed")
			}
		}
	})

	t.Run("a failing consumer stops the others", func(t *testing.T) {
		r := NewRegistry()
		_ = Register(r, domain.TopicOrderConfirmed, "product-service", noopOrderHandler, nil)
		_ = Register(r, domain.TopicOrderCancelled, "product-service", func(context.Context, domain.Envelope[domain.OrderCancelledPayload]) error { return nil }, nil)

		factory := func(topic, _ string) MessageReader {
			if topic == domain.TopicOrderCancelled {
				return &fakeReader{}
			}
			return &fakeReader{block: true}
		}

		err := r.Run(context.Background(), RunOptions{
			NewReader:   factory,
			DeadLetters: NewDeadLetterProducer(&fakeWriter{}),
			Policy:      DefaultRetryPolicy(),
			Logger:      discardLogger(),
		})
		if !errors.Is(err, errDrained) {
			t.Fatalf("expected drained reader error, got %v", err)
		}
	})

	t.Run("runs without a logger", func(t *testing.T) {
		r := NewRegistry()
		_ = Register(r, domain.TopicOrderConfirmed, "product-service", noopOrderHandler, nil)

		err := r.Run(context.Background(), RunOptions{
			NewReader:   func(string, string) MessageReader { return &fakeReader{} },
			DeadLetters: NewDeadLetterProducer(&fakeWriter{}),
			Policy:      DefaultRetryPolicy(),
		})
		if !errors.Is(err, errDrained) {
			t.Fatalf("expected drained reader error, got %v", err)
		}
	})
}
