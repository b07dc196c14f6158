// Command publish sends a single test event to the product service topics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
	"github.com/joao-fontenele/product-service/internal/messaging"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	topic := flag.String("topic", domain.TopicOrderConfirmed, "topic to publish to")
	orderID := flag.String("order-id", "ORD-1", "order id for order events")
	supplierID := flag.String("supplier-id", "", "supplier id for supplier.deactivated events")
	productID := flag.String("product-id", "", "product id of the single order line")
	quantity := flag.Int("quantity", 1, "quantity of the order line")
	flag.Parse()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = "localhost:9092"
	}
	brokers := strings.Split(kafkaBrokers, ",")

	var items []domain.OrderLine
	if *productID != "" {
		items = append(items, domain.OrderLine{ProductID: *productID, Quantity: *quantity})
	}

	correlationID := uuid.NewString()

	var (
		key   string
		event any
	)
	switch {
	case *supplierID != "":
		key = *supplierID
		event = domain.NewEnvelope("publish-cli", correlationID, domain.SupplierDeactivatedPayload{SupplierID: *supplierID})
	case *topic == domain.TopicOrderCancelled:
		key = *orderID
		event = domain.NewEnvelope("publish-cli", correlationID, domain.OrderCancelledPayload{OrderID: *orderID, Reason: "cancelled from cli", Items: items})
	default:
		key = *orderID
		event = domain.NewEnvelope("publish-cli", correlationID, domain.OrderConfirmedPayload{OrderID: *orderID, Items: items})
	}

	producer := messaging.NewProducer(brokers, *topic)
	defer func() { _ = producer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := producer.Publish(ctx, key, event); err != nil {
		logger.Error("failed to publish event", slog.String("topic", *topic), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("event published", slog.String("topic", *topic), slog.String("key", key), slog.String("correlation_id", correlationID))
}
