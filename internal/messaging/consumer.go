package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	consumerTracer = otel.Tracer("messaging/consumer")
	consumerMeter  = otel.Meter("messaging/consumer")
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ReaderOption func(*kafka.ReaderConfig)

func WithStartOffset(offset int64) ReaderOption {
	return func(cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

func WithMaxWait(d time.Duration) ReaderOption {
	return func(cfg *kafka.ReaderConfig) {
		cfg.MaxWait = d
	}
}

// NewReader returns a group reader that commits explicitly. Offsets are
// committed synchronously so an uncommitted message is redelivered after a
// restart or rebalance.
func NewReader(brokers []string, topic, groupID string, opts ...ReaderOption) *kafka.Reader {
	cfg := kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		CommitInterval: 0,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return kafka.NewReader(cfg)
}

type consumerMetrics struct {
	attempts     metric.Int64Counter
	retries      metric.Int64Counter
	deadLettered metric.Int64Counter
}

func newConsumerMetrics() consumerMetrics {
	m := consumerMetrics{}
	var err error

	if m.attempts, err = consumerMeter.Int64Counter("messaging.consumer.attempts",
		metric.WithDescription("Handler invocations, labelled by outcome")); err != nil {
		otel.Handle(err)
		m.attempts = noop.Int64Counter{}
	}
	if m.retries, err = consumerMeter.Int64Counter("messaging.consumer.retries",
		metric.WithDescription("Redeliveries scheduled after a handler failure")); err != nil {
		otel.Handle(err)
		m.retries = noop.Int64Counter{}
	}
	if m.deadLettered, err = consumerMeter.Int64Counter("messaging.consumer.dead_lettered",
		metric.WithDescription("Messages routed to a dead-letter topic")); err != nil {
		otel.Handle(err)
		m.deadLettered = noop.Int64Counter{}
	}

	return m
}

// Consumer drives one reader for one listener. Messages are handled one at a
// time, so a message being retried holds back the rest of its partition.
type Consumer struct {
	reader      MessageReader
	deadLetters *DeadLetterProducer
	listener    Listener
	policy      RetryPolicy
	logger      *slog.Logger
	metrics     consumerMetrics

	sleep func(ctx context.Context, d time.Duration) error
}

func NewConsumer(reader MessageReader, deadLetters *DeadLetterProducer, listener Listener, policy RetryPolicy, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		deadLetters: deadLetters,
		listener:    listener,
		policy:      policy.normalized(),
		logger:      logger.With("topic", listener.Topic, "group_id", listener.GroupID),
		metrics:     newConsumerMetrics(),
		sleep:       sleepContext,
	}
}

// Consume blocks until ctx is done or the broker connection fails. A
// message is committed only after its handler succeeded or it was written
// to the dead-letter topic.
func (c *Consumer) Consume(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if msg.Topic == "" {
			msg.Topic = c.listener.Topic
		}

		if err := c.processMessage(ctx, msg); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d on partition %d: %w", msg.Offset, msg.Partition, err)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingKafkaConsumerGroup(c.listener.GroupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset)

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= c.policy.Attempts; attempt++ {
		attempts = attempt
		lastErr = c.invoke(spanCtx, msg)
		if lastErr == nil {
			c.metrics.attempts.Add(ctx, 1, c.attrs("success"))
			if attempt > 1 {
				logger.Info("message handled after retry", "attempt", attempt)
			}
			return nil
		}

		if ctx.Err() != nil {
			// Shutting down: leave the message uncommitted for redelivery.
			return ctx.Err()
		}

		c.metrics.attempts.Add(ctx, 1, c.attrs("failure"))
		span.AddEvent("handler failed", trace.WithAttributes(
			attribute.Int("messaging.attempt", attempt),
			attribute.String("exception.message", lastErr.Error()),
		))

		if IsPermanent(lastErr) {
			logger.Warn("message rejected without retry", "error", lastErr, "attempt", attempt)
			break
		}
		if attempt == c.policy.Attempts {
			break
		}

		delay := c.policy.Backoff(attempt)
		logger.Warn("message handling failed, retrying",
			"error", lastErr,
			"attempt", attempt,
			"max_attempts", c.policy.Attempts,
			"backoff", delay,
		)
		c.metrics.retries.Add(ctx, 1, c.attrs(""))

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())

	return c.routeToDeadLetter(spanCtx, logger, msg, attempts, lastErr)
}

func (c *Consumer) invoke(ctx context.Context, msg kafka.Message) (err error) {
	if c.policy.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.HandlerTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return c.listener.handle(ctx, msg.Value)
}

func (c *Consumer) routeToDeadLetter(ctx context.Context, logger *slog.Logger, msg kafka.Message, attempts int, cause error) error {
	dl := DeadLetter{GroupID: c.listener.GroupID, Attempts: attempts, Cause: cause}
	if err := c.deadLetters.Send(ctx, msg, dl); err != nil {
		logger.Error("failed to write dead letter", "error", err, "cause", cause)
		return fmt.Errorf("dead-letter offset %d on partition %d: %w", msg.Offset, msg.Partition, err)
	}

	c.metrics.deadLettered.Add(ctx, 1, c.attrs(""))
	logger.Error("message moved to dead-letter topic",
		"dead_letter_topic", DeadLetterTopic(msg.Topic),
		"attempts", attempts,
		"error", cause,
	)

	c.notifyDeadLetter(ctx, logger, msg, cause)
	return nil
}

// notifyDeadLetter runs the registered observer. Its failures are logged and
// never prevent the original message from being committed.
func (c *Consumer) notifyDeadLetter(ctx context.Context, logger *slog.Logger, msg kafka.Message, cause error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dead-letter handler panicked", "panic", fmt.Sprint(r))
		}
	}()

	if err := c.listener.deadLetter(ctx, msg.Value, cause); err != nil {
		logger.Error("dead-letter handler could not decode envelope", "error", err)
	}
}

func (c *Consumer) attrs(outcome string) metric.MeasurementOption {
	kv := []attribute.KeyValue{
		semconv.MessagingDestinationName(c.listener.Topic),
		semconv.MessagingKafkaConsumerGroup(c.listener.GroupID),
	}
	if outcome != "" {
		kv = append(kv, attribute.String("outcome", outcome))
	}
	return metric.WithAttributes(kv...)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// IsShutdown reports whether err only signals that the consumer was asked
// to stop.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
