package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var producerTracer = otel.Tracer("messaging/producer")

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderOriginalGroup     = "x-original-consumer-group"
	HeaderAttempts          = "x-attempts"
	HeaderExceptionMessage  = "x-exception-message"
	HeaderDeadLetteredAt    = "x-dead-lettered-at"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
	topic  string
}

// NewProducer returns a producer bound to one topic. Messages are
// partitioned by key so events for the same entity keep their order.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, NewMessageCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// DeadLetterProducer copies failed messages to "<topic>.DLT". The writer
// must not be bound to a topic since each message names its own.
type DeadLetterProducer struct {
	writer MessageWriter
}

func NewDeadLetterWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

func NewDeadLetterProducer(writer MessageWriter) *DeadLetterProducer {
	return &DeadLetterProducer{writer: writer}
}

type DeadLetter struct {
	GroupID  string
	Attempts int
	Cause    error
}

// Send writes an exact copy of msg's key, value and headers to the
// dead-letter topic, adding headers that describe where it came from.
func (p *DeadLetterProducer) Send(ctx context.Context, msg kafka.Message, dl DeadLetter) error {
	topic := DeadLetterTopic(msg.Topic)

	out := kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: make([]kafka.Header, len(msg.Headers)),
	}
	copy(out.Headers, msg.Headers)

	SetHeader(&out, HeaderOriginalTopic, msg.Topic)
	SetHeader(&out, HeaderOriginalPartition, strconv.Itoa(msg.Partition))
	SetHeader(&out, HeaderOriginalOffset, strconv.FormatInt(msg.Offset, 10))
	SetHeader(&out, HeaderOriginalGroup, dl.GroupID)
	SetHeader(&out, HeaderAttempts, strconv.Itoa(dl.Attempts))
	SetHeader(&out, HeaderDeadLetteredAt, time.Now().UTC().Format(time.RFC3339Nano))
	if dl.Cause != nil {
		SetHeader(&out, HeaderExceptionMessage, dl.Cause.Error())
	}

	ctx, span := producerTracer.Start(ctx, "send "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	if err := p.writer.WriteMessages(ctx, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (p *DeadLetterProducer) Close() error {
	return p.writer.Close()
}
