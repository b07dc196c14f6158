package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/joao-fontenele/product-service/internal/domain"
)

// HandlerFunc processes one decoded envelope. A returned error is retried
// unless it is wrapped with Permanent.
type HandlerFunc[T any] func(ctx context.Context, env domain.Envelope[T]) error

// DeadLetterFunc observes an envelope that exhausted its attempts. It has no
// return value: it runs after the message is already on the dead-letter
// topic and cannot change the outcome.
type DeadLetterFunc[T any] func(ctx context.Context, env domain.Envelope[T], cause error)

// Listener is a type-erased registration for one (topic, consumer group).
type Listener struct {
	Topic   string
	GroupID string

	handle     func(ctx context.Context, value []byte) error
	deadLetter func(ctx context.Context, value []byte, cause error) error
}

func (l Listener) key() string {
	return l.Topic + "|" + l.GroupID
}

// Registry maps (topic, consumer group) to its handlers. It is filled once
// at start-up before Run.
type Registry struct {
	listeners map[string]Listener
}

func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string]Listener)}
}

// Register binds handler and deadLetter to envelopes of payload type T on
// topic for groupID.
func Register[T any](r *Registry, topic, groupID string, handler HandlerFunc[T], deadLetter DeadLetterFunc[T]) error {
	if topic == "" || groupID == "" {
		return fmt.Errorf("register listener: topic and group id are required")
	}
	if handler == nil {
		return fmt.Errorf("register listener %s/%s: handler is required", topic, groupID)
	}

	l := Listener{
		Topic:   topic,
		GroupID: groupID,
		handle: func(ctx context.Context, value []byte) error {
			env, err := decodeEnvelope[T](value)
			if err != nil {
				return Permanent(err)
			}
			return handler(ctx, env)
		},
		deadLetter: func(ctx context.Context, value []byte, cause error) error {
			if deadLetter == nil {
				return nil
			}
			env, err := decodeEnvelope[T](value)
			if err != nil {
				return err
			}
			deadLetter(ctx, env, cause)
			return nil
		},
	}

	if _, exists := r.listeners[l.key()]; exists {
		return fmt.Errorf("register listener %s/%s: already registered", topic, groupID)
	}
	r.listeners[l.key()] = l
	return nil
}

// Listeners returns the registrations ordered by topic then group.
func (r *Registry) Listeners() []Listener {
	out := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].GroupID < out[j].GroupID
	})
	return out
}

func decodeEnvelope[T any](value []byte) (domain.Envelope[T], error) {
	var env domain.Envelope[T]
	if err := json.Unmarshal(value, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
