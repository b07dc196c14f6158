package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ReaderFactory opens a reader joined to groupID on topic.
type ReaderFactory func(topic, groupID string) MessageReader

type RunOptions struct {
	NewReader   ReaderFactory
	DeadLetters *DeadLetterProducer
	Policy      RetryPolicy
	// Workers is the number of readers per listener. Readers of one group
	// split the topic's partitions between them.
	Workers int
	Logger  *slog.Logger
}

// Run starts every registered listener and blocks until ctx is cancelled or
// one consumer fails, in which case the others are stopped too.
func (r *Registry) Run(ctx context.Context, opts RunOptions) error {
	listeners := r.Listeners()
	if len(listeners) == 0 {
		return fmt.Errorf("run consumers: no listeners registered")
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		for worker := 0; worker < workers; worker++ {
			consumer := NewConsumer(opts.NewReader(l.Topic, l.GroupID), opts.DeadLetters, l, opts.Policy, logger.With("worker", worker))

			g.Go(func() error {
				defer func() { _ = consumer.Close() }()

				logger.Info("consumer started", "topic", l.Topic, "group_id", l.GroupID, "worker", worker)
				err := consumer.Consume(ctx)
				if IsShutdown(err) && ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("consumer %s/%s: %w", l.Topic, l.GroupID, err)
			})
		}
	}

	return g.Wait()
}
