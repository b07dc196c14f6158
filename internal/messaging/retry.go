package messaging

import (
	"context"
	"math"
	"time"
)

const DeadLetterSuffix = ".DLT"

// RetryPolicy bounds how many times a message is handed to its handler and
// how long the consumer waits between attempts.
type RetryPolicy struct {
	Attempts       int
	Delay          time.Duration
	Multiplier     float64
	HandlerTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		Delay:          3 * time.Second,
		Multiplier:     2.0,
		HandlerTimeout: 10 * time.Second,
	}
}

// Backoff returns the wait before the attempt following the given failed
// attempt: Delay * Multiplier^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	return time.Duration(float64(p.Delay) * math.Pow(multiplier, float64(attempt-1)))
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	return p
}

func DeadLetterTopic(topic string) string {
	return topic + DeadLetterSuffix
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
