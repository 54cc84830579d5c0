package providers

import (
	"context"
	"time"

	"github.com/fitstack/coach/internal/observability"
)

// BaseProvider carries the retry policy and the instrumentation shared by
// the vendor adapters. Always build it with NewBaseProvider; the zero value
// has no retry budget.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
	metrics    *observability.Metrics
}

// NewBaseProvider creates a base provider with sane defaults.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Name returns the provider name.
func (b *BaseProvider) Name() string {
	return b.name
}

// observe records one finished API call against the LLM request metrics.
// No-op when metrics are not wired.
func (b *BaseProvider) observe(model string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	b.metrics.LLMRequestDuration.WithLabelValues(b.name, model).Observe(time.Since(start).Seconds())
	b.metrics.LLMRequestCounter.WithLabelValues(b.name, model, status).Inc()
}

// Retry runs op up to maxRetries times, sleeping attempt*retryDelay between
// tries while isRetryable approves the error. Context cancellation wins over
// both the op and the wait.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if cause := ctx.Err(); cause != nil {
			return cause
		}
		err = op()
		if err == nil {
			return nil
		}
		if isRetryable == nil || !isRetryable(err) || attempt >= b.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay * time.Duration(attempt)):
		}
	}
}
