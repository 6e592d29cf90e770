package llm

import "context"

// retryOnce runs fn and, on failure, tries exactly one more time unless the
// context has already been cancelled. Model calls are expensive; one retry
// covers the common transient failure (truncated JSON, flaky 5xx) without
// multiplying latency.
func retryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	return fn()
}
