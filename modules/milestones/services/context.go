package services

import "context"

type skipOutboxEnqueueKey struct{}

// WithSkipOutboxEnqueue suppresses domain events for mutations run with ctx,
// e.g. bulk backfills from the CLI.
func WithSkipOutboxEnqueue(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipOutboxEnqueueKey{}, true)
}

func shouldSkipOutboxEnqueue(ctx context.Context) bool {
	skip, _ := ctx.Value(skipOutboxEnqueueKey{}).(bool)
	return skip
}

type txRunner func(ctx context.Context, fn func(context.Context) error) error
