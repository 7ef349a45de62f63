package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, or the standard logger when none is set.
func UseLogger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		switch typed := ctx.Value(constants.LoggerKey).(type) {
		case *logrus.Entry:
			return typed
		case *logrus.Logger:
			return logrus.NewEntry(typed)
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

// UseRequestID returns the id assigned by the logging middleware, or "".
func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.RequestIDKey).(string)
	return id
}
