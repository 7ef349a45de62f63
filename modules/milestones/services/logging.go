package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/pkg/constants"
)

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

// logWithFields is a no-op when ctx carries no logger, so services stay quiet in tests.
func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}
