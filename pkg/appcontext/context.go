package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	ruleNameKeyId contextId = iota
	fileKeyId
	cycleIdKeyId
	requestIdKeyId
)

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func WithCycleId(ctx context.Context, cycleId string) context.Context {
	return context.WithValue(ctx, cycleIdKeyId, cycleId)
}

func WithRuleName(ctx context.Context, rule string) context.Context {
	return context.WithValue(ctx, ruleNameKeyId, rule)
}

func WithFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, fileKeyId, path)
}

func RequestIdFromContext(ctx context.Context) string {
	requestId, _ := ctx.Value(requestIdKeyId).(string)
	return requestId
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxCycleId, ok := ctx.Value(cycleIdKeyId).(string); ok && ctxCycleId != "" {
		result = result.WithField("cycle_id", ctxCycleId)
	}

	if ctxRuleName, ok := ctx.Value(ruleNameKeyId).(string); ok {
		result = result.WithField("rule", ctxRuleName)
	}

	if ctxFile, ok := ctx.Value(fileKeyId).(string); ok && ctxFile != "" {
		result = result.WithField("file", ctxFile)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
