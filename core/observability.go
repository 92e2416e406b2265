package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	} else if outcome, ok := fields["outcome"].(string); ok && outcome == StatusNoop {
		status = StatusNoop
	}

	elapsed := time.Since(startedAt)
	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			contextFields["error_code"] = richErr.TextCode
			contextFields["error_category"] = fmt.Sprint(richErr.Category)
		}
	}

	s.recordOperation(ctx, operation, elapsed, operationTags(operation, status, contextFields))

	if err != nil {
		logWithLevel(ctx, s.logger, "error", operation+" failed", contextFields)
		return
	}
	logWithLevel(ctx, s.logger, "info", operation+" succeeded", contextFields)
}

// recordOperation emits the per-operation counter and duration histogram.
func (s *Service) recordOperation(ctx context.Context, operation string, elapsed time.Duration, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, OperationCounterName(operation), 1, cloneTags(tags))
	s.metricsRecorder.ObserveHistogram(ctx, OperationDurationName(operation), float64(elapsed.Milliseconds()), cloneTags(tags))
}

func logWithLevel(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	if level == "error" {
		logger.Error(message, args...)
		return
	}
	logger.Info(message, args...)
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
