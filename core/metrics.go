package core

import (
	"context"
	"fmt"
	"strings"
)

const metricPrefix = "roundup."

// Operation status tag values.
const (
	StatusSuccess = "success"
	StatusNoop    = "noop"
	StatusFailure = "failure"
)

// OperationCounterName is the counter bumped once per service operation call.
func OperationCounterName(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".total"
}

// OperationDurationName is the histogram of operation latency in milliseconds.
func OperationDurationName(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".duration_ms"
}

// operationTags keeps the tag set small: operation and status always, the
// abort reason and error text code only when present.
func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"reason", "error_code"} {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

// NopMetricsRecorder drops every observation.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
