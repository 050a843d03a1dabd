package core

import (
	"context"
	"fmt"
	"strings"
)

// Metric names are fediauth.<operation>.total and
// fediauth.<operation>.duration_ms.
const (
	metricNamespace      = "fediauth"
	metricSuffixTotal    = "total"
	metricSuffixDuration = "duration_ms"
)

var metricTagFields = []string{"host", "endpoint"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func metricName(operation string, suffix string) string {
	return metricNamespace + "." + operation + "." + suffix
}

// metricTags keeps tag cardinality bounded: operation, status and the
// host/endpoint pair, nothing else.
func metricTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagFields {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if rendered := strings.TrimSpace(fmt.Sprint(value)); rendered != "" {
			tags[key] = rendered
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for key, value := range tags {
		out[key] = value
	}
	return out
}
