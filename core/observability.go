package core

import (
	"context"
	"slices"
	"time"
)

const (
	opRegisterApplication  = "register_application"
	opGenerateSession      = "generate_session"
	opWaitForAuthorization = "wait_for_authorization"
	opAccountRequest       = "account_request"
)

type logLevel uint8

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

// operation measures one protocol call. fields is shared with the caller so
// values learned mid-call (fingerprints, attempt counts) reach the final log
// line and metrics.
type operation struct {
	service   *Service
	ctx       context.Context
	name      string
	startedAt time.Time
	fields    map[string]any
}

func (s *Service) startOperation(ctx context.Context, name string, fields map[string]any) *operation {
	if fields == nil {
		fields = map[string]any{}
	}
	return &operation{
		service:   s,
		ctx:       ctx,
		name:      name,
		startedAt: time.Now(),
		fields:    fields,
	}
}

// finish records the outcome as fediauth.<name>.total and .duration_ms, then
// logs it: failures at error, cancellations at warn and successes at info.
func (op *operation) finish(err error) {
	if op == nil || op.service == nil {
		return
	}
	elapsed := time.Since(op.startedAt)
	status := "success"
	level := levelInfo
	message := op.name + " succeeded"
	switch {
	case err == nil:
	case IsCancelled(err):
		status, level, message = "cancelled", levelWarn, op.name+" cancelled"
	default:
		status, level, message = "failure", levelError, op.name+" failed"
	}

	tags := metricTags(op.name, status, op.fields)
	if recorder := op.service.metricsRecorder; recorder != nil {
		recorder.IncCounter(op.ctx, metricName(op.name, metricSuffixTotal), 1, cloneTags(tags))
		recorder.ObserveHistogram(op.ctx, metricName(op.name, metricSuffixDuration), float64(elapsed.Milliseconds()), cloneTags(tags))
	}

	fields := cloneFields(op.fields)
	fields["event_type"] = op.name
	fields["status"] = status
	fields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
	}
	op.service.log(op.ctx, level, message, fields)
}

// log redacts fields before handing them to the logger, both as structured
// fields when supported and as sorted key/value args.
func (s *Service) log(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if withFields, ok := logger.(FieldsLogger); ok {
		logger = withFields.WithFields(cloneFields(fields))
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	switch level {
	case levelDebug:
		logger.Debug(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	case levelError:
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out
}
