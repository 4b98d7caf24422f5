package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// metricTagKeys are the operation fields promoted to metric tags. Each has a
// small fixed value set; credential_key and user_id stay in log fields only.
var metricTagKeys = []string{"provider", "text_code", "refresh_outcome"}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
	levelError
)

// operationEvent is one finished broker operation as seen by logs and
// metrics.
type operationEvent struct {
	name     string
	failed   bool
	duration time.Duration
	fields   map[string]any
}

func newOperationEvent(operation string, duration time.Duration, err error, fields map[string]any) operationEvent {
	name := normalizeOperation(operation)
	if name == "" {
		name = "unknown"
	}
	logged := RedactSensitiveMap(fields)
	if err != nil {
		logged["error"] = err.Error()
		if code := errorTextCode(err); code != "" {
			logged["text_code"] = code
		}
	}
	return operationEvent{name: name, failed: err != nil, duration: duration, fields: logged}
}

func (e operationEvent) status() string {
	if e.failed {
		return "failure"
	}
	return "success"
}

func (e operationEvent) tags() map[string]string {
	tags := map[string]string{"operation": e.name, "status": e.status()}
	for _, key := range metricTagKeys {
		if value, ok := e.fields[key]; ok && value != nil {
			if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
				tags[key] = text
			}
		}
	}
	return tags
}

func (e operationEvent) logFields() map[string]any {
	fields := cloneFields(e.fields)
	fields["event_type"] = e.name
	fields["status"] = e.status()
	fields["duration_ms"] = e.duration.Milliseconds()
	return fields
}

// observeOperation logs the outcome of an operation and records its counter
// and duration histogram. It is called from a deferred closure so fields set
// late in the operation, such as refresh_outcome, are included.
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
	event := newOperationEvent(operation, s.now().Sub(startedAt), err, fields)
	tags := event.tags()
	s.recordCounter(ctx, "integrations."+event.name+".total", 1, tags)
	s.recordHistogram(ctx, "integrations."+event.name+".duration_ms", float64(event.duration.Milliseconds()), tags)

	if event.failed {
		s.logError(ctx, event.name+" failed", event.logFields())
		return
	}
	s.logInfo(ctx, event.name+" succeeded", event.logFields())
}

func errorTextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.log(ctx, levelInfo, message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.log(ctx, levelWarn, message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.log(ctx, levelError, message, fields)
}

// log prefers structured fields when the logger supports them and otherwise
// passes the fields as sorted key/value args.
func (s *Service) log(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

// normalizeOperation lowercases and snake-cases an operation name.
func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
}
