package telemetry

import (
	"fmt"
	"strings"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// SentryCore implements zapcore.Core to forward error entries to Sentry.
type SentryCore struct {
	zapcore.LevelEnabler
}

// NewSentryCore creates a Core that forwards errors to Sentry.
func NewSentryCore(enab zapcore.LevelEnabler) *SentryCore {
	return &SentryCore{LevelEnabler: enab}
}

// With adds structured context to the Core.
func (c *SentryCore) With(_ []zapcore.Field) zapcore.Core {
	return c
}

// Check determines whether the supplied Entry should be logged.
func (c *SentryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write forwards error and fatal level entries to Sentry.
func (c *SentryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if ent.Level < zapcore.ErrorLevel || sentry.CurrentHub().Client() == nil {
		return nil
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		enc := zapcore.NewMapObjectEncoder()

		var errorValues []string

		for i := range fields {
			if fields[i].Type == zapcore.ErrorType {
				if err, ok := fields[i].Interface.(error); ok {
					errorValues = append(errorValues, err.Error())
				}
			}

			fields[i].AddTo(enc)
		}

		for k, v := range enc.Fields {
			if k != "error" {
				scope.SetExtra(k, v)
			}
		}

		level := sentry.LevelError
		if ent.Level > zapcore.ErrorLevel {
			level = sentry.LevelFatal
		}

		scope.SetLevel(level)

		exceptionValue := ent.Message
		if len(errorValues) > 0 {
			exceptionValue = fmt.Sprintf("%s: %s", ent.Message, strings.Join(errorValues, "; "))
		}

		event := sentry.NewEvent()
		event.Level = level
		event.Message = ent.Message
		event.Exception = []sentry.Exception{{
			Value:      exceptionValue,
			Type:       ent.Caller.Function,
			Stacktrace: sentry.NewStacktrace(),
		}}

		sentry.CaptureEvent(event)
	})

	return nil
}

// Sync implements zapcore.Core.
func (c *SentryCore) Sync() error {
	return nil
}
