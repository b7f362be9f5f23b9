// Package report captures errors from background work that has no caller to
// return them to. A Reporter logs at error level, which the telemetry Sentry
// core forwards, and tags the operation for triage.
package report

import (
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// Reporter forwards captured errors to the error sink.
type Reporter interface {
	// Report captures an error with an operation tag. Safe to call with nil.
	Report(op string, err error)
}

// SentryReporter reports errors to Sentry and the application log.
type SentryReporter struct {
	logger *zap.Logger
}

// NewSentryReporter creates a reporter backed by the global Sentry hub.
func NewSentryReporter(logger *zap.Logger) *SentryReporter {
	return &SentryReporter{logger: logger.Named("report")}
}

// Report captures an error with an operation tag.
func (r *SentryReporter) Report(op string, err error) {
	if err == nil {
		return
	}

	if sentry.CurrentHub().Client() != nil {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("operation", op)
			sentry.CaptureException(err)
		})
	}

	r.logger.Error("Captured background error", zap.String("operation", op), zap.Error(err))
}
