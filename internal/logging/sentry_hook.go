package logging

import (
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// SentryHook forwards logrus entries of the configured levels to Sentry.
type SentryHook struct {
	levels []logrus.Level
}

func NewSentryHook(levels []logrus.Level) *SentryHook {
	return &SentryHook{levels: levels}
}

func (h *SentryHook) Levels() []logrus.Level {
	return h.levels
}

func (h *SentryHook) Fire(entry *logrus.Entry) error {
	event := sentry.NewEvent()
	event.Message = entry.Message
	event.Level = sentryLevel(entry.Level)
	event.Timestamp = entry.Time
	for key, value := range entry.Data {
		event.Extra[key] = value
	}

	sentry.CaptureEvent(event)
	return nil
}

func sentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.DebugLevel, logrus.TraceLevel:
		return sentry.LevelDebug
	default:
		return sentry.LevelInfo
	}
}
