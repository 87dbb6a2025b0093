package logging

import (
	"context"
	"log/slog"
)

// Sink consumes structured events.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists or forwards a single event.
	// Implementations should not modify the event.
	Write(event *Event) error

	// Close flushes any buffered data and releases resources.
	Close() error
}

// SlogSink forwards events to a slog.Logger at a fixed level.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewSlogSink(logger *slog.Logger, level slog.Level) *SlogSink {
	return &SlogSink{logger: logger, level: level}
}

func (s *SlogSink) Write(event *Event) error {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.String("run_id", event.RunID),
	}
	if event.StubID != "" {
		attrs = append(attrs, slog.String("stub_id", event.StubID))
	}
	if event.StubName != "" {
		attrs = append(attrs, slog.String("stub_name", event.StubName))
	}
	if len(event.Data) > 0 {
		attrs = append(attrs, slog.String("data", string(event.Data)))
	}
	s.logger.LogAttrs(context.Background(), s.level, event.Summary, attrs...)
	return nil
}

func (s *SlogSink) Close() error { return nil }
