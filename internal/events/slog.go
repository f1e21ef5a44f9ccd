package events

import (
	"context"
	"log/slog"
	"sort"
)

// SlogSink records events on a slog logger.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a sink logging to log, or to slog.Default when nil.
func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

// Emit logs the event with its properties as attributes.
// The log level follows the event name: errors at Error, skips at Warn, the rest at Info.
func (s *SlogSink) Emit(ctx context.Context, event string, props map[string]string) {
	attrs := make([]slog.Attr, 0, len(props)+1)
	attrs = append(attrs, slog.String("event", event))

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, props[k]))
	}

	s.log.LogAttrs(ctx, level(event), event, attrs...)
}

func level(event string) slog.Level {
	switch event {
	case BlobProcessingError, BlobProcessingFail, GeneralError:
		return slog.LevelError
	case SplitQuoteSkipped, ExtractSkipped:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Multi fans an event out to several sinks.
type Multi []Sink

// Emit sends the event to every sink in order.
func (m Multi) Emit(ctx context.Context, event string, props map[string]string) {
	for _, s := range m {
		s.Emit(ctx, event, props)
	}
}
