package goSession

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// AuditEvent is one security-relevant Engine event. Tokens are never included.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    int64             `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// attrs flattens the event for structured logging. Metadata keys are sorted
// and prefixed with "meta.".
func (ev AuditEvent) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 6+len(ev.Metadata))
	out = append(out,
		slog.String("id", ev.ID),
		slog.String("event", ev.EventType),
		slog.Bool("success", ev.Success),
	)
	if ev.UserID != 0 {
		out = append(out, slog.Int64("user_id", ev.UserID))
	}
	for _, kv := range [...][2]string{{"username", ev.Username}, {"ip", ev.IP}, {"error", ev.Error}} {
		if kv[1] != "" {
			out = append(out, slog.String(kv[0], kv[1]))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(ev.Metadata)) {
		out = append(out, slog.String("meta."+k, ev.Metadata[k]))
	}
	return out
}

// AuditSink receives events from the dispatcher goroutine, one at a time.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

// Emit calls f.
func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit discards event.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel. Emit blocks while the
// channel is full unless ctx ends first.
type ChannelSink struct {
	ch chan AuditEvent
}

// NewChannelSink returns a ChannelSink buffering up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan AuditEvent, max(buffer, 1))}
}

// Emit sends event to the channel.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

// Events is the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent { return s.ch }

// JSONWriterSink writes events as JSON lines. Encoding errors drop the event.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink writes to w. A nil w discards events.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

// Emit writes event as one JSON line.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// SlogSink logs events with component=audit: INFO for successes, WARN for failures.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink logs through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

// Emit logs event at INFO or WARN.
func (s *SlogSink) Emit(ctx context.Context, event AuditEvent) {
	level := slog.LevelWarn
	if event.Success {
		level = slog.LevelInfo
	}
	s.logger.LogAttrs(ctx, level, "audit event", event.attrs()...)
}
