package marketauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/logging"
)

// AuditEvent is one security-relevant engine outcome. It never carries
// passwords, tokens or raw emails.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Kind      account.Kind      `json:"kind"`
	AccountID string            `json:"account_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LoggerSink forwards events to a structured logger at info level, or warn
// for failures.
type LoggerSink struct {
	log logging.Logger
}

func NewLoggerSink(log logging.Logger) *LoggerSink {
	if log == nil {
		log = logging.Nop()
	}
	return &LoggerSink{log: log.With("component", "audit")}
}

func (s *LoggerSink) Emit(ctx context.Context, event AuditEvent) {
	args := []any{
		"event_id", event.ID,
		"event", event.EventType,
		"kind", string(event.Kind),
		"success", event.Success,
	}
	if event.AccountID != "" {
		args = append(args, "account_id", event.AccountID)
	}
	if event.SessionID != "" {
		args = append(args, "session_id", event.SessionID)
	}
	if event.IP != "" {
		args = append(args, "ip", event.IP)
	}
	if event.Error != "" {
		args = append(args, "error", event.Error)
	}
	for k, v := range event.Metadata {
		args = append(args, "meta."+k, v)
	}
	if event.Success {
		s.log.Info(ctx, "audit", args...)
		return
	}
	s.log.Warn(ctx, "audit", args...)
}
