package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeStore represents an object upload (encrypt and write).
	EventTypeStore EventType = "store"
	// EventTypeRead represents an object read (full or ranged decrypt).
	EventTypeRead EventType = "read"
	// EventTypeDelete represents an object deletion.
	EventTypeDelete EventType = "delete"
	// EventTypeAccess represents any other access operation.
	EventTypeAccess EventType = "access"
)

// Event represents a single audit log event.
type Event struct {
	Timestamp      time.Time     `json:"timestamp"`
	EventType      EventType     `json:"event_type"`
	Operation      string        `json:"operation"`
	Key            string        `json:"key,omitempty"`
	Transformation string        `json:"transformation,omitempty"`
	RangeStart     int64         `json:"range_start,omitempty"`
	RangeLength    int64         `json:"range_length,omitempty"`
	ClientIP       string        `json:"client_ip,omitempty"`
	RequestID      string        `json:"request_id,omitempty"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
}

// Logger records audit events in a bounded in-memory buffer and forwards
// them to an EventWriter.
type Logger interface {
	Log(event *Event) error
	LogStore(key, transformation string, size int64, success bool, err error, duration time.Duration)
	LogRead(key, transformation string, rangeStart, rangeLength int64, success bool, err error, duration time.Duration)
	LogDelete(key string, success bool, err error, duration time.Duration)
	LogAccess(operation, key string, success bool, err error, duration time.Duration)
	Events() []*Event
}

// EventWriter is an interface for writing audit events.
type EventWriter interface {
	WriteEvent(event *Event) error
}

type auditLogger struct {
	mu        sync.Mutex
	events    []*Event
	maxEvents int
	writer    EventWriter
}

// NewLogger creates a new audit logger keeping at most maxEvents events in
// memory. A nil writer emits JSON lines to stdout.
func NewLogger(maxEvents int, writer EventWriter) Logger {
	if writer == nil {
		writer = &jsonWriter{out: os.Stdout}
	}
	return &auditLogger{
		events:    make([]*Event, 0, maxEvents),
		maxEvents: maxEvents,
		writer:    writer,
	}
}

// Log records the event, evicting the oldest entries past the buffer limit.
func (l *auditLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer != nil {
		// Writer failures must not block request handling.
		_ = l.writer.WriteEvent(event)
	}

	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}
	return nil
}

func (l *auditLogger) LogStore(key, transformation string, size int64, success bool, err error, duration time.Duration) {
	event := &Event{
		Timestamp:      time.Now(),
		EventType:      EventTypeStore,
		Operation:      "store",
		Key:            key,
		Transformation: transformation,
		RangeLength:    size,
		Success:        success,
		Duration:       duration,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

func (l *auditLogger) LogRead(key, transformation string, rangeStart, rangeLength int64, success bool, err error, duration time.Duration) {
	event := &Event{
		Timestamp:      time.Now(),
		EventType:      EventTypeRead,
		Operation:      "read",
		Key:            key,
		Transformation: transformation,
		RangeStart:     rangeStart,
		RangeLength:    rangeLength,
		Success:        success,
		Duration:       duration,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

func (l *auditLogger) LogDelete(key string, success bool, err error, duration time.Duration) {
	event := &Event{
		Timestamp: time.Now(),
		EventType: EventTypeDelete,
		Operation: "delete",
		Key:       key,
		Success:   success,
		Duration:  duration,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogAccess records a metadata-only operation such as a HEAD or a listing.
func (l *auditLogger) LogAccess(operation, key string, success bool, err error, duration time.Duration) {
	event := &Event{
		Timestamp: time.Now(),
		EventType: EventTypeAccess,
		Operation: operation,
		Key:       key,
		Success:   success,
		Duration:  duration,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// Events returns a copy of the buffered events, oldest first.
func (l *auditLogger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)
	return events
}

// jsonWriter writes events as JSON lines.
type jsonWriter struct {
	out io.Writer
}

func (w *jsonWriter) WriteEvent(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w.out, "%s\n", data)
	return err
}
