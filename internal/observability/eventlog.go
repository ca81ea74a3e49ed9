package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one line in the engine's append-only event stream. Everything
// the alert engine and the metrics calculator know comes from here.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "item.ingested", "plan.executed"
	Message string         `json:"msg,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter selects events on Read. The zero filter matches everything.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
}

func (f EventFilter) matches(e Event) bool {
	if f.Since != nil && e.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	return true
}

// EventLog defines the interface for writing and reading events.
// LogEvent is the convenience entry the engine loops use; it stamps the
// current time and derives the level from the event type.
type EventLog interface {
	Write(event Event) error
	LogEvent(eventType string, data map[string]any) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// Lines longer than this are skipped on read rather than breaking the scan.
const maxEventLine = 1 << 20

// jsonlLog appends events to a JSONL file, one JSON object per line.
// Writes are unbuffered so a crash loses at most the line being written.
type jsonlLog struct {
	path string
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
	now  func() time.Time
}

// NewJSONLEventLog creates a new EventLog backed by a JSONL file at the given path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlLog{
		path: path,
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

// Write appends the event to the log file.
func (l *jsonlLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// LogEvent appends an event of the given type carrying data.
func (l *jsonlLog) LogEvent(eventType string, data map[string]any) error {
	return l.Write(Event{
		Time:  l.now().UTC(),
		Level: eventLevel(eventType),
		Type:  eventType,
		Data:  data,
	})
}

// Read scans the log from the start and returns the events matching the
// filter, oldest first. Malformed lines are skipped, not fatal: a partial
// line from a crashed writer must not take the whole history with it.
func (l *jsonlLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// eventLevel maps an event type to its log level. Supervision trouble is
// WARN, raised alerts are ERROR, everything else is routine INFO.
func eventLevel(eventType string) string {
	switch eventType {
	case "worker.heartbeat_failed", "worker.restart_sanctioned":
		return "WARN"
	case "alert.raised":
		return "ERROR"
	}
	return "INFO"
}
