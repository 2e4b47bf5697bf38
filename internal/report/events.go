// Package report writes a JSONL audit trail of reconciliation events.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventDiscover  EventType = "discover"
	EventBaseline  EventType = "baseline"
	EventResolve   EventType = "resolve"
	EventReconcile EventType = "reconcile"
	EventRetry     EventType = "retry"
	EventAbandon   EventType = "abandon"
	EventCycle     EventType = "cycle"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the reconciliation pipeline
type Event struct {
	Timestamp        time.Time         `json:"ts"`
	Level            EventLevel        `json:"level"`
	Event            EventType         `json:"event"`
	ItemKey          string            `json:"item_key,omitempty"`
	Artist           string            `json:"artist,omitempty"`
	Album            string            `json:"album,omitempty"`
	ArtistMBID       string            `json:"artist_mbid,omitempty"`
	ReleaseGroupMBID string            `json:"release_group_mbid,omitempty"`
	Outcome          string            `json:"outcome,omitempty"`
	Score            int               `json:"score,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	Error            string            `json:"error,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("reconcile-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogDiscover logs a newly discovered item
func (l *EventLogger) LogDiscover(itemKey, artist, album string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventDiscover,
		ItemKey: itemKey,
		Artist:  artist,
		Album:   album,
	})
}

// LogBaseline logs an item absorbed during the first-ever scan
func (l *EventLogger) LogBaseline(itemKey, artist, album string) error {
	return l.Log(&Event{
		Level:   LevelDebug,
		Event:   EventBaseline,
		ItemKey: itemKey,
		Artist:  artist,
		Album:   album,
	})
}

// LogResolve logs the outcome of an identity resolution attempt
func (l *EventLogger) LogResolve(itemKey, artistMBID, rgMBID string, score int, found bool) error {
	outcome := "not_found"
	if found {
		outcome = "resolved"
	}

	return l.Log(&Event{
		Level:            LevelInfo,
		Event:            EventResolve,
		ItemKey:          itemKey,
		ArtistMBID:       artistMBID,
		ReleaseGroupMBID: rgMBID,
		Score:            score,
		Outcome:          outcome,
	})
}

// LogReconcile logs the outcome of a target reconciliation attempt
func (l *EventLogger) LogReconcile(itemKey, outcome string, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:   level,
		Event:   EventReconcile,
		ItemKey: itemKey,
		Outcome: outcome,
		Error:   errMsg,
	})
}

// LogRetry logs a retry attempt for a pending item
func (l *EventLogger) LogRetry(itemKey string, daysSinceLast float64) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventRetry,
		ItemKey: itemKey,
		Extra: map[string]string{
			"days_since_last": fmt.Sprintf("%.1f", daysSinceLast),
		},
	})
}

// LogAbandon logs an item marked as never-retry after an unrecoverable error
func (l *EventLogger) LogAbandon(itemKey, reason string) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventAbandon,
		ItemKey: itemKey,
		Reason:  reason,
	})
}

// LogCycle logs an end-of-cycle summary
func (l *EventLogger) LogCycle(discovered, baseline, synced, pending, retried int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventCycle,
		Extra: map[string]string{
			"discovered": fmt.Sprintf("%d", discovered),
			"baseline":   fmt.Sprintf("%d", baseline),
			"synced":     fmt.Sprintf("%d", synced),
			"pending":    fmt.Sprintf("%d", pending),
			"retried":    fmt.Sprintf("%d", retried),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, itemKey string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		ItemKey: itemKey,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
