// Package trace collects structured run events for draft generation and
// persists them as JSON and CSV run artifacts. Trace recording must never
// interfere with the main run flow.
package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one structured trace record.
type Event struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	SectionID string    `json:"section_id,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Duration  int64     `json:"duration_ms,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Collector gathers events in order. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
	next   int
	log    *zap.Logger
}

// NewCollector builds a collector that mirrors events to the given logger.
// A nil logger disables mirroring.
func NewCollector(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{next: 1, log: log}
}

// Record appends an event, stamping sequence and timestamp.
func (c *Collector) Record(ev Event) {
	c.mu.Lock()
	ev.Seq = c.next
	ev.Timestamp = time.Now().UTC()
	c.next++
	c.events = append(c.events, ev)
	c.mu.Unlock()

	c.log.Info("trace",
		zap.Int("seq", ev.Seq),
		zap.String("component", ev.Component),
		zap.String("action", ev.Action),
		zap.String("status", ev.Status),
		zap.String("section_id", ev.SectionID),
		zap.Int("attempt", ev.Attempt),
		zap.Int64("duration_ms", ev.Duration),
	)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// WriteJSON persists the events as an indented JSON array.
func (c *Collector) WriteJSON(path string) error {
	payload, err := json.MarshalIndent(c.Events(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// WriteCSV persists the events as CSV rows with a header.
func (c *Collector) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"seq", "timestamp", "component", "action", "status", "section_id", "attempt", "duration_ms", "details",
	}); err != nil {
		return fmt.Errorf("write trace header: %w", err)
	}
	for _, ev := range c.Events() {
		row := []string{
			strconv.Itoa(ev.Seq),
			ev.Timestamp.Format(time.RFC3339),
			ev.Component,
			ev.Action,
			ev.Status,
			ev.SectionID,
			strconv.Itoa(ev.Attempt),
			strconv.FormatInt(ev.Duration, 10),
			ev.Details,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write trace row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
