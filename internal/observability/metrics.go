package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	ItemsIngested  int            `json:"items_ingested"`
	ItemsArchived  int            `json:"items_archived"`
	AutoSent       int            `json:"auto_sent"`
	PlansCreated   int            `json:"plans_created"`
	PlansExecuted  int            `json:"plans_executed"`
	PlansRejected  int            `json:"plans_rejected"`
	WorkerRestarts int            `json:"worker_restarts"`
	AlertsRaised   int            `json:"alerts_raised"`
	ByCategory     map[string]int `json:"by_category"`
	BySource       map[string]int `json:"by_source"`
	EventCount     int            `json:"event_count"`
	OldestEvent    *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent    *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ByCategory: make(map[string]int),
		BySource:   make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "item.ingested":
			m.ItemsIngested++
			if category, ok := event.Data["category"].(string); ok {
				m.ByCategory[category]++
			}
			if source, ok := event.Data["source"].(string); ok {
				m.BySource[source]++
			}
		case "item.archived":
			m.ItemsArchived++
		case "item.auto_sent":
			m.AutoSent++
		case "plan.created":
			m.PlansCreated++
		case "plan.executed":
			m.PlansExecuted++
		case "plan.rejected_noted":
			m.PlansRejected++
		case "worker.restart_sanctioned":
			m.WorkerRestarts++
		case "alert.raised":
			m.AlertsRaised++
		}
	}

	return m, nil
}
