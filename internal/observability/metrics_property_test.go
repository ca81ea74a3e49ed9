package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Property 10: Metrics Match The Event Log
// =============================================================================

// Feature: comms-triage, Property 10: Metrics Match The Event Log
// *For any* mix of engine events written to an event log, the
// MetricsCalculator SHALL report each counter equal to the number of
// events of its type, and EventCount equal to the total.
func TestProperty10_MetricsMatchTheEventLog(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		el, err := NewJSONLEventLog(filepath.Join(dir, "events.jsonl"))
		if err != nil {
			t.Fatalf("creating event log: %v", err)
		}
		defer el.Close()

		eventTypes := []string{
			"item.ingested",
			"item.archived",
			"item.auto_sent",
			"plan.created",
			"plan.executed",
			"plan.rejected_noted",
			"worker.restart_sanctioned",
			"alert.raised",
			"loop.cycle_completed",
		}
		categories := []string{"meeting", "finance", "technical", "personal", "action_required", "other"}
		sources := []string{"email", "chat"}

		numEvents := rapid.IntRange(1, 30).Draw(rt, "numEvents")
		baseTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

		written := make(map[string]int)
		for i := 0; i < numEvents; i++ {
			eventType := rapid.SampledFrom(eventTypes).Draw(rt, fmt.Sprintf("eventType_%d", i))
			written[eventType]++

			data := map[string]any{}
			if eventType == "item.ingested" {
				data["category"] = rapid.SampledFrom(categories).Draw(rt, fmt.Sprintf("category_%d", i))
				data["source"] = rapid.SampledFrom(sources).Draw(rt, fmt.Sprintf("source_%d", i))
			}

			event := Event{
				Time:  baseTime.Add(time.Duration(i) * time.Minute),
				Level: "INFO",
				Type:  eventType,
				Data:  data,
			}
			if err := el.Write(event); err != nil {
				t.Fatalf("writing event: %v", err)
			}
		}

		calc := NewMetricsCalculator(el)
		metrics, err := calc.Calculate(baseTime.Add(-time.Hour))
		if err != nil {
			t.Fatalf("calculating metrics: %v", err)
		}

		if metrics.EventCount != numEvents {
			rt.Errorf("EventCount = %d, want %d", metrics.EventCount, numEvents)
		}
		if metrics.ItemsIngested != written["item.ingested"] {
			rt.Errorf("ItemsIngested = %d, want %d", metrics.ItemsIngested, written["item.ingested"])
		}
		if metrics.ItemsArchived != written["item.archived"] {
			rt.Errorf("ItemsArchived = %d, want %d", metrics.ItemsArchived, written["item.archived"])
		}
		if metrics.AutoSent != written["item.auto_sent"] {
			rt.Errorf("AutoSent = %d, want %d", metrics.AutoSent, written["item.auto_sent"])
		}
		if metrics.PlansCreated != written["plan.created"] {
			rt.Errorf("PlansCreated = %d, want %d", metrics.PlansCreated, written["plan.created"])
		}
		if metrics.PlansExecuted != written["plan.executed"] {
			rt.Errorf("PlansExecuted = %d, want %d", metrics.PlansExecuted, written["plan.executed"])
		}
		if metrics.PlansRejected != written["plan.rejected_noted"] {
			rt.Errorf("PlansRejected = %d, want %d", metrics.PlansRejected, written["plan.rejected_noted"])
		}
		if metrics.WorkerRestarts != written["worker.restart_sanctioned"] {
			rt.Errorf("WorkerRestarts = %d, want %d", metrics.WorkerRestarts, written["worker.restart_sanctioned"])
		}
		if metrics.AlertsRaised != written["alert.raised"] {
			rt.Errorf("AlertsRaised = %d, want %d", metrics.AlertsRaised, written["alert.raised"])
		}

		// Per-category counts sum back to the ingested total.
		categorySum := 0
		for _, n := range metrics.ByCategory {
			categorySum += n
		}
		if categorySum != written["item.ingested"] {
			rt.Errorf("ByCategory sum = %d, want %d", categorySum, written["item.ingested"])
		}
	})
}
