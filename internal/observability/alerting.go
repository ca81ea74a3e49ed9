package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	PendingPlanHours   int `yaml:"pending_plan_hours" json:"pending_plan_hours"`
	FailureStreak      int `yaml:"failure_streak" json:"failure_streak"`
	ErrorWindowMinutes int `yaml:"error_window_minutes" json:"error_window_minutes"`
	MaxErrorsPerWindow int `yaml:"max_errors_per_window" json:"max_errors_per_window"`
	MaxOpenPlans       int `yaml:"max_open_plans" json:"max_open_plans"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		PendingPlanHours:   24,
		FailureStreak:      3,
		ErrorWindowMinutes: 60,
		MaxErrorsPerWindow: 10,
		MaxOpenPlans:       10,
	}
}

// AlertEngine evaluates alert conditions against the event log and the
// vault's plan folders.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	vault      storage.Vault
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog, vault,
// and thresholds.
func NewAlertEngine(eventLog EventLog, vault storage.Vault, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		vault:      vault,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate checks all alert conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	var alerts []Alert

	planAlerts, err := ae.checkStalePlans(now)
	if err != nil {
		return nil, fmt.Errorf("checking stale plans: %w", err)
	}
	alerts = append(alerts, planAlerts...)

	workerAlerts, err := ae.checkWorkerFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking worker failures: %w", err)
	}
	alerts = append(alerts, workerAlerts...)

	rateAlerts, err := ae.checkErrorRate(now)
	if err != nil {
		return nil, fmt.Errorf("checking error rate: %w", err)
	}
	alerts = append(alerts, rateAlerts...)

	openAlerts, err := ae.checkOpenPlanCount(now)
	if err != nil {
		return nil, fmt.Errorf("checking open plan count: %w", err)
	}
	alerts = append(alerts, openAlerts...)

	return alerts, nil
}

// checkStalePlans looks for plans that have waited for human approval
// longer than the threshold.
func (ae *alertEngine) checkStalePlans(now time.Time) ([]Alert, error) {
	refs, err := ae.vault.List(models.StatePlanPending, "PLAN_*.md")
	if err != nil {
		return nil, err
	}

	threshold := time.Duration(ae.thresholds.PendingPlanHours) * time.Hour
	var alerts []Alert
	for _, ref := range refs {
		meta, _, err := ae.vault.Read(ref)
		if err != nil {
			continue
		}
		created, err := time.Parse(time.RFC3339, meta.Created)
		if err != nil {
			continue
		}
		if now.Sub(created) > threshold {
			planID := strings.TrimSuffix(ref.Name, ".md")
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("pending-plan-%s", planID),
				Condition:   "plan_awaiting_approval",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("plan %s has waited for approval for more than %d hours", planID, ae.thresholds.PendingPlanHours),
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}

// checkWorkerFailures looks for workers with a heartbeat failure streak
// inside the error window.
func (ae *alertEngine) checkWorkerFailures(now time.Time) ([]Alert, error) {
	since := now.Add(-time.Duration(ae.thresholds.ErrorWindowMinutes) * time.Minute)
	events, err := ae.eventLog.Read(EventFilter{Type: "worker.heartbeat_failed", Since: &since})
	if err != nil {
		return nil, err
	}

	failures := make(map[string]int)
	for _, event := range events {
		if worker, ok := event.Data["worker"].(string); ok && worker != "" {
			failures[worker]++
		}
	}

	var alerts []Alert
	for worker, count := range failures {
		if count >= ae.thresholds.FailureStreak {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("worker-failures-%s", worker),
				Condition:   "worker_failing",
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("worker %s failed %d heartbeats in the last %d minutes", worker, count, ae.thresholds.ErrorWindowMinutes),
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}

// checkErrorRate counts all heartbeat failures across workers inside the
// error window.
func (ae *alertEngine) checkErrorRate(now time.Time) ([]Alert, error) {
	since := now.Add(-time.Duration(ae.thresholds.ErrorWindowMinutes) * time.Minute)
	events, err := ae.eventLog.Read(EventFilter{Type: "worker.heartbeat_failed", Since: &since})
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	if len(events) > ae.thresholds.MaxErrorsPerWindow {
		alerts = append(alerts, Alert{
			ID:          "error-rate",
			Condition:   "error_rate_high",
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("%d heartbeat failures in the last %d minutes, exceeding the maximum of %d", len(events), ae.thresholds.ErrorWindowMinutes, ae.thresholds.MaxErrorsPerWindow),
			TriggeredAt: now,
		})
	}

	return alerts, nil
}

// checkOpenPlanCount counts plans currently waiting for approval and
// alerts when the pile exceeds the threshold.
func (ae *alertEngine) checkOpenPlanCount(now time.Time) ([]Alert, error) {
	refs, err := ae.vault.List(models.StatePlanPending, "PLAN_*.md")
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	if len(refs) > ae.thresholds.MaxOpenPlans {
		alerts = append(alerts, Alert{
			ID:          "open-plans",
			Condition:   "too_many_open_plans",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("%d plans are waiting for approval, exceeding the maximum of %d", len(refs), ae.thresholds.MaxOpenPlans),
			TriggeredAt: now,
		})
	}

	return alerts, nil
}
