package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// DocMeta type values for supervisor records.
const (
	docTypeWorkerError = "worker_error"
	docTypeWorkerAlert = "worker_alert"
)

// HealthSupervisor tracks worker heartbeats and decides when a worker gets
// restarted. It never relaunches anything itself: the orchestrator asks
// via CheckAll and carries out sanctioned restarts after their backoff.
//
// A worker degrades on its first failed heartbeat, fails on the third
// consecutive one or when its heartbeat goes stale past three check
// intervals, and recovers through restarts backed off exponentially from
// the configured base. Once the restart budget is spent, or a failure
// streak reaches the alert threshold, a task file asking for human help is
// written once per streak.
type HealthSupervisor interface {
	// Register starts tracking a worker with a fresh heartbeat.
	Register(name string)

	// Heartbeat records the outcome of one worker cycle.
	Heartbeat(name string, healthy bool, cause error)

	// CheckAll scans for stale workers and returns one restart decision
	// per worker that is due one, sanctioned or not.
	CheckAll() []models.RestartDecision

	// Decide returns the restart decision for a single failed worker.
	Decide(name string) models.RestartDecision

	// Report snapshots all tracked workers.
	Report() models.HealthReport
}

type healthSupervisor struct {
	mu      sync.Mutex
	workers map[string]*models.WorkerHealth

	vault          storage.Vault
	events         EventLogger
	checkInterval  time.Duration
	maxRestarts    int
	alertThreshold int
	baseBackoff    time.Duration
	now            func() time.Time
}

// NewHealthSupervisor creates a HealthSupervisor. Zero or negative config
// values fall back to the defaults: 30s checks, 3 restart attempts, alert
// after 5 consecutive failures, 30s base backoff.
func NewHealthSupervisor(vault storage.Vault, events EventLogger, cfg models.HealthConfig) HealthSupervisor {
	if cfg.CheckIntervalSeconds <= 0 {
		cfg.CheckIntervalSeconds = 30
	}
	if cfg.MaxRestartAttempts <= 0 {
		cfg.MaxRestartAttempts = 3
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 5
	}
	if cfg.RecoveryBackoffSeconds <= 0 {
		cfg.RecoveryBackoffSeconds = 30
	}
	return &healthSupervisor{
		workers:        make(map[string]*models.WorkerHealth),
		vault:          vault,
		events:         events,
		checkInterval:  time.Duration(cfg.CheckIntervalSeconds) * time.Second,
		maxRestarts:    cfg.MaxRestartAttempts,
		alertThreshold: cfg.AlertThreshold,
		baseBackoff:    time.Duration(cfg.RecoveryBackoffSeconds) * time.Second,
		now:            time.Now,
	}
}

func (h *healthSupervisor) Register(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.workers[name] = &models.WorkerHealth{
		Name:               name,
		Status:             models.WorkerHealthy,
		LastHeartbeat:      h.now(),
		MaxRestartAttempts: h.maxRestarts,
		BackoffSeconds:     int(h.baseBackoff / time.Second),
	}
}

func (h *healthSupervisor) Heartbeat(name string, healthy bool, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.workers[name]
	if !ok {
		return
	}
	w.LastHeartbeat = h.now()

	if healthy {
		w.Status = models.WorkerHealthy
		w.ConsecutiveFailures = 0
		w.LastError = ""
		w.AlertRaised = false
		return
	}

	w.ConsecutiveFailures++
	if cause != nil {
		w.LastError = cause.Error()
	}
	if w.ConsecutiveFailures >= 3 {
		w.Status = models.WorkerFailed
	} else {
		w.Status = models.WorkerDegraded
	}

	h.logEvent("worker.heartbeat_failed", map[string]any{
		"worker":               name,
		"consecutive_failures": w.ConsecutiveFailures,
		"error":                w.LastError,
	})
	h.recordError(w)

	if w.ConsecutiveFailures >= h.alertThreshold && !w.AlertRaised {
		h.raiseAlert(w)
	}
}

func (h *healthSupervisor) CheckAll() []models.RestartDecision {
	h.mu.Lock()
	defer h.mu.Unlock()

	staleAfter := 3 * h.checkInterval
	now := h.now()

	names := make([]string, 0, len(h.workers))
	for name := range h.workers {
		names = append(names, name)
	}
	sort.Strings(names)

	var decisions []models.RestartDecision
	for _, name := range names {
		w := h.workers[name]

		// A worker that stopped heartbeating is failed even if its last
		// reported cycle was fine.
		if stale := now.Sub(w.LastHeartbeat); stale > staleAfter && w.Status != models.WorkerRecovering {
			w.Status = models.WorkerFailed
			w.ConsecutiveFailures++
			w.LastError = fmt.Sprintf("heartbeat stale for %s", stale.Round(time.Second))
			h.recordError(w)
		}

		if w.Status != models.WorkerFailed {
			continue
		}
		decisions = append(decisions, h.decide(w))
	}
	return decisions
}

func (h *healthSupervisor) Decide(name string) models.RestartDecision {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.workers[name]
	if !ok {
		return models.RestartDecision{Worker: name, Reason: "worker not registered"}
	}
	return h.decide(w)
}

// decide sanctions a restart while budget remains, with the caller holding
// the lock. Past the budget it raises the alert instead.
func (h *healthSupervisor) decide(w *models.WorkerHealth) models.RestartDecision {
	if w.RestartAttempts >= w.MaxRestartAttempts {
		if !w.AlertRaised {
			h.raiseAlert(w)
		}
		return models.RestartDecision{
			Worker: w.Name,
			Reason: fmt.Sprintf("restart budget exhausted after %d attempts", w.RestartAttempts),
		}
	}

	w.RestartAttempts++
	w.Status = models.WorkerRecovering
	backoff := h.baseBackoff * (1 << (w.RestartAttempts - 1))
	w.BackoffSeconds = int(backoff / time.Second)

	decision := models.RestartDecision{
		Worker:     w.Name,
		Sanctioned: true,
		Attempt:    w.RestartAttempts,
		Backoff:    backoff,
		Reason:     w.LastError,
	}
	h.logEvent("worker.restart_sanctioned", map[string]any{
		"worker":  w.Name,
		"attempt": decision.Attempt,
		"backoff": backoff.String(),
	})
	return decision
}

func (h *healthSupervisor) Report() models.HealthReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := models.HealthReport{GeneratedAt: h.now()}
	for _, w := range h.workers {
		report.Workers = append(report.Workers, *w)
		switch w.Status {
		case models.WorkerHealthy:
			report.Healthy++
		case models.WorkerDegraded:
			report.Degraded++
		case models.WorkerFailed:
			report.Failed++
		case models.WorkerRecovering:
			report.Recovering++
		}
	}
	sort.Slice(report.Workers, func(i, j int) bool {
		return report.Workers[i].Name < report.Workers[j].Name
	})
	return report
}

// recordError appends the failure to the worker's daily error record under
// Logs/Errors.
func (h *healthSupervisor) recordError(w *models.WorkerHealth) {
	if h.vault == nil {
		return
	}

	now := h.now()
	name := fmt.Sprintf("%s_errors_%s.md", w.Name, now.Format("20060102"))

	status := "DEGRADED"
	if w.ConsecutiveFailures >= 3 {
		status = "FAILED"
	}
	cause := w.LastError
	if cause == "" {
		cause = "Unknown error"
	}

	var entry strings.Builder
	fmt.Fprintf(&entry, "## Error #%d - %s\n\n", w.ConsecutiveFailures, now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&entry, "**Worker:** %s\n", w.Name)
	fmt.Fprintf(&entry, "**Failure Count:** %d\n", w.ConsecutiveFailures)
	fmt.Fprintf(&entry, "**Status:** %s\n\n", status)
	fmt.Fprintf(&entry, "**Error:**\n```\n%s\n```\n", cause)

	meta, body, err := h.vault.ReadRecord(storage.ErrorsFolder, name)
	if err != nil {
		meta = models.DocMeta{
			Type:    docTypeWorkerError,
			Subject: w.Name,
			Created: now.Format(time.RFC3339),
		}
		body = entry.String()
	} else {
		body = body + "\n---\n\n" + entry.String()
	}
	_ = h.vault.WriteRecord(storage.ErrorsFolder, name, meta, body)
}

// raiseAlert writes the human-intervention task file, once per streak. The
// caller holds the lock.
func (h *healthSupervisor) raiseAlert(w *models.WorkerHealth) {
	w.AlertRaised = true

	h.logEvent("alert.raised", map[string]any{
		"worker":               w.Name,
		"consecutive_failures": w.ConsecutiveFailures,
		"restart_attempts":     w.RestartAttempts,
	})

	if h.vault == nil {
		return
	}

	now := h.now()
	cause := w.LastError
	if cause == "" {
		cause = "Unknown error"
	}

	meta := models.DocMeta{
		Type:     docTypeWorkerAlert,
		Subject:  w.Name,
		Priority: "critical",
		Created:  now.Format(time.RFC3339),
		Status:   "pending",
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# CRITICAL: Worker Failure - %s\n\n", w.Name)
	fmt.Fprintf(&b, "**Worker:** %s\n", w.Name)
	fmt.Fprintf(&b, "**Created:** %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Consecutive Failures:** %d\n", w.ConsecutiveFailures)
	fmt.Fprintf(&b, "**Restart Attempts:** %d/%d\n\n", w.RestartAttempts, w.MaxRestartAttempts)
	b.WriteString("---\n\n## Issue\n\n")
	fmt.Fprintf(&b, "The worker **%s** keeps failing and needs manual intervention.\n\n", w.Name)
	fmt.Fprintf(&b, "**Last Error:**\n```\n%s\n```\n\n", cause)
	b.WriteString("---\n\n## Impact\n\n")
	b.WriteString("- Messages from this source are not being processed\n")
	b.WriteString("- Plans and replies for this source are stalled\n\n")
	b.WriteString("---\n\n## Suggested Actions\n\n")
	fmt.Fprintf(&b, "- [ ] Review error records in `Logs/Errors/%s_errors_*.md`\n", w.Name)
	b.WriteString("- [ ] Check source configuration and credentials\n")
	b.WriteString("- [ ] Verify the source directory or service is reachable\n")
	b.WriteString("- [ ] Restart the engine after fixing the cause\n")

	name := fmt.Sprintf("ALERT_%s_%s.md", w.Name, now.Format("20060102_150405"))
	_ = h.vault.WriteRecord(storage.TasksFolder, name, meta, b.String())
}

func (h *healthSupervisor) logEvent(eventType string, data map[string]any) {
	if h.events != nil {
		_ = h.events.LogEvent(eventType, data)
	}
}
