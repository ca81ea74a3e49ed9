package core

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

func defaultHealthConfig() models.HealthConfig {
	return models.HealthConfig{
		CheckIntervalSeconds:   30,
		MaxRestartAttempts:     3,
		AlertThreshold:         5,
		RecoveryBackoffSeconds: 30,
	}
}

// newTestSupervisor returns a supervisor on an injected clock. Advance the
// clock by reassigning *current.
func newTestSupervisor(t *testing.T, v storage.Vault, events EventLogger, cfg models.HealthConfig) (HealthSupervisor, *time.Time) {
	t.Helper()
	current := testClock()
	sup := NewHealthSupervisor(v, events, cfg)
	sup.(*healthSupervisor).now = func() time.Time { return current }
	return sup, &current
}

// --- Tests ---

func TestHealth_RegisterStartsHealthy(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil, nil, defaultHealthConfig())
	sup.Register("maildir")

	report := sup.Report()
	if len(report.Workers) != 1 {
		t.Fatalf("expected 1 worker, got %d", len(report.Workers))
	}
	w := report.Workers[0]
	if w.Status != models.WorkerHealthy {
		t.Errorf("expected status %q, got %q", models.WorkerHealthy, w.Status)
	}
	if report.Healthy != 1 {
		t.Errorf("expected 1 healthy, got %d", report.Healthy)
	}
	if !w.LastHeartbeat.Equal(testClock()) {
		t.Errorf("expected heartbeat at registration time, got %v", w.LastHeartbeat)
	}
}

func TestHealth_DegradedThenFailed(t *testing.T) {
	v := newTestVault(t)
	sup, _ := newTestSupervisor(t, v, nil, defaultHealthConfig())
	sup.Register("maildir")

	wantStatus := []models.WorkerStatus{models.WorkerDegraded, models.WorkerDegraded, models.WorkerFailed}
	for i, want := range wantStatus {
		sup.Heartbeat("maildir", false, fmt.Errorf("poll failed %d", i+1))

		report := sup.Report()
		w := report.Workers[0]
		if w.Status != want {
			t.Errorf("after %d failures: expected status %q, got %q", i+1, want, w.Status)
		}
		if w.ConsecutiveFailures != i+1 {
			t.Errorf("after %d failures: expected streak %d, got %d", i+1, i+1, w.ConsecutiveFailures)
		}
	}

	report := sup.Report()
	if report.Workers[0].LastError != "poll failed 3" {
		t.Errorf("expected last error %q, got %q", "poll failed 3", report.Workers[0].LastError)
	}

	// Each failure appended to the daily error record.
	meta, body, err := v.ReadRecord(storage.ErrorsFolder, "maildir_errors_20260314.md")
	if err != nil {
		t.Fatalf("reading error record: %v", err)
	}
	if meta.Type != "worker_error" {
		t.Errorf("expected record type %q, got %q", "worker_error", meta.Type)
	}
	if meta.Subject != "maildir" {
		t.Errorf("expected record subject %q, got %q", "maildir", meta.Subject)
	}
	for _, want := range []string{"## Error #1", "## Error #2", "## Error #3", "poll failed 3"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected error record to contain %q", want)
		}
	}
}

func TestHealth_HealthyHeartbeatResetsStreak(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil, nil, defaultHealthConfig())
	sup.Register("maildir")

	sup.Heartbeat("maildir", false, fmt.Errorf("first"))
	sup.Heartbeat("maildir", false, fmt.Errorf("second"))
	sup.Heartbeat("maildir", true, nil)

	w := sup.Report().Workers[0]
	if w.Status != models.WorkerHealthy {
		t.Errorf("expected status %q, got %q", models.WorkerHealthy, w.Status)
	}
	if w.ConsecutiveFailures != 0 {
		t.Errorf("expected streak reset, got %d", w.ConsecutiveFailures)
	}
	if w.LastError != "" {
		t.Errorf("expected last error cleared, got %q", w.LastError)
	}

	// The next failure starts a new streak at one.
	sup.Heartbeat("maildir", false, fmt.Errorf("again"))
	w = sup.Report().Workers[0]
	if w.Status != models.WorkerDegraded {
		t.Errorf("expected status %q, got %q", models.WorkerDegraded, w.Status)
	}
	if w.ConsecutiveFailures != 1 {
		t.Errorf("expected streak 1, got %d", w.ConsecutiveFailures)
	}
}

func TestHealth_RestartBackoffDoublesUntilBudget(t *testing.T) {
	v := newTestVault(t)
	logger := &fakeEventLogger{}
	cfg := defaultHealthConfig()
	cfg.AlertThreshold = 10
	sup, _ := newTestSupervisor(t, v, logger, cfg)
	sup.Register("maildir")

	fail := func(n int) {
		for i := 0; i < n; i++ {
			sup.Heartbeat("maildir", false, fmt.Errorf("poll failed"))
		}
	}

	// Three failures take the worker to failed; each extra failure after a
	// sanctioned restart fails it again.
	wantBackoff := []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}
	fail(3)
	for i, want := range wantBackoff {
		decisions := sup.CheckAll()
		if len(decisions) != 1 {
			t.Fatalf("attempt %d: expected 1 decision, got %d", i+1, len(decisions))
		}
		d := decisions[0]
		if !d.Sanctioned {
			t.Fatalf("attempt %d: expected sanctioned restart, got %+v", i+1, d)
		}
		if d.Attempt != i+1 {
			t.Errorf("expected attempt %d, got %d", i+1, d.Attempt)
		}
		if d.Backoff != want {
			t.Errorf("attempt %d: expected backoff %s, got %s", i+1, want, d.Backoff)
		}
		fail(1)
	}

	// The budget is spent: no more restarts, one alert instead.
	decisions := sup.CheckAll()
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	d := decisions[0]
	if d.Sanctioned {
		t.Fatalf("expected unsanctioned decision past the budget, got %+v", d)
	}
	if !strings.Contains(d.Reason, "restart budget exhausted after 3 attempts") {
		t.Errorf("expected budget-exhausted reason, got %q", d.Reason)
	}

	if logger.count("worker.restart_sanctioned") != 3 {
		t.Errorf("expected 3 restart_sanctioned events, got %d", logger.count("worker.restart_sanctioned"))
	}
	if logger.count("alert.raised") != 1 {
		t.Errorf("expected 1 alert.raised event, got %d", logger.count("alert.raised"))
	}

	// The alert task file asks a human to step in.
	meta, body, err := v.ReadRecord(storage.TasksFolder, "ALERT_maildir_20260314_093000.md")
	if err != nil {
		t.Fatalf("reading alert task: %v", err)
	}
	if meta.Type != "worker_alert" {
		t.Errorf("expected alert type %q, got %q", "worker_alert", meta.Type)
	}
	if meta.Priority != "critical" {
		t.Errorf("expected priority %q, got %q", "critical", meta.Priority)
	}
	if meta.Status != "pending" {
		t.Errorf("expected status %q, got %q", "pending", meta.Status)
	}
	if !strings.Contains(body, "**Restart Attempts:** 3/3") {
		t.Errorf("expected restart attempt summary in alert, got:\n%s", body)
	}
}

func TestHealth_StaleHeartbeatFails(t *testing.T) {
	sup, current := newTestSupervisor(t, nil, nil, defaultHealthConfig())
	sup.Register("maildir")

	// 91 seconds without a heartbeat exceeds three 30-second intervals.
	*current = current.Add(91 * time.Second)

	decisions := sup.CheckAll()
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	if !decisions[0].Sanctioned {
		t.Fatalf("expected sanctioned restart for stale worker, got %+v", decisions[0])
	}

	w := sup.Report().Workers[0]
	if w.Status != models.WorkerRecovering {
		t.Errorf("expected status %q after sanction, got %q", models.WorkerRecovering, w.Status)
	}
	if !strings.Contains(w.LastError, "heartbeat stale") {
		t.Errorf("expected stale-heartbeat error, got %q", w.LastError)
	}
}

func TestHealth_RecoveringWorkerNotDoubleSanctioned(t *testing.T) {
	sup, current := newTestSupervisor(t, nil, nil, defaultHealthConfig())
	sup.Register("maildir")

	*current = current.Add(2 * time.Minute)
	if decisions := sup.CheckAll(); len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}

	// Still no heartbeat, but the worker is mid-recovery: leave it alone.
	*current = current.Add(5 * time.Minute)
	if decisions := sup.CheckAll(); len(decisions) != 0 {
		t.Errorf("expected no decisions while recovering, got %d", len(decisions))
	}
}

func TestHealth_AlertOncePerStreak(t *testing.T) {
	v := newTestVault(t)
	logger := &fakeEventLogger{}
	cfg := defaultHealthConfig()
	cfg.AlertThreshold = 2
	sup, _ := newTestSupervisor(t, v, logger, cfg)
	sup.Register("chatdir")

	sup.Heartbeat("chatdir", false, fmt.Errorf("down"))
	sup.Heartbeat("chatdir", false, fmt.Errorf("down"))
	sup.Heartbeat("chatdir", false, fmt.Errorf("down"))
	if logger.count("alert.raised") != 1 {
		t.Fatalf("expected 1 alert for the streak, got %d", logger.count("alert.raised"))
	}

	// Recovery closes the streak; a fresh streak may alert again.
	sup.Heartbeat("chatdir", true, nil)
	sup.Heartbeat("chatdir", false, fmt.Errorf("down again"))
	sup.Heartbeat("chatdir", false, fmt.Errorf("down again"))
	if logger.count("alert.raised") != 2 {
		t.Errorf("expected 2 alerts across 2 streaks, got %d", logger.count("alert.raised"))
	}
}

func TestHealth_DecideUnknownWorker(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil, nil, defaultHealthConfig())

	d := sup.Decide("ghost")
	if d.Sanctioned {
		t.Error("expected unsanctioned decision for unknown worker")
	}
	if d.Reason != "worker not registered" {
		t.Errorf("expected reason %q, got %q", "worker not registered", d.Reason)
	}
}

func TestHealth_ReportCountsAndOrder(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil, nil, defaultHealthConfig())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		sup.Register(name)
	}

	sup.Heartbeat("zeta", false, fmt.Errorf("one"))
	for i := 0; i < 3; i++ {
		sup.Heartbeat("mid", false, fmt.Errorf("down"))
	}

	report := sup.Report()
	if report.Healthy != 1 || report.Degraded != 1 || report.Failed != 1 {
		t.Errorf("expected 1/1/1 healthy/degraded/failed, got %d/%d/%d",
			report.Healthy, report.Degraded, report.Failed)
	}

	want := []string{"alpha", "mid", "zeta"}
	for i, w := range report.Workers {
		if w.Name != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], w.Name)
		}
	}
}
