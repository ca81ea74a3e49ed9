package core

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// =============================================================================
// Property 8: Restart Backoff Doubles Within The Budget
// =============================================================================

// Feature: comms-triage, Property 8: Restart Backoff Doubles Within The Budget
// *For any* restart budget and base backoff, a persistently failing worker
// SHALL receive sanctioned restarts with backoff base*2^(attempt-1) for
// attempts 1..budget, and only unsanctioned decisions after that.
func TestProperty_RestartBackoffDoublesWithinBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		budget := rapid.IntRange(1, 6).Draw(rt, "budget")
		baseSeconds := rapid.IntRange(1, 120).Draw(rt, "baseSeconds")
		extra := rapid.IntRange(1, 3).Draw(rt, "extra")

		cfg := models.HealthConfig{
			CheckIntervalSeconds:   30,
			MaxRestartAttempts:     budget,
			AlertThreshold:         1000,
			RecoveryBackoffSeconds: baseSeconds,
		}
		sup := NewHealthSupervisor(nil, nil, cfg)
		sup.(*healthSupervisor).now = testClock
		sup.Register("worker")

		base := time.Duration(baseSeconds) * time.Second
		for attempt := 1; attempt <= budget+extra; attempt++ {
			for i := 0; i < 3; i++ {
				sup.Heartbeat("worker", false, fmt.Errorf("still broken"))
			}

			d := sup.Decide("worker")
			if attempt <= budget {
				if !d.Sanctioned {
					rt.Fatalf("attempt %d of %d: expected sanction, got %+v", attempt, budget, d)
				}
				if d.Attempt != attempt {
					rt.Fatalf("expected attempt %d, got %d", attempt, d.Attempt)
				}
				want := base * (1 << (attempt - 1))
				if d.Backoff != want {
					rt.Fatalf("attempt %d: expected backoff %s, got %s", attempt, want, d.Backoff)
				}
			} else {
				if d.Sanctioned {
					rt.Fatalf("attempt %d past budget %d: expected no sanction, got %+v", attempt, budget, d)
				}
				if !strings.Contains(d.Reason, "restart budget exhausted") {
					rt.Fatalf("expected budget-exhausted reason, got %q", d.Reason)
				}
			}
		}
	})
}
