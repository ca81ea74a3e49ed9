package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/comms-triage/internal/core"
)

type orchMock struct {
	runFn             func(ctx context.Context) error
	runOnceFn         func(ctx context.Context) (*core.CycleResult, error)
	setPollIntervalFn func(d time.Duration)
}

func (m *orchMock) Run(ctx context.Context) error {
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return fmt.Errorf("not implemented")
}

func (m *orchMock) RunOnce(ctx context.Context) (*core.CycleResult, error) {
	if m.runOnceFn != nil {
		return m.runOnceFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *orchMock) SetPollInterval(d time.Duration) {
	if m.setPollIntervalFn != nil {
		m.setPollIntervalFn(d)
	}
}

func TestRunCommand_Registration(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "run" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected 'run' command to be registered")
	}
}

func TestRunCommand_NilOrchestrator(t *testing.T) {
	origOrch := Orch
	defer func() { Orch = origOrch }()
	Orch = nil

	err := runCmd.RunE(runCmd, []string{})
	if err == nil {
		t.Fatal("expected error when Orch is nil")
	}
	if !strings.Contains(err.Error(), "orchestrator not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunCommand_OnceSuccess(t *testing.T) {
	origOrch := Orch
	origOnce := runOnce
	defer func() {
		Orch = origOrch
		runOnce = origOnce
	}()
	runOnce = true

	Orch = &orchMock{
		runOnceFn: func(ctx context.Context) (*core.CycleResult, error) {
			return &core.CycleResult{
				ItemsPolled:  4,
				Skipped:      1,
				Archived:     1,
				AutoSent:     1,
				PlansCreated: 1,
				Errors:       []string{"polling chatdir: directory missing"},
			}, nil
		},
	}

	err := runCmd.RunE(runCmd, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCommand_OnceError(t *testing.T) {
	origOrch := Orch
	origOnce := runOnce
	defer func() {
		Orch = origOrch
		runOnce = origOnce
	}()
	runOnce = true

	Orch = &orchMock{
		runOnceFn: func(ctx context.Context) (*core.CycleResult, error) {
			return nil, fmt.Errorf("vault locked")
		},
	}

	err := runCmd.RunE(runCmd, []string{})
	if err == nil {
		t.Fatal("expected error from RunOnce")
	}
	if !strings.Contains(err.Error(), "running cycle") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunCommand_DaemonSuccess(t *testing.T) {
	origOrch := Orch
	origOnce := runOnce
	origInterval := runInterval
	defer func() {
		Orch = origOrch
		runOnce = origOnce
		runInterval = origInterval
	}()
	runOnce = false
	runInterval = 0

	var overridden bool
	Orch = &orchMock{
		runFn: func(ctx context.Context) error {
			return nil
		},
		setPollIntervalFn: func(d time.Duration) {
			overridden = true
		},
	}

	err := runCmd.RunE(runCmd, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overridden {
		t.Error("expected no interval override without --interval")
	}
}

func TestRunCommand_DaemonIntervalOverride(t *testing.T) {
	origOrch := Orch
	origOnce := runOnce
	origInterval := runInterval
	defer func() {
		Orch = origOrch
		runOnce = origOnce
		runInterval = origInterval
	}()
	runOnce = false
	runInterval = 7

	var captured time.Duration
	Orch = &orchMock{
		runFn: func(ctx context.Context) error {
			return nil
		},
		setPollIntervalFn: func(d time.Duration) {
			captured = d
		},
	}

	err := runCmd.RunE(runCmd, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured != 7*time.Second {
		t.Errorf("expected 7s override, got %s", captured)
	}
}

func TestRunCommand_DaemonError(t *testing.T) {
	origOrch := Orch
	origOnce := runOnce
	origInterval := runInterval
	defer func() {
		Orch = origOrch
		runOnce = origOnce
		runInterval = origInterval
	}()
	runOnce = false
	runInterval = 0

	Orch = &orchMock{
		runFn: func(ctx context.Context) error {
			return fmt.Errorf("another instance holds the run lock")
		},
	}

	err := runCmd.RunE(runCmd, []string{})
	if err == nil {
		t.Fatal("expected error from Run")
	}
	if !strings.Contains(err.Error(), "running engine") {
		t.Errorf("unexpected error: %v", err)
	}
}
