package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

const (
	approvalWorkerName = "approval"
	runLockName        = ".cte.lock"

	defaultPollInterval     = 60 * time.Second
	defaultApprovalInterval = 30 * time.Second
)

// CycleResult summarizes one full pass over every source plus the approval
// folders.
type CycleResult struct {
	ItemsPolled   int
	Skipped       int
	Archived      int
	AutoSent      int
	PlansCreated  int
	Held          int
	PlansExecuted int
	PlansRejected int
	ItemsMoved    int
	Errors        []string
}

// Orchestrator runs the engine: one polling worker per registered source, the
// approval executor, and the health supervisor. Workers that stop heartbeating
// are relaunched once the supervisor sanctions a restart.
type Orchestrator interface {
	// Run blocks until ctx is cancelled. It refuses to start when another
	// instance already holds the vault's run lock.
	Run(ctx context.Context) error

	// RunOnce performs a single synchronous cycle: poll every source, ingest
	// every item, then execute one approval pass. Used by `cte run --once`.
	RunOnce(ctx context.Context) (*CycleResult, error)

	// SetPollInterval overrides the configured per-source poll intervals.
	// Zero keeps the configured values. Must be called before Run.
	SetPollInterval(d time.Duration)
}

type workerSpec struct {
	name     string
	interval time.Duration
	cycle    func(ctx context.Context) error
	// wake, when non-nil, triggers an extra cycle between ticks.
	wake <-chan struct{}
}

type orchestrator struct {
	vault    storage.Vault
	pollers  PollerRegistry
	workflow Workflow
	approval ApprovalExecutor
	sup      HealthSupervisor
	events   EventLogger
	cfg      models.GlobalConfig

	// pollOverride, when non-zero, replaces every source's poll interval.
	pollOverride time.Duration

	mu      sync.Mutex
	wg      sync.WaitGroup
	running map[string]bool
	specs   map[string]workerSpec
	wake    chan struct{}
}

// NewOrchestrator creates an Orchestrator. events may be nil; sup may be nil
// only when Run is never called.
func NewOrchestrator(
	vault storage.Vault,
	pollers PollerRegistry,
	workflow Workflow,
	approval ApprovalExecutor,
	sup HealthSupervisor,
	events EventLogger,
	cfg models.GlobalConfig,
) Orchestrator {
	return &orchestrator{
		vault:    vault,
		pollers:  pollers,
		workflow: workflow,
		approval: approval,
		sup:      sup,
		events:   events,
		cfg:      cfg,
		running:  make(map[string]bool),
		specs:    make(map[string]workerSpec),
		wake:     make(chan struct{}, 1),
	}
}

func (o *orchestrator) Run(ctx context.Context) error {
	release, err := acquireRunLock(filepath.Join(o.vault.Root(), runLockName))
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	// 1. Build the worker set: one poll worker per source, one approval worker.
	for _, p := range o.pollers.List() {
		p := p
		spec := workerSpec{
			name:     p.Name(),
			interval: o.pollInterval(p.Source()),
			cycle: func(ctx context.Context) error {
				return o.pollCycle(ctx, p)
			},
		}
		o.specs[spec.name] = spec
		o.sup.Register(spec.name)
	}

	approvalSpec := workerSpec{
		name:     approvalWorkerName,
		interval: o.approvalInterval(),
		cycle:    o.approvalCycle,
		wake:     o.wake,
	}
	o.specs[approvalSpec.name] = approvalSpec
	o.sup.Register(approvalSpec.name)

	// 2. Start the supervisor loop and, when configured, the Approved/ watcher.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.superviseLoop(gctx) })
	if o.cfg.Approval.Watch {
		g.Go(func() error { return o.watchApproved(gctx) })
	}

	// 3. Launch every worker.
	for _, spec := range o.specs {
		o.launch(gctx, spec)
	}

	err = g.Wait()
	o.wg.Wait()
	return err
}

func (o *orchestrator) RunOnce(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{}

	for _, p := range o.pollers.List() {
		items, err := p.Poll(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("polling %s: %s", p.Name(), err))
			continue
		}
		result.ItemsPolled += len(items)
		for i := range items {
			res, err := o.workflow.Ingest(ctx, items[i])
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("ingesting %s: %s", items[i].ID, err))
			}
			if res == nil {
				continue
			}
			switch res.Action {
			case ActionNoOp:
				result.Skipped++
			case ActionArchived:
				result.Archived++
			case ActionAutoSent:
				result.AutoSent++
			case ActionPlanCreated:
				result.PlansCreated++
			case ActionHeld:
				result.Held++
			}
		}
	}

	if o.approval != nil {
		app, err := o.approval.CheckAndExecute(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("approval pass: %s", err))
		}
		if app != nil {
			result.PlansExecuted = app.Executed
			result.PlansRejected = app.Rejected
			result.ItemsMoved = app.Moved
			result.Errors = append(result.Errors, app.Errors...)
		}
	}

	o.logEvent("loop.cycle_completed", map[string]any{
		"items_polled":   result.ItemsPolled,
		"skipped":        result.Skipped,
		"archived":       result.Archived,
		"auto_sent":      result.AutoSent,
		"plans_created":  result.PlansCreated,
		"held":           result.Held,
		"plans_executed": result.PlansExecuted,
		"plans_rejected": result.PlansRejected,
		"items_moved":    result.ItemsMoved,
		"errors":         len(result.Errors),
	})

	return result, nil
}

// =============================================================================
// Worker lifecycle
// =============================================================================

// launch starts a worker loop goroutine unless one is already running under
// the same name.
func (o *orchestrator) launch(ctx context.Context, spec workerSpec) {
	o.mu.Lock()
	if o.running[spec.name] {
		o.mu.Unlock()
		return
	}
	o.running[spec.name] = true
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			o.running[spec.name] = false
			o.mu.Unlock()
		}()
		o.workerLoop(ctx, spec)
	}()
}

// workerLoop runs an immediate cycle and then one per tick, heartbeating the
// supervisor after each. A panicking cycle reports an unhealthy heartbeat and
// takes the worker down; the worker then stays down until its heartbeat goes
// stale and the supervisor sanctions a relaunch.
func (o *orchestrator) workerLoop(ctx context.Context, spec workerSpec) {
	defer func() {
		if r := recover(); r != nil {
			o.sup.Heartbeat(spec.name, false, fmt.Errorf("worker panic: %v", r))
		}
	}()

	ticker := time.NewTicker(spec.interval)
	defer ticker.Stop()

	o.runCycle(ctx, spec)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runCycle(ctx, spec)
		case <-spec.wake:
			o.runCycle(ctx, spec)
		}
	}
}

func (o *orchestrator) runCycle(ctx context.Context, spec workerSpec) {
	err := spec.cycle(ctx)
	o.sup.Heartbeat(spec.name, err == nil, err)
}

// superviseLoop ticks the health supervisor and relaunches workers it
// sanctions for restart, after the decided backoff.
func (o *orchestrator) superviseLoop(ctx context.Context) error {
	interval := time.Duration(o.cfg.Health.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, decision := range o.sup.CheckAll() {
				if !decision.Sanctioned {
					continue
				}
				o.scheduleRestart(ctx, decision)
			}
		}
	}
}

// scheduleRestart relaunches a sanctioned worker after its backoff. A worker
// whose goroutine is still alive (stale but not exited) is left alone so two
// loops never run under the same name.
func (o *orchestrator) scheduleRestart(ctx context.Context, decision models.RestartDecision) {
	spec, ok := o.specs[decision.Worker]
	if !ok {
		return
	}
	o.mu.Lock()
	alive := o.running[decision.Worker]
	o.mu.Unlock()
	if alive {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(decision.Backoff):
			o.launch(ctx, spec)
		}
	}()
}

// =============================================================================
// Worker cycles
// =============================================================================

// pollCycle drains one source and ingests everything it returned. The first
// ingest error is reported to the supervisor; later items are still processed.
func (o *orchestrator) pollCycle(ctx context.Context, p Poller) error {
	items, err := p.Poll(ctx)
	if err != nil {
		return fmt.Errorf("polling %s: %w", p.Name(), err)
	}

	var firstErr error
	for i := range items {
		if _, err := o.workflow.Ingest(ctx, items[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	o.logEvent("loop.cycle_completed", map[string]any{
		"worker": p.Name(),
		"items":  len(items),
	})
	return firstErr
}

func (o *orchestrator) approvalCycle(ctx context.Context) error {
	result, err := o.approval.CheckAndExecute(ctx)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("approval pass: %s", result.Errors[0])
	}

	if result.Executed+result.Rejected+result.Moved > 0 {
		o.logEvent("loop.cycle_completed", map[string]any{
			"worker":         approvalWorkerName,
			"plans_executed": result.Executed,
			"plans_rejected": result.Rejected,
			"items_moved":    result.Moved,
		})
	}
	return nil
}

// watchApproved wakes the approval worker as soon as a plan lands in the
// Approved folder. The poll interval remains the correctness backstop, so
// watcher event errors are ignored.
func (o *orchestrator) watchApproved(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting approval watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Join(o.vault.Root(), storage.FolderFor(models.StateApproved))
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				select {
				case o.wake <- struct{}{}:
				default:
				}
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (o *orchestrator) SetPollInterval(d time.Duration) {
	if d > 0 {
		o.pollOverride = d
	}
}

func (o *orchestrator) pollInterval(source models.Source) time.Duration {
	if o.pollOverride > 0 {
		return o.pollOverride
	}
	var seconds int
	switch source {
	case models.SourceEmail:
		seconds = o.cfg.Poll.EmailIntervalSeconds
	case models.SourceChat:
		seconds = o.cfg.Poll.ChatIntervalSeconds
	}
	if seconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(seconds) * time.Second
}

func (o *orchestrator) approvalInterval() time.Duration {
	if o.cfg.Approval.PollIntervalSeconds <= 0 {
		return defaultApprovalInterval
	}
	return time.Duration(o.cfg.Approval.PollIntervalSeconds) * time.Second
}

func (o *orchestrator) logEvent(eventType string, data map[string]any) {
	if o.events == nil {
		return
	}
	_ = o.events.LogEvent(eventType, data)
}
