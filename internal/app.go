// Package internal provides the App struct that wires all components of the
// communications triage engine together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/comms-triage/internal/cli"
	"github.com/valter-silva-au/comms-triage/internal/core"
	"github.com/valter-silva-au/comms-triage/internal/integration"
	"github.com/valter-silva-au/comms-triage/internal/observability"
	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// App holds all service dependencies for the triage engine.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigManager
	Config    *models.GlobalConfig

	// Storage layer
	Vault storage.Vault

	// Core services
	Classifier core.Classifier
	Pollers    core.PollerRegistry
	Workflow   core.Workflow
	Executor   core.ApprovalExecutor
	Supervisor core.HealthSupervisor
	Orch       core.Orchestrator
	Triage     core.TriageManager

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the triage engine. basePath is
// the directory holding .triageconfig (typically the directory the engine is
// run from, or CTE_HOME). The vault, source drops, and event log resolve
// relative to the configured vault root so the whole data tree moves as one.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Vault ---
	vaultRoot := resolvePath(basePath, cfg.VaultPath)
	app.Vault = storage.NewVault(vaultRoot)
	if err := app.Vault.EnsureLayout(); err != nil {
		return nil, fmt.Errorf("preparing vault: %w", err)
	}

	// --- Observability ---
	// EnsureLayout has already created Logs/, where the default event log
	// path points.
	if cfg.Observability.Enabled {
		eventsPath := resolvePath(vaultRoot, cfg.Observability.EventsPath)
		app.EventLog, err = observability.NewJSONLEventLog(eventsPath)
		if err != nil {
			// Non-fatal: the engine runs without an event log, alerts and
			// metrics just report nothing.
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		if cfg.Observability.Alerts.PendingPlanHours > 0 {
			thresholds.PendingPlanHours = cfg.Observability.Alerts.PendingPlanHours
		}
		if cfg.Observability.Alerts.FailureStreak > 0 {
			thresholds.FailureStreak = cfg.Observability.Alerts.FailureStreak
		}
		if cfg.Observability.Alerts.ErrorWindowMinutes > 0 {
			thresholds.ErrorWindowMinutes = cfg.Observability.Alerts.ErrorWindowMinutes
		}
		if cfg.Observability.Alerts.MaxErrorsPerWindow > 0 {
			thresholds.MaxErrorsPerWindow = cfg.Observability.Alerts.MaxErrorsPerWindow
		}
		if cfg.Observability.Alerts.MaxOpenPlans > 0 {
			thresholds.MaxOpenPlans = cfg.Observability.Alerts.MaxOpenPlans
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, app.Vault, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Observability.Enabled && cfg.Observability.SlackWebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Observability.SlackWebhookURL)
	}

	// The engine loops take the event log through the narrower
	// core.EventLogger interface. A nil interface stays nil across this
	// assignment, so disabled observability needs no stub.
	var events core.EventLogger
	if app.EventLog != nil {
		events = app.EventLog
	}

	// --- Source pollers ---
	// A source that is enabled but cannot be set up is a hard error: the
	// engine would silently stop triaging that channel otherwise.
	app.Pollers = core.NewPollerRegistry()
	if cfg.Maildir.Enabled {
		src := cfg.Maildir
		src.Path = resolvePath(vaultRoot, src.Path)
		poller, err := integration.NewMailDropPoller(src)
		if err != nil {
			return nil, err
		}
		if err := app.Pollers.Register(poller); err != nil {
			return nil, err
		}
	}
	if cfg.Chatdir.Enabled {
		src := cfg.Chatdir
		src.Path = resolvePath(vaultRoot, src.Path)
		poller, err := integration.NewChatDropPoller(src)
		if err != nil {
			return nil, err
		}
		if err := app.Pollers.Register(poller); err != nil {
			return nil, err
		}
	}

	// --- Idempotency stores ---
	// One ledger file per responsibility, all hidden at the vault root.
	seen := make(map[models.Source]storage.IdempotencyStore)
	for _, source := range []models.Source{models.SourceEmail, models.SourceChat} {
		store, err := storage.NewIdempotencyStore(
			filepath.Join(vaultRoot, fmt.Sprintf(".%s_processed.json", source)))
		if err != nil {
			return nil, fmt.Errorf("loading %s ledger: %w", source, err)
		}
		seen[source] = store
	}
	executed, err := storage.NewIdempotencyStore(filepath.Join(vaultRoot, ".approved_plans_executed.json"))
	if err != nil {
		return nil, fmt.Errorf("loading executed-plans ledger: %w", err)
	}
	swept, err := storage.NewIdempotencyStore(filepath.Join(vaultRoot, ".processed_plans.json"))
	if err != nil {
		return nil, fmt.Errorf("loading processed-plans ledger: %w", err)
	}

	// --- Core services ---
	app.Classifier = core.NewClassifier(cfg.Engine.CompanyKeywords, cfg.Engine.HistoryThreshold)
	app.Workflow = core.NewWorkflow(app.Vault, app.Classifier, app.Pollers, seen, events, cfg.Engine.AutoSend)
	app.Executor = core.NewApprovalExecutor(app.Vault, app.Pollers, executed, swept, events)
	app.Supervisor = core.NewHealthSupervisor(app.Vault, events, cfg.Health)
	app.Orch = core.NewOrchestrator(app.Vault, app.Pollers, app.Workflow, app.Executor, app.Supervisor, events, *cfg)
	app.Triage = core.NewTriageManager(app.Vault)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = app.Config
	cli.Triage = app.Triage
	cli.Classifier = app.Classifier
	cli.Supervisor = app.Supervisor
	cli.Orch = app.Orch

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App, such as the event log file
// handle. It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// resolvePath resolves a configured path against root. Empty means root
// itself; absolute paths are kept as-is.
func resolvePath(root, path string) string {
	if path == "" {
		return root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ResolveBasePath determines the engine's home directory. It checks the
// CTE_HOME env var, then walks up from the current directory looking for a
// .triageconfig file, and falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("CTE_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	// Walk up to find a directory containing the config file.
	for {
		for _, name := range []string{".triageconfig", ".triageconfig.yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
