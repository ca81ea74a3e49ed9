package cli

import (
	"github.com/valter-silva-au/comms-triage/internal/core"
	"github.com/valter-silva-au/comms-triage/internal/observability"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// Service instances used by the commands, set during app initialization
// in app.go. Tests swap individual vars for fakes.
var (
	// BasePath is the resolved engine home directory.
	BasePath string

	// Config is the loaded global configuration.
	Config *models.GlobalConfig

	Triage     core.TriageManager
	Classifier core.Classifier
	Supervisor core.HealthSupervisor
	Orch       core.Orchestrator
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
