package models

import "time"

// WorkerStatus is the supervisor's view of one polling worker.
type WorkerStatus string

const (
	WorkerHealthy    WorkerStatus = "healthy"
	WorkerDegraded   WorkerStatus = "degraded"
	WorkerFailed     WorkerStatus = "failed"
	WorkerRecovering WorkerStatus = "recovering"
)

// WorkerHealth is the supervised state of one worker. Created on
// registration, mutated only by the health supervisor, and kept for as
// long as the worker stays registered.
type WorkerHealth struct {
	Name                string
	Status              WorkerStatus
	LastHeartbeat       time.Time
	ConsecutiveFailures int
	RestartAttempts     int
	MaxRestartAttempts  int
	BackoffSeconds      int
	LastError           string
	// AlertRaised guards the at-most-once alert per failure streak. It
	// resets on the next healthy heartbeat.
	AlertRaised bool
}

// HealthReport is a point-in-time snapshot across all registered workers.
type HealthReport struct {
	GeneratedAt time.Time
	Workers     []WorkerHealth
	Healthy     int
	Degraded    int
	Failed      int
	Recovering  int
}

// RestartDecision is the supervisor's answer to a restart request. The
// orchestrator owns the actual relaunch: it waits out Backoff first, then
// restarts the worker goroutine.
type RestartDecision struct {
	Worker     string
	Sanctioned bool
	Attempt    int
	Backoff    time.Duration
	Reason     string
}
