package models

// SourceConfig holds settings for one registered source adapter.
type SourceConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// PollConfig holds the per-source poll intervals in seconds.
type PollConfig struct {
	EmailIntervalSeconds int `yaml:"email_interval_seconds" mapstructure:"email_interval_seconds"`
	ChatIntervalSeconds  int `yaml:"chat_interval_seconds" mapstructure:"chat_interval_seconds"`
}

// ApprovalConfig holds settings for the approval executor loop.
type ApprovalConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	// Watch enables the directory watcher that wakes the executor as soon
	// as a human moves a plan into Approved, instead of waiting out the
	// poll interval.
	Watch bool `yaml:"watch" mapstructure:"watch"`
}

// HealthConfig holds the supervisor thresholds.
type HealthConfig struct {
	CheckIntervalSeconds   int `yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
	MaxRestartAttempts     int `yaml:"max_restart_attempts" mapstructure:"max_restart_attempts"`
	AlertThreshold         int `yaml:"alert_threshold" mapstructure:"alert_threshold"`
	RecoveryBackoffSeconds int `yaml:"recovery_backoff_seconds" mapstructure:"recovery_backoff_seconds"`
}

// EngineConfig holds workflow engine behavior switches.
type EngineConfig struct {
	// AutoSend permits unattended sending for auto-approved replies. When
	// false every reply goes through a plan and human approval.
	AutoSend         bool     `yaml:"auto_send" mapstructure:"auto_send"`
	HistoryThreshold int      `yaml:"history_threshold" mapstructure:"history_threshold"`
	CompanyKeywords  []string `yaml:"company_keywords,omitempty" mapstructure:"company_keywords"`
}

// AlertConfig holds alert threshold overrides. Zero values keep the
// built-in defaults.
type AlertConfig struct {
	PendingPlanHours   int `yaml:"pending_plan_hours,omitempty" mapstructure:"pending_plan_hours"`
	FailureStreak      int `yaml:"failure_streak,omitempty" mapstructure:"failure_streak"`
	ErrorWindowMinutes int `yaml:"error_window_minutes,omitempty" mapstructure:"error_window_minutes"`
	MaxErrorsPerWindow int `yaml:"max_errors_per_window,omitempty" mapstructure:"max_errors_per_window"`
	MaxOpenPlans       int `yaml:"max_open_plans,omitempty" mapstructure:"max_open_plans"`
}

// ObservabilityConfig holds event log and notifier settings.
type ObservabilityConfig struct {
	Enabled         bool        `yaml:"enabled" mapstructure:"enabled"`
	EventsPath      string      `yaml:"events_path,omitempty" mapstructure:"events_path"`
	SlackWebhookURL string      `yaml:"slack_webhook_url,omitempty" mapstructure:"slack_webhook_url"`
	Alerts          AlertConfig `yaml:"alerts,omitempty" mapstructure:"alerts"`
}

// GlobalConfig holds system-wide settings read from .triageconfig via Viper.
type GlobalConfig struct {
	VaultPath     string              `yaml:"vault_path" mapstructure:"vault_path"`
	Poll          PollConfig          `yaml:"poll" mapstructure:"poll"`
	Approval      ApprovalConfig      `yaml:"approval" mapstructure:"approval"`
	Health        HealthConfig        `yaml:"health" mapstructure:"health"`
	Engine        EngineConfig        `yaml:"engine" mapstructure:"engine"`
	Maildir       SourceConfig        `yaml:"maildir" mapstructure:"maildir"`
	Chatdir       SourceConfig        `yaml:"chatdir" mapstructure:"chatdir"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}
