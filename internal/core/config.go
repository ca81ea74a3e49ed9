// Package core contains the business logic for the communications triage
// engine, including classification, the folder-state workflow, approval
// execution, health supervision, and configuration.
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// ConfigManager loads and validates the global .triageconfig file.
type ConfigManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigManager using Viper for reading
// YAML configuration files.
type viperConfigManager struct {
	// basePath is the directory where .triageconfig resides.
	basePath string
}

// NewConfigManager creates a ConfigManager that reads configuration
// relative to basePath.
func NewConfigManager(basePath string) ConfigManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with sensible
// defaults. Relative paths (vault, source drops, event log) are resolved
// against the base path by the caller, not here.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		VaultPath: "",
		Poll: models.PollConfig{
			EmailIntervalSeconds: 60,
			ChatIntervalSeconds:  120,
		},
		Approval: models.ApprovalConfig{
			PollIntervalSeconds: 30,
			Watch:               true,
		},
		Health: models.HealthConfig{
			CheckIntervalSeconds:   30,
			MaxRestartAttempts:     3,
			AlertThreshold:         5,
			RecoveryBackoffSeconds: 30,
		},
		Engine: models.EngineConfig{
			AutoSend:         true,
			HistoryThreshold: 3,
		},
		Maildir: models.SourceConfig{
			Name:    "maildir",
			Enabled: true,
			Path:    "Intake/Email",
		},
		Chatdir: models.SourceConfig{
			Name:    "chatdir",
			Enabled: true,
			Path:    "Intake/Chat",
		},
		Observability: models.ObservabilityConfig{
			Enabled:    true,
			EventsPath: "Logs/events.jsonl",
		},
	}
}

// LoadGlobalConfig reads the .triageconfig file from the base path using
// Viper. If the file does not exist, sensible defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(".triageconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("vault_path", cfg.VaultPath)
	v.SetDefault("poll.email_interval_seconds", cfg.Poll.EmailIntervalSeconds)
	v.SetDefault("poll.chat_interval_seconds", cfg.Poll.ChatIntervalSeconds)
	v.SetDefault("approval.poll_interval_seconds", cfg.Approval.PollIntervalSeconds)
	v.SetDefault("approval.watch", cfg.Approval.Watch)
	v.SetDefault("health.check_interval_seconds", cfg.Health.CheckIntervalSeconds)
	v.SetDefault("health.max_restart_attempts", cfg.Health.MaxRestartAttempts)
	v.SetDefault("health.alert_threshold", cfg.Health.AlertThreshold)
	v.SetDefault("health.recovery_backoff_seconds", cfg.Health.RecoveryBackoffSeconds)
	v.SetDefault("engine.auto_send", cfg.Engine.AutoSend)
	v.SetDefault("engine.history_threshold", cfg.Engine.HistoryThreshold)
	v.SetDefault("sources.maildir.name", cfg.Maildir.Name)
	v.SetDefault("sources.maildir.enabled", cfg.Maildir.Enabled)
	v.SetDefault("sources.maildir.path", cfg.Maildir.Path)
	v.SetDefault("sources.chatdir.name", cfg.Chatdir.Name)
	v.SetDefault("sources.chatdir.enabled", cfg.Chatdir.Enabled)
	v.SetDefault("sources.chatdir.path", cfg.Chatdir.Path)
	v.SetDefault("observability.enabled", cfg.Observability.Enabled)
	v.SetDefault("observability.events_path", cfg.Observability.EventsPath)
	v.SetDefault("observability.slack_webhook_url", cfg.Observability.SlackWebhookURL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found, run on defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .triageconfig: %w", err)
	}

	// Map nested YAML keys to the GlobalConfig fields.
	cfg.VaultPath = v.GetString("vault_path")
	cfg.Poll.EmailIntervalSeconds = v.GetInt("poll.email_interval_seconds")
	cfg.Poll.ChatIntervalSeconds = v.GetInt("poll.chat_interval_seconds")
	cfg.Approval.PollIntervalSeconds = v.GetInt("approval.poll_interval_seconds")
	cfg.Approval.Watch = v.GetBool("approval.watch")
	cfg.Health.CheckIntervalSeconds = v.GetInt("health.check_interval_seconds")
	cfg.Health.MaxRestartAttempts = v.GetInt("health.max_restart_attempts")
	cfg.Health.AlertThreshold = v.GetInt("health.alert_threshold")
	cfg.Health.RecoveryBackoffSeconds = v.GetInt("health.recovery_backoff_seconds")
	cfg.Engine.AutoSend = v.GetBool("engine.auto_send")
	cfg.Engine.HistoryThreshold = v.GetInt("engine.history_threshold")
	cfg.Engine.CompanyKeywords = v.GetStringSlice("engine.company_keywords")
	cfg.Maildir.Name = v.GetString("sources.maildir.name")
	cfg.Maildir.Enabled = v.GetBool("sources.maildir.enabled")
	cfg.Maildir.Path = v.GetString("sources.maildir.path")
	cfg.Chatdir.Name = v.GetString("sources.chatdir.name")
	cfg.Chatdir.Enabled = v.GetBool("sources.chatdir.enabled")
	cfg.Chatdir.Path = v.GetString("sources.chatdir.path")
	cfg.Observability.Enabled = v.GetBool("observability.enabled")
	cfg.Observability.EventsPath = v.GetString("observability.events_path")
	cfg.Observability.SlackWebhookURL = v.GetString("observability.slack_webhook_url")
	cfg.Observability.Alerts.PendingPlanHours = v.GetInt("observability.alerts.pending_plan_hours")
	cfg.Observability.Alerts.FailureStreak = v.GetInt("observability.alerts.failure_streak")
	cfg.Observability.Alerts.ErrorWindowMinutes = v.GetInt("observability.alerts.error_window_minutes")
	cfg.Observability.Alerts.MaxErrorsPerWindow = v.GetInt("observability.alerts.max_errors_per_window")
	cfg.Observability.Alerts.MaxOpenPlans = v.GetInt("observability.alerts.max_open_plans")

	return cfg, nil
}

// ValidateConfig checks the provided configuration for invalid values and
// returns a clear error message identifying every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	intervals := []struct {
		key   string
		value int
	}{
		{"poll.email_interval_seconds", cfg.Poll.EmailIntervalSeconds},
		{"poll.chat_interval_seconds", cfg.Poll.ChatIntervalSeconds},
		{"approval.poll_interval_seconds", cfg.Approval.PollIntervalSeconds},
		{"health.check_interval_seconds", cfg.Health.CheckIntervalSeconds},
		{"health.recovery_backoff_seconds", cfg.Health.RecoveryBackoffSeconds},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got %d", iv.key, iv.value))
		}
	}

	if cfg.Health.MaxRestartAttempts < 0 {
		errs = append(errs, fmt.Sprintf(
			"health.max_restart_attempts must be non-negative, got %d",
			cfg.Health.MaxRestartAttempts,
		))
	}

	if cfg.Health.AlertThreshold <= 0 {
		errs = append(errs, fmt.Sprintf(
			"health.alert_threshold must be positive, got %d",
			cfg.Health.AlertThreshold,
		))
	}

	if cfg.Engine.HistoryThreshold < 0 {
		errs = append(errs, fmt.Sprintf(
			"engine.history_threshold must be non-negative, got %d",
			cfg.Engine.HistoryThreshold,
		))
	}

	sources := []struct {
		key string
		cfg models.SourceConfig
	}{
		{"sources.maildir", cfg.Maildir},
		{"sources.chatdir", cfg.Chatdir},
	}
	for _, s := range sources {
		if !s.cfg.Enabled {
			continue
		}
		if s.cfg.Name == "" {
			errs = append(errs, fmt.Sprintf("%s.name must not be empty when the source is enabled", s.key))
		}
		if s.cfg.Path == "" {
			errs = append(errs, fmt.Sprintf("%s.path must not be empty when the source is enabled", s.key))
		}
	}

	if cfg.Observability.Enabled && cfg.Observability.EventsPath == "" {
		errs = append(errs, "observability.events_path must not be empty when observability is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
