package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion is the expected version of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version      int          `koanf:"version"`
	Debug        Debug        `koanf:"debug"`
	Redis        Redis        `koanf:"redis"`
	Bot          Bot          `koanf:"bot"`
	Verification Verification `koanf:"verification"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Bot contains the Discord bot token and the guild layout it operates on.
type Bot struct {
	// Discord bot token.
	Token string `koanf:"token"`
	// Guild the verification system manages.
	GuildID uint64 `koanf:"guild_id"`
	// Channels used by the verification system.
	Channels Channels `koanf:"channels"`
	// Roles used by the verification system.
	Roles Roles `koanf:"roles"`
}

// Channels identifies the guild channels the bot posts to.
type Channels struct {
	// Channel where newcomers accept the rules and reminders are posted.
	Verification uint64 `koanf:"verification"`
	// Channel receiving per-run summaries and hygiene alerts.
	ModLog uint64 `koanf:"mod_log"`
	// Channel where bulk-kick confirmation prompts are posted.
	Privileged uint64 `koanf:"privileged"`
	// Channel for self-service commands like /subscribe.
	BotCommands uint64 `koanf:"bot_commands"`
	// Channel the announcements role is mentioned in.
	Announcements uint64 `koanf:"announcements"`
}

// Roles identifies the guild roles the bot reads and assigns.
type Roles struct {
	// Marker role applied after the warning grace period.
	Unverified uint64 `koanf:"unverified"`
	// Role granted when a member accepts the rules.
	Verified uint64 `koanf:"verified"`
	// Role whose holders may answer bulk-kick confirmation prompts.
	Privileged uint64 `koanf:"privileged"`
	// Self-assignable announcements notification role.
	Announcements uint64 `koanf:"announcements"`
	// Roles allowed to manage the verification tasks.
	Moderation []uint64 `koanf:"moderation"`
}

// Verification contains the lifecycle thresholds and schedules.
type Verification struct {
	// Days after which unverified members receive the marker role.
	WarnAfterDays int `koanf:"warn_after_days"`
	// Days after which unverified members are kicked.
	KickAfterDays int `koanf:"kick_after_days"`
	// Fraction of the guild above which a mass kick requires confirmation.
	// Zero forces confirmation for batches of any size.
	KickConfirmationThreshold float64 `koanf:"kick_confirmation_threshold"`
	// Minutes between lifecycle runs.
	LifecycleIntervalMinutes int `koanf:"lifecycle_interval_minutes"`
	// Hours between reminder broadcasts.
	ReminderIntervalHours int `koanf:"reminder_interval_hours"`
	// Seconds to wait for an answer to a confirmation prompt.
	ConfirmationTimeoutSeconds int `koanf:"confirmation_timeout_seconds"`
	// Maximum concurrent requests per action batch.
	ExecutorConcurrency int `koanf:"executor_concurrency"`
}

// WarnAfter returns the warning grace period as a duration.
func (v Verification) WarnAfter() time.Duration {
	return time.Duration(v.WarnAfterDays) * 24 * time.Hour
}

// KickAfter returns the removal grace period as a duration.
func (v Verification) KickAfter() time.Duration {
	return time.Duration(v.KickAfterDays) * 24 * time.Hour
}

// LifecycleInterval returns the lifecycle scheduler interval as a duration.
func (v Verification) LifecycleInterval() time.Duration {
	return time.Duration(v.LifecycleIntervalMinutes) * time.Minute
}

// ReminderInterval returns the reminder scheduler interval as a duration.
func (v Verification) ReminderInterval() time.Duration {
	return time.Duration(v.ReminderIntervalHours) * time.Hour
}

// ConfirmationTimeout returns the confirmation prompt timeout as a duration.
func (v Verification) ConfirmationTimeout() time.Duration {
	return time.Duration(v.ConfirmationTimeoutSeconds) * time.Second
}

// defaultConfig returns a Config pre-populated with default values.
// Values present in the loaded config file override these.
func defaultConfig() Config {
	return Config{
		Debug: Debug{
			LogLevel: "info",
		},
		Redis: Redis{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Verification: Verification{
			WarnAfterDays:              3,
			KickAfterDays:              30,
			KickConfirmationThreshold:  0.01,
			LifecycleIntervalMinutes:   30,
			ReminderIntervalHours:      28,
			ConfirmationTimeoutSeconds: 300,
			ExecutorConcurrency:        4,
		},
	}
}

// LoadConfig loads the configuration from the first bot.toml found in the
// search paths and returns it along with the directory it was loaded from.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".gatewarden",
		homeDir + "/.gatewarden/config",
		"/etc/gatewarden/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/bot.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: bot.toml", ErrConfigFileNotFound)
	}

	config := defaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version, CurrentVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: bot.toml", ErrConfigVersionMissing)
	}

	if current != expected {
		return fmt.Errorf("%w: bot.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, current, expected)
	}

	return nil
}
