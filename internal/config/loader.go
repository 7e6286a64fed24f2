package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"database.path": "storage.db",

	"telegram.token":         "",
	"telegram.admin_user_id": 0,
	"telegram.send_attempts": 3,
	"telegram.send_timeout":  "10s",

	"routing.languages":       []string{"en", "ru", "uz"},
	"routing.sticky_language": false,
	"routing.queue_ttl":       "0s",

	"commands.start":    "Start over and choose a language",
	"commands.stop":     "End the current conversation",
	"commands.register": "Register as an operator: /operator en,ru",
	"commands.queue":    "Show the waiting queue (admin only)",

	"messages.welcome":                "Hello! Choose the language you would like support in.",
	"messages.operator_welcome":       "You are registered as an operator. Waiting for customers...",
	"messages.choose_language":        "Please choose a language from the menu.",
	"messages.connected":              "You are now connected with %s. Send your question.",
	"messages.operator_connected":     "New customer: %s (language: %s).",
	"messages.queued":                 "All operators are busy. You are number %d in the queue.",
	"messages.session_ended":          "The conversation has ended.",
	"messages.counterpart_left":       "The other side has ended the conversation.",
	"messages.no_active_session":      "You have no active conversation.",
	"messages.left_queue":             "You have left the queue.",
	"messages.queue_expired":          "Sorry, no operator became available in time. Choose a language to try again.",
	"messages.operator_registered":    "Registered as operator for: %s.",
	"messages.provide_languages":      "Please list your languages, e.g. /operator en,ru",
	"messages.operator_cannot_select": "Operators cannot request support.",
	"messages.already_in_session":     "You are already in a conversation. Use /stop to end it.",
	"messages.unknown_language":       "Unknown language. Please choose from the menu.",
	"messages.queue_empty":            "The queue is empty.",
	"messages.queue_status":           "Queue length: %d\nNext: %d (%s), waiting %s",
	"messages.not_authorized":         "You are not authorized to use this command.",
	"messages.general_error":          "Something went wrong. Please try again later.",

	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": "0 0 3 * * 0",
	"scheduler.tasks.queue_expiry.enabled":     true,
	"scheduler.tasks.queue_expiry.schedule":    "0 * * * * *",
}

// LoadConfig reads defaults, then the YAML file at path (optional), then BOT_* environment
// variables, and validates the result. A .env file in the working directory is loaded first.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is LoadConfig without validation, for commands that only need part of the configuration.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %w", ErrConfiguration, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfiguration, path, err)
			}
			slog.Info("Config file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func (c *Config) normalize() {
	for i, lang := range c.Routing.Languages {
		c.Routing.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
}

// IsAdmin reports whether userID is the configured administrator.
func (c *Config) IsAdmin(userID int64) bool {
	return c.Telegram.AdminUserID != 0 && c.Telegram.AdminUserID == userID
}
