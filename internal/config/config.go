// Package config loads and validates the support bot configuration.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials. BotInfo is filled at runtime from getMe.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"gte=0"`
	// SendAttempts bounds retries of a failed outbound call.
	SendAttempts int           `mapstructure:"send_attempts" validate:"gte=1,lte=10"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"  validate:"gt=0"`
	BotInfo      *models.User  `mapstructure:"-"`
}

// RoutingConfig tunes the matching engine.
type RoutingConfig struct {
	// Languages offered on the customer menu, in display order.
	Languages      []string      `mapstructure:"languages"       validate:"required,min=1,dive,required"`
	StickyLanguage bool          `mapstructure:"sticky_language"`
	QueueTTL       time.Duration `mapstructure:"queue_ttl"       validate:"gte=0"`
}

// CommandsConfig holds the descriptions shown in the Telegram command menu.
type CommandsConfig struct {
	Start    string `mapstructure:"start"    validate:"required"`
	Stop     string `mapstructure:"stop"     validate:"required"`
	Register string `mapstructure:"register" validate:"required"`
	Queue    string `mapstructure:"queue"    validate:"required"`
}

// MessagesConfig holds every user-facing text. Templates use fmt verbs where noted.
type MessagesConfig struct {
	Welcome              string `mapstructure:"welcome"               validate:"required"`
	OperatorWelcome      string `mapstructure:"operator_welcome"      validate:"required"`
	ChooseLanguage       string `mapstructure:"choose_language"       validate:"required"`
	Connected            string `mapstructure:"connected"             validate:"required"` // %s: operator name
	OperatorConnected    string `mapstructure:"operator_connected"    validate:"required"` // %s: customer name, %s: language
	Queued               string `mapstructure:"queued"                validate:"required"` // %d: position
	SessionEnded         string `mapstructure:"session_ended"         validate:"required"`
	CounterpartLeft      string `mapstructure:"counterpart_left"      validate:"required"`
	NoActiveSession      string `mapstructure:"no_active_session"     validate:"required"`
	LeftQueue            string `mapstructure:"left_queue"            validate:"required"`
	QueueExpired         string `mapstructure:"queue_expired"         validate:"required"`
	OperatorRegistered   string `mapstructure:"operator_registered"   validate:"required"` // %s: languages
	ProvideLanguages     string `mapstructure:"provide_languages"     validate:"required"`
	OperatorCannotSelect string `mapstructure:"operator_cannot_select" validate:"required"`
	AlreadyInSession     string `mapstructure:"already_in_session"    validate:"required"`
	UnknownLanguage      string `mapstructure:"unknown_language"      validate:"required"`
	QueueEmpty           string `mapstructure:"queue_empty"           validate:"required"`
	QueueStatus          string `mapstructure:"queue_status"          validate:"required"` // %d: length, %d: head id, %s: head language, %s: waited
	NotAuthorized        string `mapstructure:"not_authorized"        validate:"required"`
	GeneralError         string `mapstructure:"general_error"         validate:"required"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig schedules one registered task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}
