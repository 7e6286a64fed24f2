// Package tasks implements scheduled tasks for the support bot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/supportbot/internal/config"
	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/routing"
)

// Notifier delivers task-initiated messages to participants.
type Notifier interface {
	SendMenu(ctx context.Context, chatID int64, text string, buttons []string) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Router   *routing.Router
	Notifier Notifier
	Config   *config.Config
}
