package handlers

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/supportbot/internal/config"
	"github.com/edgard/supportbot/internal/routing"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Router *routing.Router
	// NewMessenger builds the outbound side for a bot client. Nil uses NewTelegramMessenger.
	NewMessenger func(*tgbot.Bot) Messenger
}

func (d HandlerDeps) messenger(b *tgbot.Bot) Messenger {
	if d.NewMessenger != nil {
		return d.NewMessenger(b)
	}
	return NewTelegramMessenger(b)
}
