package handlers

import (
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/supportbot/internal/config"
)

// Command tokens recognized by the bot.
const (
	CommandStart    = "start"
	CommandStop     = "stop"
	CommandOperator = "operator"
	CommandQueue    = "queue"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	privateMiddleware := []tgbot.Middleware{PrivateOnly(deps)}

	handlers["/"+CommandStart] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandStart,
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateMiddleware,
	}
	handlers["/"+CommandStop] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandStop,
		Handler:     NewStopHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateMiddleware,
	}
	handlers["/"+CommandOperator] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandOperator,
		Handler:     NewOperatorHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateMiddleware,
	}

	handlers["/"+CommandQueue] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandQueue,
		Handler:     NewQueueHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  []tgbot.Middleware{AdminOnly(deps)},
	}

	return handlers
}

// BotCommands lists the commands for the Telegram command menu.
func BotCommands(cfg *config.Config) []models.BotCommand {
	return []models.BotCommand{
		{Command: CommandStart, Description: cfg.Commands.Start},
		{Command: CommandStop, Description: cfg.Commands.Stop},
		{Command: CommandOperator, Description: cfg.Commands.Register},
		{Command: CommandQueue, Description: cfg.Commands.Queue},
	}
}
