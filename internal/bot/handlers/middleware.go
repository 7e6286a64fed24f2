// Package handlers contains the Telegram command and message handlers that drive the
// routing engine, along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that checks if the message sender is the configured admin user.
// If not, it sends a "Not Authorized" message and stops processing by returning early.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if !authorize(ctx, deps, deps.messenger(bot), update.Message) {
				return
			}
			next(ctx, bot, update)
		}
	}
}

// PrivateOnly drops updates that do not come from a private chat with a known sender.
// Routing identifies participants by user id, which only equals the chat id in private chats.
func PrivateOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if !isPrivate(update.Message) {
				deps.Logger.DebugContext(ctx, "Ignoring non-private update", "update_id", update.ID)
				return
			}
			next(ctx, bot, update)
		}
	}
}

func isPrivate(msg *models.Message) bool {
	return msg != nil && msg.From != nil && msg.Chat.Type == models.ChatTypePrivate
}

func authorize(ctx context.Context, deps HandlerDeps, m Messenger, msg *models.Message) bool {
	if msg == nil || msg.From == nil {
		return false
	}
	if deps.Config.IsAdmin(msg.From.ID) {
		return true
	}

	log := deps.Logger.With("middleware", "AdminOnly")
	log.WarnContext(ctx, "Unauthorized access attempt", "user_id", msg.From.ID, "chat_id", msg.Chat.ID)
	if err := m.SendText(ctx, msg.Chat.ID, deps.Config.Messages.NotAuthorized); err != nil {
		log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", msg.Chat.ID)
	}
	return false
}
