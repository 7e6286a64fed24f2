package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStopHandler returns a handler for the /stop command.
func NewStopHandler(deps HandlerDeps) bot.HandlerFunc {
	return stopHandler{deps}.Handle
}

type stopHandler struct {
	deps HandlerDeps
}

func (h stopHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, h.deps.messenger(b), update.Message)
}

func (h stopHandler) handle(ctx context.Context, m Messenger, msg *models.Message) {
	log := h.deps.Logger.With("handler", "stop")

	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Stop handler received update with nil message or sender")
		return
	}

	log.InfoContext(ctx, "Handling /stop command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	p, err := contact(ctx, h.deps, msg)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	result, err := h.deps.Router.OnStop(ctx, p)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	msgs := h.deps.Config.Messages
	switch {
	case result.Ended():
		log.InfoContext(ctx, "Session ended by /stop", "session_id", result.Closed.ID)
		if p.IsOperator {
			send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, msgs.SessionEnded))
		} else {
			send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, msgs.SessionEnded, h.deps.Config.Routing.Languages))
		}
		notifyCounterpartLeft(ctx, h.deps, m, log, result.Counterpart)
		notifyMatch(ctx, h.deps, m, log, result.Next)
	case result.LeftQueue:
		send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, msgs.LeftQueue, h.deps.Config.Routing.Languages))
	default:
		send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, msgs.NoActiveSession))
		notifyMatch(ctx, h.deps, m, log, result.Next)
	}
}
