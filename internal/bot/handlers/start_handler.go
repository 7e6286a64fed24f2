package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/supportbot/internal/routing"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler ends any active session and shows the menu for the sender's role.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, h.deps.messenger(b), update.Message)
}

func (h startHandler) handle(ctx context.Context, m Messenger, msg *models.Message) {
	log := h.deps.Logger.With("handler", "start")

	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender")
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	p, err := contact(ctx, h.deps, msg)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	result, err := h.deps.Router.OnStart(ctx, p)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	if result.Closed != nil {
		log.InfoContext(ctx, "Session ended by /start", "session_id", result.Closed.ID)
		notifyCounterpartLeft(ctx, h.deps, m, log, result.Counterpart)
	}

	msgs := h.deps.Config.Messages
	switch result.Menu {
	case routing.MenuOperator:
		if result.Next == nil {
			send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, msgs.OperatorWelcome, nil))
		}
	default:
		send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, msgs.Welcome, h.deps.Config.Routing.Languages))
	}
	notifyMatch(ctx, h.deps, m, log, result.Next)
}
