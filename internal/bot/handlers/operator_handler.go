package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/supportbot/internal/routing"
)

// NewOperatorHandler returns a handler for the operator registration command.
func NewOperatorHandler(deps HandlerDeps) bot.HandlerFunc {
	return operatorHandler{deps}.Handle
}

// operatorHandler registers the sender as an operator for the listed languages.
type operatorHandler struct {
	deps HandlerDeps
}

func (h operatorHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, h.deps.messenger(b), update.Message)
}

func (h operatorHandler) handle(ctx context.Context, m Messenger, msg *models.Message) {
	log := h.deps.Logger.With("handler", "operator")

	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Operator handler received update with nil message or sender")
		return
	}

	log.InfoContext(ctx, "Handling operator registration", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	msgs := h.deps.Config.Messages
	languages, err := routing.ParseLanguages(commandArgs(msg.Text))
	if err != nil {
		send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, msgs.ProvideLanguages))
		return
	}

	p, err := contact(ctx, h.deps, msg)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	operator, match, err := h.deps.Router.OnRegisterOperator(ctx, p, languages)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	text := fmt.Sprintf(msgs.OperatorRegistered, strings.Join(operator.SupportedLanguages, ", "))
	send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, text, nil))
	notifyMatch(ctx, h.deps, m, log, match)
}
