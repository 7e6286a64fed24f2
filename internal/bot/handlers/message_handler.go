package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/routing"
)

// NewMessageHandler returns the default handler. It relays messages between the two sides of
// an active session and otherwise treats the text as a language choice.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !isPrivate(update.Message) {
		return
	}
	h.handle(ctx, h.deps.messenger(b), update.Message)
}

func (h messageHandler) handle(ctx context.Context, m Messenger, msg *models.Message) {
	log := h.deps.Logger.With("handler", "message")

	p, err := contact(ctx, h.deps, msg)
	if err != nil {
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	isCommand := strings.HasPrefix(msg.Text, "/")
	if !isCommand {
		target, err := h.deps.Router.ResolveForwardTarget(ctx, p)
		if err != nil {
			replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
			return
		}
		if target != nil {
			if err := m.CopyMessage(ctx, target.ID, msg.Chat.ID, msg.ID); err != nil {
				log.ErrorContext(ctx, "Failed to relay message", "error", err, "from", p.ID, "to", target.ID)
				send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, h.deps.Config.Messages.GeneralError))
				return
			}
			log.DebugContext(ctx, "Relayed message", "from", p.ID, "to", target.ID, "message_id", msg.ID)
			return
		}
	}

	msgs := h.deps.Config.Messages
	language := strings.ToLower(strings.TrimSpace(msg.Text))
	switch {
	case !isCommand && slices.Contains(h.deps.Config.Routing.Languages, language):
		h.selectLanguage(ctx, m, msg, p, language)
	case p.IsOperator:
		send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, msgs.NoActiveSession))
	default:
		send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, msgs.ChooseLanguage, h.deps.Config.Routing.Languages))
	}
}

func (h messageHandler) selectLanguage(ctx context.Context, m Messenger, msg *models.Message, p *database.Participant, language string) {
	log := h.deps.Logger.With("handler", "message")
	msgs := h.deps.Config.Messages

	operator, err := h.deps.Router.OnSelectLanguage(ctx, p, language)
	switch {
	case errors.Is(err, routing.ErrInvalidOperation) && p.IsOperator:
		send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, msgs.OperatorCannotSelect))
		return
	case errors.Is(err, routing.ErrInvalidArgument):
		send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, msgs.UnknownLanguage, h.deps.Config.Routing.Languages))
		return
	case err != nil:
		replyError(ctx, h.deps, m, log, msg.Chat.ID, err)
		return
	}

	if operator == nil {
		position := h.deps.Router.QueuePosition(p.ID)
		log.InfoContext(ctx, "Customer waiting for operator", "participant_id", p.ID, "language", language, "position", position)
		send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, fmt.Sprintf(msgs.Queued, position), nil))
		return
	}

	log.InfoContext(ctx, "Customer connected", "participant_id", p.ID, "operator_id", operator.ID, "language", language)
	send(ctx, log, msg.Chat.ID, m.SendMenu(ctx, msg.Chat.ID, fmt.Sprintf(msgs.Connected, participantName(operator)), nil))
	if err := m.SendText(ctx, operator.ID, fmt.Sprintf(msgs.OperatorConnected, participantName(p), language)); err != nil {
		log.ErrorContext(ctx, "Failed to notify operator", "error", err, "operator_id", operator.ID)
	}
}
