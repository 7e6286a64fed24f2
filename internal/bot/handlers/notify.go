package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/routing"
)

// contact resolves the sender of msg into a participant.
func contact(ctx context.Context, deps HandlerDeps, msg *models.Message) (*database.Participant, error) {
	return deps.Router.OnContact(ctx, msg.From.ID, displayName(msg.From))
}

// displayName joins the user's names, collapsing runs of whitespace.
func displayName(user *models.User) string {
	full := strings.TrimSpace(user.FirstName + " " + user.LastName)
	var b strings.Builder
	space := false
	for _, r := range full {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteRune(' ')
				space = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
			space = false
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" && user.Username != "" {
		name = "@" + user.Username
	}
	return name
}

func participantName(p *database.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "#" + strconv.FormatInt(p.ID, 10)
}

// commandArgs returns everything after the command token.
func commandArgs(text string) string {
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx:])
}

// notifyMatch tells both sides of a freshly opened session about each other.
func notifyMatch(ctx context.Context, deps HandlerDeps, m Messenger, log *slog.Logger, match *routing.Match) {
	if match == nil {
		return
	}
	msgs := deps.Config.Messages

	if err := m.SendMenu(ctx, match.Customer.ID, fmt.Sprintf(msgs.Connected, participantName(match.Operator)), nil); err != nil {
		log.ErrorContext(ctx, "Failed to notify customer of match", "error", err, "customer_id", match.Customer.ID)
	}
	text := fmt.Sprintf(msgs.OperatorConnected, participantName(match.Customer), match.Customer.SelectedLanguage)
	if err := m.SendText(ctx, match.Operator.ID, text); err != nil {
		log.ErrorContext(ctx, "Failed to notify operator of match", "error", err, "operator_id", match.Operator.ID)
	}
}

// notifyCounterpartLeft tells the other side of a closed session that it ended.
// Customers get the language menu back so they can ask again.
func notifyCounterpartLeft(ctx context.Context, deps HandlerDeps, m Messenger, log *slog.Logger, counterpart *database.Participant) {
	if counterpart == nil {
		return
	}

	var err error
	if counterpart.IsOperator {
		err = m.SendText(ctx, counterpart.ID, deps.Config.Messages.CounterpartLeft)
	} else {
		err = m.SendMenu(ctx, counterpart.ID, deps.Config.Messages.CounterpartLeft, deps.Config.Routing.Languages)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to notify counterpart", "error", err, "participant_id", counterpart.ID)
	}
}

// replyError maps a routing failure to the configured user-facing text.
func replyError(ctx context.Context, deps HandlerDeps, m Messenger, log *slog.Logger, chatID int64, err error) {
	msgs := deps.Config.Messages
	text := msgs.GeneralError
	switch {
	case errors.Is(err, routing.ErrInvalidOperation):
		text = msgs.AlreadyInSession
		log.WarnContext(ctx, "Rejected routing operation", "error", err, "chat_id", chatID)
	case errors.Is(err, routing.ErrInvalidArgument):
		text = msgs.ProvideLanguages
		log.WarnContext(ctx, "Rejected routing argument", "error", err, "chat_id", chatID)
	default:
		log.ErrorContext(ctx, "Routing failed", "error", err, "chat_id", chatID)
	}

	if sendErr := m.SendText(ctx, chatID, text); sendErr != nil {
		log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
	}
}

func send(ctx context.Context, log *slog.Logger, chatID int64, err error) {
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
