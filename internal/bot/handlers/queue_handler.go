package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewQueueHandler returns a handler for the admin queue diagnostics command.
func NewQueueHandler(deps HandlerDeps) bot.HandlerFunc {
	return queueHandler{deps: deps, now: time.Now}.Handle
}

type queueHandler struct {
	deps HandlerDeps
	now  func() time.Time
}

func (h queueHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, h.deps.messenger(b), update.Message)
}

func (h queueHandler) handle(ctx context.Context, m Messenger, msg *models.Message) {
	log := h.deps.Logger.With("handler", "queue")

	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Queue handler received update with nil message or sender")
		return
	}

	status := h.deps.Router.QueueStatus()
	log.InfoContext(ctx, "Handling queue diagnostics", "chat_id", msg.Chat.ID, "queue_length", status.Length)

	msgs := h.deps.Config.Messages
	if status.Head == nil {
		send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, msgs.QueueEmpty))
		return
	}

	waited := h.now().Sub(status.Head.EnqueuedAt).Round(time.Second)
	text := fmt.Sprintf(msgs.QueueStatus, status.Length, status.Head.ParticipantID, status.Head.Language, waited)
	send(ctx, log, msg.Chat.ID, m.SendText(ctx, msg.Chat.ID, text))
}
