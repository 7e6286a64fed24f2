package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"
)

const menuRowSize = 3

// Messenger is the outbound side of the transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// SendMenu sends text with a reply keyboard of buttons. No buttons removes the keyboard.
	SendMenu(ctx context.Context, chatID int64, text string, buttons []string) error
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

type telegramMessenger struct {
	b *bot.Bot
}

// NewTelegramMessenger adapts a bot client to Messenger.
func NewTelegramMessenger(b *bot.Bot) Messenger {
	return telegramMessenger{b: b}
}

func (m telegramMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := m.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return nil
}

func (m telegramMessenger) SendMenu(ctx context.Context, chatID int64, text string, buttons []string) error {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard(buttons),
	}
	if _, err := m.b.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send menu to %d: %w", chatID, err)
	}
	return nil
}

func (m telegramMessenger) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	_, err := m.b.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     toChatID,
		FromChatID: fromChatID,
		MessageID:  messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to copy message %d from %d to %d: %w", messageID, fromChatID, toChatID, err)
	}
	return nil
}

func keyboard(buttons []string) models.ReplyMarkup {
	if len(buttons) == 0 {
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	}

	rows := lo.Map(lo.Chunk(buttons, menuRowSize), func(row []string, _ int) []models.KeyboardButton {
		return lo.Map(row, func(label string, _ int) models.KeyboardButton {
			return models.KeyboardButton{Text: label}
		})
	})
	return &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
	}
}
