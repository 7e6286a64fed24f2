package handlers

import (
	"context"
	"errors"
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/supportbot/internal/resilience"
)

// Telegram rejections that repeat identically on every attempt.
var permanentSendErrors = []error{
	tgbot.ErrorForbidden,
	tgbot.ErrorBadRequest,
	tgbot.ErrorUnauthorized,
	tgbot.ErrorNotFound,
}

// IsAmbiguousDelivery reports whether a send may have reached Telegram even though it failed
// locally, such as a timeout waiting for the response.
func IsAmbiguousDelivery(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, resilience.ErrTimeout)
}

// IsTransientSendError reports whether a failed outbound call is worth retrying.
// A user who blocked the bot or a malformed request is not.
func IsTransientSendError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	for _, permanent := range permanentSendErrors {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}

type resilientMessenger struct {
	inner   Messenger
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	// relay retries copies only when the first attempt surely did not land, so the
	// counterpart never sees a message twice.
	relay  resilience.RetryConfig
	logger *slog.Logger
}

// NewResilientMessenger decorates inner with retries on transient failures, guarded by
// breaker so a Telegram outage fails fast instead of stalling every handler.
func NewResilientMessenger(inner Messenger, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig, logger *slog.Logger) Messenger {
	if retry.Retryable == nil {
		retry.Retryable = IsTransientSendError
	}
	relay := retry
	relay.Retryable = func(err error) bool {
		return !IsAmbiguousDelivery(err) && retry.Retryable(err)
	}
	return &resilientMessenger{
		inner:   inner,
		breaker: breaker,
		retry:   retry,
		relay:   relay,
		logger:  logger.With("component", "messenger"),
	}
}

// NewSendBreaker creates the circuit breaker shared by all outbound Telegram calls.
func NewSendBreaker(deps HandlerDeps) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:      "telegram_send",
		Timeout:   deps.Config.Telegram.SendTimeout,
		IsFailure: IsTransientSendError,
		Logger:    deps.Logger,
	})
}

func (m *resilientMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.do(ctx, "send_text", chatID, m.retry, func(ctx context.Context) error {
		return m.inner.SendText(ctx, chatID, text)
	})
}

func (m *resilientMessenger) SendMenu(ctx context.Context, chatID int64, text string, buttons []string) error {
	return m.do(ctx, "send_menu", chatID, m.retry, func(ctx context.Context) error {
		return m.inner.SendMenu(ctx, chatID, text, buttons)
	})
}

func (m *resilientMessenger) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	return m.do(ctx, "copy_message", toChatID, m.relay, func(ctx context.Context) error {
		return m.inner.CopyMessage(ctx, toChatID, fromChatID, messageID)
	})
}

func (m *resilientMessenger) do(ctx context.Context, op string, chatID int64, retry resilience.RetryConfig, call func(context.Context) error) error {
	err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		return m.breaker.Execute(ctx, call)
	}, retry)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		m.logger.WarnContext(ctx, "Dropping outbound call while circuit is open", "op", op, "chat_id", chatID)
	}
	return err
}
