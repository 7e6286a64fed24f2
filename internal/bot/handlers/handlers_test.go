package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/supportbot/internal/config"
	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/routing"
)

const adminID = 999

type sentMessage struct {
	chatID  int64
	text    string
	buttons []string
	menu    bool
}

type copiedMessage struct {
	to, from  int64
	messageID int
}

// recorder is an in-memory Messenger.
type recorder struct {
	mu     sync.Mutex
	sent   []sentMessage
	copied []copiedMessage
}

func (r *recorder) SendText(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (r *recorder) SendMenu(_ context.Context, chatID int64, text string, buttons []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text, buttons: buttons, menu: true})
	return nil
}

func (r *recorder) CopyMessage(_ context.Context, toChatID, fromChatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.copied = append(r.copied, copiedMessage{to: toChatID, from: fromChatID, messageID: messageID})
	return nil
}

func (r *recorder) to(chatID int64) []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMessage
	for _, s := range r.sent {
		if s.chatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) last(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	msgs := r.to(chatID)
	require.NotEmpty(t, msgs, "no message sent to %d", chatID)
	return msgs[len(msgs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.copied = nil
}

type env struct {
	deps HandlerDeps
	rec  *recorder
	msgs config.MessagesConfig
	next int
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("telegram:\n  token: test\n  admin_user_id: %d\nrouting:\n  languages: [en, ru, uz]\n", adminID)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	db, err := database.NewDB(filepath.Join(dir, "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, logger)

	return &env{
		deps: HandlerDeps{
			Logger: logger,
			Config: cfg,
			Router: routing.New(store, store, routing.Options{}, logger),
		},
		rec:  &recorder{},
		msgs: cfg.Messages,
	}
}

func (e *env) message(userID int64, name, text string) *models.Message {
	e.next++
	return &models.Message{
		ID:   e.next,
		From: &models.User{ID: userID, FirstName: name},
		Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
		Text: text,
	}
}

func (e *env) start(userID int64, name string) {
	startHandler{e.deps}.handle(context.Background(), e.rec, e.message(userID, name, "/start"))
}

func (e *env) stop(userID int64) {
	stopHandler{e.deps}.handle(context.Background(), e.rec, e.message(userID, "", "/stop"))
}

func (e *env) register(userID int64, name, args string) {
	operatorHandler{e.deps}.handle(context.Background(), e.rec, e.message(userID, name, "/operator "+args))
}

func (e *env) say(userID int64, name, text string) *models.Message {
	msg := e.message(userID, name, text)
	messageHandler{e.deps}.handle(context.Background(), e.rec, msg)
	return msg
}

func TestSupportConversationFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	const (
		operatorID = 1
		aliceID    = 2
		bobID      = 3
	)

	e.register(operatorID, "Olga", "RU, en")
	reply := e.rec.last(t, operatorID)
	assert.Equal(t, fmt.Sprintf(e.msgs.OperatorRegistered, "ru, en"), reply.text)
	assert.True(t, reply.menu)
	assert.Empty(t, reply.buttons)

	e.start(aliceID, "Alice")
	reply = e.rec.last(t, aliceID)
	assert.Equal(t, e.msgs.Welcome, reply.text)
	assert.Equal(t, []string{"en", "ru", "uz"}, reply.buttons)

	e.say(aliceID, "Alice", "RU")
	assert.Equal(t, fmt.Sprintf(e.msgs.Connected, "Olga"), e.rec.last(t, aliceID).text)
	assert.Equal(t, fmt.Sprintf(e.msgs.OperatorConnected, "Alice", "ru"), e.rec.last(t, operatorID).text)

	question := e.say(aliceID, "Alice", "my order is late")
	answer := e.say(operatorID, "Olga", "checking now")
	assert.Equal(t, []copiedMessage{
		{to: operatorID, from: aliceID, messageID: question.ID},
		{to: aliceID, from: operatorID, messageID: answer.ID},
	}, e.rec.copied)

	e.say(bobID, "Bob", "ru")
	assert.Equal(t, fmt.Sprintf(e.msgs.Queued, 1), e.rec.last(t, bobID).text)

	e.rec.reset()
	e.stop(operatorID)

	operatorMsgs := e.rec.to(operatorID)
	require.Len(t, operatorMsgs, 2)
	assert.Equal(t, e.msgs.SessionEnded, operatorMsgs[0].text)
	assert.Equal(t, fmt.Sprintf(e.msgs.OperatorConnected, "Bob", "ru"), operatorMsgs[1].text)

	aliceMsg := e.rec.last(t, aliceID)
	assert.Equal(t, e.msgs.CounterpartLeft, aliceMsg.text)
	assert.Equal(t, []string{"en", "ru", "uz"}, aliceMsg.buttons)

	assert.Equal(t, fmt.Sprintf(e.msgs.Connected, "Olga"), e.rec.last(t, bobID).text)
}

func TestStartEndsSessionAndNotifiesOperator(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.register(1, "Olga", "en")
	e.say(2, "Alice", "en")
	e.rec.reset()

	e.start(2, "Alice")
	assert.Equal(t, e.msgs.CounterpartLeft, e.rec.last(t, 1).text)
	assert.Equal(t, e.msgs.Welcome, e.rec.last(t, 2).text)

	e.start(1, "Olga")
	assert.Equal(t, e.msgs.OperatorWelcome, e.rec.last(t, 1).text)
}

func TestStopWithoutSession(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.stop(5)
	assert.Equal(t, e.msgs.NoActiveSession, e.rec.last(t, 5).text)

	e.say(5, "Eve", "uz")
	e.stop(5)
	assert.Equal(t, e.msgs.LeftQueue, e.rec.last(t, 5).text)
	assert.Zero(t, e.deps.Router.QueueStatus().Length)
}

func TestOperatorRegistrationRequiresLanguages(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	operatorHandler{e.deps}.handle(context.Background(), e.rec, e.message(1, "Olga", "/operator"))
	assert.Equal(t, e.msgs.ProvideLanguages, e.rec.last(t, 1).text)

	e.register(1, "Olga", " , ")
	assert.Equal(t, e.msgs.ProvideLanguages, e.rec.last(t, 1).text)
}

func TestCustomerInSessionCannotRegisterAsOperator(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.register(1, "Olga", "ru")
	e.say(2, "Alice", "ru")
	require.Len(t, e.rec.copied, 0)

	e.register(2, "Alice", "en")
	assert.Equal(t, e.msgs.AlreadyInSession, e.rec.last(t, 2).text)

	// Alice is still connected to Olga.
	e.say(2, "Alice", "hello?")
	require.Len(t, e.rec.copied, 1)
	assert.Equal(t, int64(1), e.rec.copied[0].to)
}

func TestMessageWithoutSession(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.say(2, "Alice", "hello?")
	reply := e.rec.last(t, 2)
	assert.Equal(t, e.msgs.ChooseLanguage, reply.text)
	assert.Equal(t, []string{"en", "ru", "uz"}, reply.buttons)

	e.say(2, "Alice", "/help")
	assert.Equal(t, e.msgs.ChooseLanguage, e.rec.last(t, 2).text)
	assert.Empty(t, e.rec.copied)

	e.register(1, "Olga", "en")
	e.say(1, "Olga", "anyone?")
	assert.Equal(t, e.msgs.NoActiveSession, e.rec.last(t, 1).text)

	e.say(1, "Olga", "en")
	assert.Equal(t, e.msgs.OperatorCannotSelect, e.rec.last(t, 1).text)
}

func TestCommandsAreNotRelayed(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.register(1, "Olga", "en")
	e.say(2, "Alice", "en")
	e.say(2, "Alice", "/unknown")

	assert.Empty(t, e.rec.copied)
	assert.Equal(t, e.msgs.ChooseLanguage, e.rec.last(t, 2).text)
}

func TestQueueHandler(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	h := queueHandler{deps: e.deps, now: time.Now}

	h.handle(context.Background(), e.rec, e.message(adminID, "Admin", "/queue"))
	assert.Equal(t, e.msgs.QueueEmpty, e.rec.last(t, adminID).text)

	e.say(7, "Zed", "uz")
	head := e.deps.Router.QueueStatus().Head
	require.NotNil(t, head)
	h.now = func() time.Time { return head.EnqueuedAt.Add(90 * time.Second) }

	h.handle(context.Background(), e.rec, e.message(adminID, "Admin", "/queue"))
	assert.Equal(t, fmt.Sprintf(e.msgs.QueueStatus, 1, int64(7), "uz", 90*time.Second), e.rec.last(t, adminID).text)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	assert.True(t, authorize(ctx, e.deps, e.rec, e.message(adminID, "Admin", "/queue")))
	assert.Empty(t, e.rec.to(adminID))

	assert.False(t, authorize(ctx, e.deps, e.rec, e.message(3, "Mallory", "/queue")))
	assert.Equal(t, e.msgs.NotAuthorized, e.rec.last(t, 3).text)

	assert.False(t, authorize(ctx, e.deps, e.rec, nil))
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user models.User
		want string
	}{
		{name: "first and last", user: models.User{FirstName: "Ada", LastName: "Lovelace"}, want: "Ada Lovelace"},
		{name: "collapses whitespace", user: models.User{FirstName: " Ada\t\n", LastName: "  L "}, want: "Ada L"},
		{name: "drops control characters", user: models.User{FirstName: "A\u0007da"}, want: "Ada"},
		{name: "falls back to username", user: models.User{Username: "ada"}, want: "@ada"},
		{name: "empty", user: models.User{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(&tt.user))
		})
	}
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ru, en", commandArgs("/operator   ru, en "))
	assert.Equal(t, "en", commandArgs("/operator@support_bot en"))
	assert.Empty(t, commandArgs("/operator"))
}

func TestKeyboard(t *testing.T) {
	t.Parallel()

	markup, ok := keyboard([]string{"en", "ru", "uz", "de"}).(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.Keyboard, 2)
	assert.Len(t, markup.Keyboard[0], 3)
	assert.Equal(t, "de", markup.Keyboard[1][0].Text)

	remove, ok := keyboard(nil).(*models.ReplyKeyboardRemove)
	require.True(t, ok)
	assert.True(t, remove.RemoveKeyboard)
}

func TestParticipantName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ann", participantName(&database.Participant{ID: 1, DisplayName: "Ann"}))
	assert.Equal(t, "#42", participantName(&database.Participant{ID: 42}))
}
