// Package routing matches customers with language-compatible operators.
//
// Participants are persisted through a ParticipantRepository, sessions through a
// SessionRepository, and customers with no free operator wait in an in-memory FIFO Queue.
// The Engine serializes every state transition; the Router adapts engine results to the
// shape chat handlers need.
package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/supportbot/internal/database"
)

// Menu identifies the keyboard a participant should see after /start.
type Menu int

const (
	// MenuCustomer offers the language choices.
	MenuCustomer Menu = iota
	// MenuOperator tells the operator they are waiting for customers.
	MenuOperator
)

// StartResult describes the outcome of a /start.
type StartResult struct {
	Participant *database.Participant
	Menu        Menu
	// Closed is the session /start ended, if any.
	Closed *database.Session
	// Counterpart is the other side of Closed.
	Counterpart *database.Participant
	// Next is a session the freed operator was moved into.
	Next *Match
}

// StopResult describes the outcome of a /stop.
type StopResult struct {
	Closed      *database.Session
	Counterpart *database.Participant
	Next        *Match
	// LeftQueue is set when there was no session but the participant was waiting.
	LeftQueue bool
}

// Ended reports whether a session was closed.
func (r *StopResult) Ended() bool {
	return r.Closed != nil
}

// QueueStatus is a diagnostics view of the waiting queue.
type QueueStatus struct {
	Length  int
	Head    *QueueEntry
	Entries []QueueEntry
}

// Router is the entry point used by chat handlers.
type Router struct {
	engine    *Engine
	directory *Directory
	sessions  *Sessions
	queue     *Queue
	logger    *slog.Logger
}

// New assembles the routing stack on top of the given repositories.
func New(participants ParticipantRepository, sessions SessionRepository, opts Options, logger *slog.Logger) *Router {
	directory := NewDirectory(participants, logger)
	sessionManager := NewSessions(sessions, logger)
	queue := NewQueue()
	engine := NewEngine(directory, sessionManager, queue, opts, logger)
	return NewRouter(engine, logger)
}

// NewRouter wraps an existing engine.
func NewRouter(engine *Engine, logger *slog.Logger) *Router {
	return &Router{
		engine:    engine,
		directory: engine.directory,
		sessions:  engine.sessions,
		queue:     engine.queue,
		logger:    logger.With("component", "router"),
	}
}

// OnContact resolves the participant behind an incoming update.
func (r *Router) OnContact(ctx context.Context, externalID int64, displayName string) (*database.Participant, error) {
	return r.engine.Contact(ctx, externalID, displayName)
}

// OnRegisterOperator registers p as an operator for languages.
func (r *Router) OnRegisterOperator(ctx context.Context, p *database.Participant, languages []string) (*database.Participant, *Match, error) {
	return r.engine.RegisterOperator(ctx, p, languages)
}

// OnStart ends any active session of p and reports which menu to show.
func (r *Router) OnStart(ctx context.Context, p *database.Participant) (*StartResult, error) {
	closed, next, err := r.engine.EndActiveFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	fresh, err := r.directory.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	result := &StartResult{
		Participant: fresh,
		Menu:        MenuCustomer,
		Closed:      closed,
		Next:        next,
	}
	if fresh.IsOperator {
		result.Menu = MenuOperator
	}
	if closed != nil {
		if result.Counterpart, err = r.directory.Get(ctx, closed.Counterpart(p.ID)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// OnSelectLanguage records the customer's language choice. The returned operator is nil
// when the customer was queued.
func (r *Router) OnSelectLanguage(ctx context.Context, customer *database.Participant, language string) (*database.Participant, error) {
	return r.engine.SelectLanguage(ctx, customer, language)
}

// OnStop ends p's active session or, failing that, takes them out of the queue.
func (r *Router) OnStop(ctx context.Context, p *database.Participant) (*StopResult, error) {
	closed, next, err := r.engine.EndActiveFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return &StopResult{LeftQueue: r.engine.LeaveQueue(ctx, p.ID), Next: next}, nil
	}

	counterpart, err := r.directory.Get(ctx, closed.Counterpart(p.ID))
	if err != nil {
		return nil, err
	}
	return &StopResult{Closed: closed, Counterpart: counterpart, Next: next}, nil
}

// ResolveForwardTarget returns the counterpart in p's active session, or nil if p is not
// in one. It takes no lock: a message racing a session close may still be delivered.
func (r *Router) ResolveForwardTarget(ctx context.Context, p *database.Participant) (*database.Participant, error) {
	active, err := r.sessions.FindActiveFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return r.directory.Get(ctx, active.Counterpart(p.ID))
}

// QueuePosition returns the 1-based queue position of the participant, or 0 if not queued.
func (r *Router) QueuePosition(participantID int64) int {
	return r.queue.Position(participantID)
}

// QueueStatus returns a snapshot of the waiting queue.
func (r *Router) QueueStatus() QueueStatus {
	entries := r.queue.Snapshot()
	status := QueueStatus{Length: len(entries), Entries: entries}
	if head, ok := r.queue.PeekFirst(); ok {
		status.Head = &head
	}
	return status
}

// ExpireQueue evicts entries that waited past the configured TTL.
func (r *Router) ExpireQueue(ctx context.Context, now time.Time) []QueueEntry {
	return r.engine.ExpireQueue(ctx, now)
}
