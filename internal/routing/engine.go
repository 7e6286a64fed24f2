package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/supportbot/internal/database"
)

// Options tune engine behavior.
type Options struct {
	// StickyLanguage keeps a customer's selected language after their session ends.
	StickyLanguage bool
	// QueueTTL evicts queue entries older than this. Zero disables expiry.
	QueueTTL time.Duration
}

// Match is a session the engine opened as a side effect, such as a freed operator
// being handed the next waiting customer.
type Match struct {
	Session  *database.Session
	Customer *database.Participant
	Operator *database.Participant
}

// Engine runs every routing step under a single mutex so that concurrent updates
// never pair one operator twice or put one customer into two sessions.
// Participants passed in are reloaded by ID inside the lock; callers may hold stale copies.
type Engine struct {
	mu        sync.Mutex
	directory *Directory
	sessions  *Sessions
	queue     *Queue
	opts      Options
	logger    *slog.Logger
}

// NewEngine wires the routing components together.
func NewEngine(directory *Directory, sessions *Sessions, queue *Queue, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		directory: directory,
		sessions:  sessions,
		queue:     queue,
		opts:      opts,
		logger:    logger.With("component", "engine"),
	}
}

// Contact resolves or creates the participant for an incoming update.
func (e *Engine) Contact(ctx context.Context, externalID int64, displayName string) (*database.Participant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.directory.ResolveOrCreate(ctx, externalID, displayName)
}

// RegisterOperator promotes p to operator. A participant who was waiting leaves the queue.
// If the new operator is free, they are immediately offered the oldest compatible customer;
// the resulting Match is nil if nobody was waiting. A customer in an active session must
// end it first.
func (e *Engine) RegisterOperator(ctx context.Context, p *database.Participant, languages []string) (*database.Participant, *Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh, err := e.directory.Get(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	active, err := e.sessions.FindActiveFor(ctx, fresh.ID)
	if err != nil {
		return nil, nil, err
	}
	if active != nil && active.CustomerID == fresh.ID {
		return nil, nil, fmt.Errorf("%w: participant %d is a customer in session %d", ErrInvalidOperation, fresh.ID, active.ID)
	}

	operator, err := e.directory.RegisterOperator(ctx, fresh, languages)
	if err != nil {
		return nil, nil, err
	}
	if e.queue.Remove(operator.ID) {
		e.logger.InfoContext(ctx, "Participant left queue on operator registration", "participant_id", operator.ID)
	}

	if active != nil {
		if err := e.directory.SetAvailability(ctx, operator, database.AvailabilityBusy); err != nil {
			return nil, nil, err
		}
		return operator, nil, nil
	}

	match, err := e.freeAndAdvanceLocked(ctx, operator)
	if err != nil {
		return nil, nil, err
	}
	return operator, match, nil
}

// SelectLanguage records the customer's language and tries to assign an operator.
// It returns the assigned operator, or nil when the customer was queued instead.
func (e *Engine) SelectLanguage(ctx context.Context, customer *database.Participant, language string) (*database.Participant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh, err := e.directory.Get(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if fresh.IsOperator {
		return nil, fmt.Errorf("%w: operator %d cannot select a language", ErrInvalidOperation, fresh.ID)
	}

	lang := normalizeLanguage(language)
	if lang == "" {
		return nil, fmt.Errorf("%w: language code is required", ErrInvalidArgument)
	}

	active, err := e.sessions.FindActiveFor(ctx, fresh.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: participant %d already in session %d", ErrInvalidOperation, fresh.ID, active.ID)
	}

	fresh.SelectedLanguage = lang
	if err := e.directory.Save(ctx, fresh); err != nil {
		return nil, err
	}

	return e.assignLocked(ctx, fresh)
}

// Assign pairs the customer with the earliest-registered available operator for their
// selected language, or enqueues them. It returns nil without error if the customer has
// no language yet or was queued.
func (e *Engine) Assign(ctx context.Context, customer *database.Participant) (*database.Participant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh, err := e.directory.Get(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	return e.assignLocked(ctx, fresh)
}

func (e *Engine) assignLocked(ctx context.Context, customer *database.Participant) (*database.Participant, error) {
	if customer.IsOperator {
		return nil, fmt.Errorf("%w: operator %d cannot be assigned as a customer", ErrInvalidOperation, customer.ID)
	}
	if customer.SelectedLanguage == "" {
		return nil, nil
	}

	active, err := e.sessions.FindActiveFor(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: participant %d already in session %d", ErrInvalidOperation, customer.ID, active.ID)
	}

	candidates, err := e.directory.FindAvailableOperators(ctx, customer.SelectedLanguage)
	if err != nil {
		return nil, err
	}

	for _, operator := range candidates {
		if operator.ID == customer.ID {
			continue
		}
		paired, err := e.pairLocked(ctx, customer, operator)
		if err != nil {
			return nil, err
		}
		if paired != nil {
			e.queue.Remove(customer.ID)
			return operator, nil
		}
	}

	if e.queue.Enqueue(customer) {
		e.logger.InfoContext(ctx, "Customer queued",
			"participant_id", customer.ID,
			"language", customer.SelectedLanguage,
			"position", e.queue.Position(customer.ID))
	} else {
		e.logger.DebugContext(ctx, "Customer already queued, language refreshed",
			"participant_id", customer.ID, "language", customer.SelectedLanguage)
	}
	return nil, nil
}

// pairLocked marks operator busy and opens the session. It returns nil when the operator
// turns out to be in a session already, which only happens if stored availability drifted.
func (e *Engine) pairLocked(ctx context.Context, customer, operator *database.Participant) (*database.Session, error) {
	active, err := e.sessions.FindActiveFor(ctx, operator.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		e.logger.WarnContext(ctx, "Available operator already in a session, correcting availability",
			"operator_id", operator.ID, "session_id", active.ID)
		if err := e.directory.SetAvailability(ctx, operator, database.AvailabilityBusy); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := e.directory.SetAvailability(ctx, operator, database.AvailabilityBusy); err != nil {
		return nil, err
	}
	session, err := e.sessions.Create(ctx, customer, operator)
	if err != nil {
		if revertErr := e.directory.SetAvailability(ctx, operator, database.AvailabilityAvailable); revertErr != nil {
			e.logger.ErrorContext(ctx, "Failed to revert operator availability", "operator_id", operator.ID, "error", revertErr)
		}
		return nil, err
	}
	return session, nil
}

// EndSession closes the session, clears the customer's language unless sticky, and frees
// the operator, who may be immediately paired with the next waiting customer.
// Ending a closed session does nothing.
func (e *Engine) EndSession(ctx context.Context, session *database.Session) (*Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, match, err := e.endSessionLocked(ctx, session.ID)
	return match, err
}

// EndActiveFor ends whatever active session participantID is in. It returns the closed
// session, or nil if there was none.
func (e *Engine) EndActiveFor(ctx context.Context, participantID int64) (*database.Session, *Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	active, err := e.sessions.FindActiveFor(ctx, participantID)
	if err != nil {
		return nil, nil, err
	}
	if active == nil {
		match, err := e.releaseStrandedOperatorLocked(ctx, participantID)
		return nil, match, err
	}
	return e.endSessionLocked(ctx, active.ID)
}

// releaseStrandedOperatorLocked frees an operator marked busy without an active session,
// which a failed write after a session close can leave behind.
func (e *Engine) releaseStrandedOperatorLocked(ctx context.Context, participantID int64) (*Match, error) {
	p, err := e.directory.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if !p.IsOperator || p.Availability != database.AvailabilityBusy {
		return nil, nil
	}

	e.logger.WarnContext(ctx, "Releasing busy operator without an active session", "operator_id", p.ID)
	return e.freeAndAdvanceLocked(ctx, p)
}

func (e *Engine) endSessionLocked(ctx context.Context, sessionID uint) (*database.Session, *Match, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != database.SessionActive {
		return nil, nil, nil
	}

	// The language is cleared before the close so a failed write leaves the session active
	// and the operator legitimately busy.
	if !e.opts.StickyLanguage {
		customer, err := e.directory.Get(ctx, session.CustomerID)
		if err != nil {
			return nil, nil, err
		}
		if customer.SelectedLanguage != "" {
			customer.SelectedLanguage = ""
			if err := e.directory.Save(ctx, customer); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := e.sessions.Close(ctx, session); err != nil {
		return nil, nil, err
	}

	operator, err := e.directory.Get(ctx, session.OperatorID)
	if err != nil {
		return session, nil, err
	}
	match, err := e.freeAndAdvanceLocked(ctx, operator)
	return session, match, err
}

// FreeAndAdvance marks the operator available and hands them the oldest waiting customer
// whose language they support. The returned Match is nil if nobody compatible was waiting.
func (e *Engine) FreeAndAdvance(ctx context.Context, operator *database.Participant) (*Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh, err := e.directory.Get(ctx, operator.ID)
	if err != nil {
		return nil, err
	}
	active, err := e.sessions.FindActiveFor(ctx, fresh.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: operator %d still in session %d", ErrInvalidOperation, fresh.ID, active.ID)
	}
	return e.freeAndAdvanceLocked(ctx, fresh)
}

func (e *Engine) freeAndAdvanceLocked(ctx context.Context, operator *database.Participant) (*Match, error) {
	if !operator.IsOperator {
		return nil, nil
	}
	if err := e.directory.SetAvailability(ctx, operator, database.AvailabilityAvailable); err != nil {
		return nil, err
	}

	for {
		entry, ok := e.queue.DequeueFirstMatching(func(entry QueueEntry) bool {
			return entry.ParticipantID != operator.ID && operator.SupportedLanguages.Contains(entry.Language)
		})
		if !ok {
			return nil, nil
		}

		customer, err := e.directory.Get(ctx, entry.ParticipantID)
		if errors.Is(err, ErrNotFound) {
			e.logger.WarnContext(ctx, "Dropping queue entry for unknown participant", "participant_id", entry.ParticipantID)
			continue
		}
		if err != nil {
			e.queue.Restore(entry)
			return nil, err
		}
		if customer.IsOperator || customer.SelectedLanguage == "" {
			e.logger.DebugContext(ctx, "Dropping stale queue entry", "participant_id", customer.ID)
			continue
		}

		active, err := e.sessions.FindActiveFor(ctx, customer.ID)
		if err != nil {
			e.queue.Restore(entry)
			return nil, err
		}
		if active != nil {
			e.logger.DebugContext(ctx, "Dropping queue entry for participant already in session",
				"participant_id", customer.ID, "session_id", active.ID)
			continue
		}

		session, err := e.pairLocked(ctx, customer, operator)
		if err != nil {
			e.queue.Restore(entry)
			return nil, err
		}
		if session == nil {
			e.queue.Restore(entry)
			return nil, nil
		}

		e.logger.InfoContext(ctx, "Queued customer assigned to freed operator",
			"customer_id", customer.ID, "operator_id", operator.ID, "session_id", session.ID)
		return &Match{Session: session, Customer: customer, Operator: operator}, nil
	}
}

// LeaveQueue removes the participant from the waiting queue. Returns false if they were not queued.
func (e *Engine) LeaveQueue(ctx context.Context, participantID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := e.queue.Remove(participantID)
	if removed {
		e.logger.InfoContext(ctx, "Customer left queue", "participant_id", participantID)
	}
	return removed
}

// ExpireQueue evicts entries that waited longer than the configured TTL as of now.
// Expired customers keep their selected language so they can rejoin by picking it again.
func (e *Engine) ExpireQueue(ctx context.Context, now time.Time) []QueueEntry {
	if e.opts.QueueTTL <= 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	expired := e.queue.RemoveOlderThan(now.Add(-e.opts.QueueTTL))
	if len(expired) > 0 {
		e.logger.InfoContext(ctx, "Expired queue entries", "count", len(expired), "ttl", e.opts.QueueTTL)
	}
	return expired
}
