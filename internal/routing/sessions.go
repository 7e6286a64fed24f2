package routing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/edgard/supportbot/internal/database"
)

// SessionRepository is the persistence Sessions needs. database.Store satisfies it.
type SessionRepository interface {
	GetSession(ctx context.Context, id uint) (*database.Session, error)
	SaveSession(ctx context.Context, session *database.Session) error
	FindSessionsByParticipant(ctx context.Context, participantID int64, role database.SessionRole, status database.SessionStatus) ([]*database.Session, error)
}

// Sessions creates, closes, and looks up customer/operator sessions.
type Sessions struct {
	repo   SessionRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewSessions creates a Sessions manager backed by repo.
func NewSessions(repo SessionRepository, logger *slog.Logger) *Sessions {
	return &Sessions{
		repo:   repo,
		now:    time.Now,
		logger: logger.With("component", "sessions"),
	}
}

// Get loads a session by ID. Unknown IDs yield ErrNotFound.
func (s *Sessions) Get(ctx context.Context, id uint) (*database.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, storageError("get session", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, id)
	}
	return session, nil
}

// Create opens an active session between customer and operator. It refuses self-pairing,
// a non-operator operator side, and either side already holding an active session.
func (s *Sessions) Create(ctx context.Context, customer, operator *database.Participant) (*database.Session, error) {
	if customer.ID == operator.ID {
		return nil, fmt.Errorf("%w: participant %d cannot be paired with themselves", ErrInvalidOperation, customer.ID)
	}
	if !operator.IsOperator {
		return nil, fmt.Errorf("%w: participant %d is not an operator", ErrInvalidOperation, operator.ID)
	}

	for _, id := range []int64{customer.ID, operator.ID} {
		active, err := s.FindActiveFor(ctx, id)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, fmt.Errorf("%w: participant %d already in session %d", ErrInvalidOperation, id, active.ID)
		}
	}

	session := &database.Session{
		CustomerID: customer.ID,
		OperatorID: operator.ID,
		Status:     database.SessionActive,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, storageError("create session", err)
	}

	s.logger.InfoContext(ctx, "Session created",
		"session_id", session.ID,
		"customer_id", customer.ID,
		"operator_id", operator.ID)
	return session, nil
}

// Close marks the session closed. Closing an already closed session does nothing.
func (s *Sessions) Close(ctx context.Context, session *database.Session) error {
	if session.Status == database.SessionClosed {
		return nil
	}

	session.Status = database.SessionClosed
	session.ClosedAt = sql.NullTime{Time: s.now().UTC(), Valid: true}
	if err := s.repo.SaveSession(ctx, session); err != nil {
		session.Status = database.SessionActive
		session.ClosedAt = sql.NullTime{}
		return storageError("close session", err)
	}

	s.logger.InfoContext(ctx, "Session closed", "session_id", session.ID)
	return nil
}

// FindActiveFor returns the active session in which participantID is either side, or nil.
// Should more than one exist, the earliest created wins.
func (s *Sessions) FindActiveFor(ctx context.Context, participantID int64) (*database.Session, error) {
	asCustomer, err := s.repo.FindSessionsByParticipant(ctx, participantID, database.RoleCustomer, database.SessionActive)
	if err != nil {
		return nil, storageError("find customer sessions", err)
	}
	asOperator, err := s.repo.FindSessionsByParticipant(ctx, participantID, database.RoleOperator, database.SessionActive)
	if err != nil {
		return nil, storageError("find operator sessions", err)
	}

	all := append(asCustomer, asOperator...)
	if len(all) == 0 {
		return nil, nil
	}
	if len(all) > 1 {
		s.logger.WarnContext(ctx, "Participant has more than one active session",
			"participant_id", participantID, "count", len(all))
	}

	return lo.MinBy(all, func(a, b *database.Session) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}
