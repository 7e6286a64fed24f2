package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// GetParticipant retrieves a participant by external ID. Returns nil, nil if not found.
	GetParticipant(ctx context.Context, id int64) (*Participant, error)

	// SaveParticipant inserts or updates a participant keyed by its external ID.
	SaveParticipant(ctx context.Context, participant *Participant) error

	// FindOperatorsByStatusAndLanguage returns operators with the given availability that
	// support language, oldest-registered first.
	FindOperatorsByStatusAndLanguage(ctx context.Context, status Availability, language string) ([]*Participant, error)

	// GetSession retrieves a session by ID. Returns nil, nil if not found.
	GetSession(ctx context.Context, id uint) (*Session, error)

	// SaveSession inserts a new session (ID == 0) or updates the status of an existing one.
	SaveSession(ctx context.Context, session *Session) error

	// FindSessionsByParticipant returns the sessions where the participant holds role with the
	// given status, earliest-created first.
	FindSessionsByParticipant(ctx context.Context, participantID int64, role SessionRole, status SessionStatus) ([]*Session, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

const participantColumns = `seq, created_at, updated_at, id, display_name, is_operator,
	supported_languages, selected_language, availability`

const sessionColumns = `id, created_at, customer_id, operator_id, status, closed_at`

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

// GetParticipant retrieves a participant by external ID. Returns nil, nil if not found.
func (s *sqlxStore) GetParticipant(ctx context.Context, id int64) (*Participant, error) {
	if id == 0 {
		return nil, fmt.Errorf("participant id cannot be zero")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var participant Participant
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = ?`

	err := s.db.GetContext(ctx, &participant, query, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No participant found", "participant_id", id)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching participant",
			"participant_id", id, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting participant by ID", "participant_id", id, "error", err)
		return nil, fmt.Errorf("failed to get participant %d: %w", id, err)
	}

	return &participant, nil
}

// SaveParticipant inserts or updates a participant based on its external ID.
// New participants get their creation sequence number assigned from the insert.
func (s *sqlxStore) SaveParticipant(ctx context.Context, participant *Participant) error {
	if participant == nil {
		return fmt.Errorf("cannot save nil participant")
	}
	if participant.ID == 0 {
		return fmt.Errorf("participant must have a non-zero id")
	}
	if participant.Availability == "" {
		participant.Availability = AvailabilityAvailable
	}

	now := time.Now().UTC()
	participant.UpdatedAt = now
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = now
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving participant",
			"participant_id", participant.ID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var exists bool
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM participants WHERE id = ? LIMIT 1`, participant.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.ErrorContext(ctx, "Error checking if participant exists",
			"participant_id", participant.ID, "error", err)
		return fmt.Errorf("failed to check if participant %d exists: %w", participant.ID, err)
	}

	var result sql.Result
	if exists {
		query := `
			UPDATE participants SET
				display_name = :display_name,
				is_operator = :is_operator,
				supported_languages = :supported_languages,
				selected_language = :selected_language,
				availability = :availability,
				updated_at = :updated_at
			WHERE id = :id
		`
		result, err = tx.NamedExecContext(ctx, query, participant)
	} else {
		query := `
			INSERT INTO participants (
				id, display_name, is_operator, supported_languages,
				selected_language, availability, created_at, updated_at
			) VALUES (
				:id, :display_name, :is_operator, :supported_languages,
				:selected_language, :availability, :created_at, :updated_at
			)
		`
		result, err = tx.NamedExecContext(ctx, query, participant)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving participant", "participant_id", participant.ID, "error", err)
		return fmt.Errorf("failed to save participant %d: %w", participant.ID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when saving participant",
			"participant_id", participant.ID, "affected", affected)
	}

	if !exists {
		seq, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read sequence of participant %d: %w", participant.ID, err)
		}
		//nolint:gosec // integer overflow conversion is acceptable here
		participant.Seq = uint(seq)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "participant_id", participant.ID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	operation := "updated"
	if !exists {
		operation = "created"
	}
	s.logger.DebugContext(ctx, "Participant saved successfully",
		"operation", operation, "participant_id", participant.ID, "seq", participant.Seq)
	return nil
}

// FindOperatorsByStatusAndLanguage returns operators with the given availability that support
// language, ordered by creation sequence (oldest-registered first).
func (s *sqlxStore) FindOperatorsByStatusAndLanguage(ctx context.Context, status Availability, language string) ([]*Participant, error) {
	if language == "" {
		return nil, fmt.Errorf("language cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var operators []*Participant
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE is_operator = 1
		  AND availability = ?
		  AND instr(',' || supported_languages || ',', ?) > 0
		ORDER BY seq ASC
	`

	err := s.db.SelectContext(ctx, &operators, query, status, ","+language+",")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching operators",
			"language", language, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error finding operators", "status", status, "language", language, "error", err)
		return nil, fmt.Errorf("failed to find %s operators for language %q: %w", status, language, err)
	}

	s.logger.DebugContext(ctx, "Fetched operators", "status", status, "language", language, "count", len(operators))
	return operators, nil
}

// GetSession retrieves a session by ID. Returns nil, nil if not found.
func (s *sqlxStore) GetSession(ctx context.Context, id uint) (*Session, error) {
	if id == 0 {
		return nil, fmt.Errorf("session id cannot be zero")
	}

	var session Session
	err := s.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No session found", "session_id", id)
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting session by ID", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}

	return &session, nil
}

// SaveSession inserts a new session when session.ID is zero, otherwise it persists the
// session's status and closing time.
func (s *sqlxStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("cannot save nil session")
	}

	if session.ID != 0 {
		query := `UPDATE sessions SET status = :status, closed_at = :closed_at WHERE id = :id`
		result, err := s.db.NamedExecContext(ctx, query, session)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error updating session", "session_id", session.ID, "error", err)
			return fmt.Errorf("failed to update session %d: %w", session.ID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected != 1 {
			return fmt.Errorf("session %d not updated: %d rows affected", session.ID, affected)
		}
		s.logger.DebugContext(ctx, "Session updated", "session_id", session.ID, "status", session.Status)
		return nil
	}

	if session.CustomerID == 0 || session.OperatorID == 0 {
		return fmt.Errorf("session must reference a customer and an operator")
	}
	if session.Status == "" {
		session.Status = SessionActive
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sessions (customer_id, operator_id, status, created_at, closed_at)
		VALUES (:customer_id, :operator_id, :status, :created_at, :closed_at)
	`
	result, err := s.db.NamedExecContext(ctx, query, session)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating session",
			"customer_id", session.CustomerID, "operator_id", session.OperatorID, "error", err)
		return fmt.Errorf("failed to create session (customer %d, operator %d): %w",
			session.CustomerID, session.OperatorID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read id of new session: %w", err)
	}
	//nolint:gosec // integer overflow conversion is acceptable here
	session.ID = uint(id)

	s.logger.DebugContext(ctx, "Session created",
		"session_id", session.ID, "customer_id", session.CustomerID, "operator_id", session.OperatorID)
	return nil
}

// FindSessionsByParticipant returns sessions in which participantID holds role and which have
// the given status, earliest-created first.
func (s *sqlxStore) FindSessionsByParticipant(ctx context.Context, participantID int64, role SessionRole, status SessionStatus) ([]*Session, error) {
	var column string
	switch role {
	case RoleCustomer:
		column = "customer_id"
	case RoleOperator:
		column = "operator_id"
	default:
		return nil, fmt.Errorf("unknown session role %q", role)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var sessions []*Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + column + ` = ? AND status = ? ORDER BY id ASC`

	if err := s.db.SelectContext(ctx, &sessions, query, participantID, status); err != nil {
		s.logger.ErrorContext(ctx, "Error finding sessions",
			"participant_id", participantID, "role", role, "status", status, "error", err)
		return nil, fmt.Errorf("failed to find %s sessions for %s %d: %w", status, role, participantID, err)
	}

	return sessions, nil
}
