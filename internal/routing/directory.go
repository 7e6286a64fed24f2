package routing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/supportbot/internal/database"
)

// ParticipantRepository is the persistence the Directory needs. database.Store satisfies it.
type ParticipantRepository interface {
	GetParticipant(ctx context.Context, id int64) (*database.Participant, error)
	SaveParticipant(ctx context.Context, participant *database.Participant) error
	FindOperatorsByStatusAndLanguage(ctx context.Context, status database.Availability, language string) ([]*database.Participant, error)
}

// Directory resolves, registers, and updates participants.
type Directory struct {
	repo   ParticipantRepository
	logger *slog.Logger
}

// NewDirectory creates a Directory backed by repo.
func NewDirectory(repo ParticipantRepository, logger *slog.Logger) *Directory {
	return &Directory{
		repo:   repo,
		logger: logger.With("component", "directory"),
	}
}

// Get loads a participant by external ID. Unknown IDs yield ErrNotFound.
func (d *Directory) Get(ctx context.Context, id int64) (*database.Participant, error) {
	p, err := d.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, storageError("get participant", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participant %d", ErrNotFound, id)
	}
	return p, nil
}

// ResolveOrCreate returns the participant for externalID, creating a customer on first
// contact. A non-empty display name that differs from the stored one is persisted.
func (d *Directory) ResolveOrCreate(ctx context.Context, externalID int64, displayName string) (*database.Participant, error) {
	if externalID == 0 {
		return nil, fmt.Errorf("%w: external id is required", ErrInvalidArgument)
	}

	p, err := d.repo.GetParticipant(ctx, externalID)
	if err != nil {
		return nil, storageError("get participant", err)
	}

	if p == nil {
		p = &database.Participant{
			ID:           externalID,
			DisplayName:  displayName,
			Availability: database.AvailabilityAvailable,
		}
		if err := d.repo.SaveParticipant(ctx, p); err != nil {
			return nil, storageError("create participant", err)
		}
		d.logger.InfoContext(ctx, "New participant created", "participant_id", externalID)
		return p, nil
	}

	if displayName != "" && displayName != p.DisplayName {
		p.DisplayName = displayName
		if err := d.repo.SaveParticipant(ctx, p); err != nil {
			return nil, storageError("update display name", err)
		}
		d.logger.DebugContext(ctx, "Participant display name updated", "participant_id", externalID)
	}
	return p, nil
}

// RegisterOperator promotes p to operator with the given languages and marks them available.
// Registering again replaces the language set. The language list is validated before any
// change is made to p.
func (d *Directory) RegisterOperator(ctx context.Context, p *database.Participant, languages []string) (*database.Participant, error) {
	langs, err := NormalizeLanguages(languages)
	if err != nil {
		return nil, err
	}

	p.IsOperator = true
	p.SupportedLanguages = langs
	p.SelectedLanguage = ""
	p.Availability = database.AvailabilityAvailable
	if err := d.repo.SaveParticipant(ctx, p); err != nil {
		return nil, storageError("register operator", err)
	}

	d.logger.InfoContext(ctx, "Operator registered", "participant_id", p.ID, "languages", []string(langs))
	return p, nil
}

// SetAvailability persists an operator's availability. It is a no-op for customers.
func (d *Directory) SetAvailability(ctx context.Context, p *database.Participant, availability database.Availability) error {
	if !p.IsOperator {
		return nil
	}
	if p.Availability == availability {
		return nil
	}

	previous := p.Availability
	p.Availability = availability
	if err := d.repo.SaveParticipant(ctx, p); err != nil {
		p.Availability = previous
		return storageError("set availability", err)
	}
	return nil
}

// Save persists arbitrary changes to p.
func (d *Directory) Save(ctx context.Context, p *database.Participant) error {
	if err := d.repo.SaveParticipant(ctx, p); err != nil {
		return storageError("save participant", err)
	}
	return nil
}

// FindAvailableOperators returns available operators supporting language, oldest registration first.
func (d *Directory) FindAvailableOperators(ctx context.Context, language string) ([]*database.Participant, error) {
	operators, err := d.repo.FindOperatorsByStatusAndLanguage(ctx, database.AvailabilityAvailable, language)
	if err != nil {
		return nil, storageError("find available operators", err)
	}
	return operators, nil
}
