package database

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Availability is an operator's readiness to take a new session.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
)

// Value implements driver.Valuer.
func (a Availability) Value() (driver.Value, error) {
	return string(a), nil
}

// SessionStatus is the lifecycle state of a session. It only moves active -> closed.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Value implements driver.Valuer.
func (s SessionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// SessionRole is the side a participant occupies within a session.
type SessionRole string

const (
	RoleCustomer SessionRole = "customer"
	RoleOperator SessionRole = "operator"
)

// LanguageSet is an ordered set of lower-case language codes.
// It is persisted as a comma-separated TEXT column.
type LanguageSet []string

// Contains reports whether code is part of the set.
func (l LanguageSet) Contains(code string) bool {
	return slices.Contains(l, code)
}

// Value implements driver.Valuer.
func (l LanguageSet) Value() (driver.Value, error) {
	return strings.Join(l, ","), nil
}

// Scan implements sql.Scanner.
func (l *LanguageSet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into LanguageSet", src)
	}

	if raw == "" {
		*l = nil
		return nil
	}
	*l = strings.Split(raw, ",")
	return nil
}

// Participant is a customer or operator identity known to the bot.
// ID is the external Telegram user ID; Seq records creation order and is
// used as the tie-break when several operators are eligible.
type Participant struct {
	Seq       uint      `db:"seq"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	ID                 int64        `db:"id"`
	DisplayName        string       `db:"display_name"`
	IsOperator         bool         `db:"is_operator"`
	SupportedLanguages LanguageSet  `db:"supported_languages"`
	SelectedLanguage   string       `db:"selected_language"` // empty until chosen
	Availability       Availability `db:"availability"`
}

// Session pairs one customer with one operator.
type Session struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	CustomerID int64         `db:"customer_id"`
	OperatorID int64         `db:"operator_id"`
	Status     SessionStatus `db:"status"`
	ClosedAt   sql.NullTime  `db:"closed_at"`
}

// Involves reports whether the participant is either side of the session.
func (s *Session) Involves(participantID int64) bool {
	return s.CustomerID == participantID || s.OperatorID == participantID
}

// Counterpart returns the ID of the other side of the session.
func (s *Session) Counterpart(participantID int64) int64 {
	if s.CustomerID == participantID {
		return s.OperatorID
	}
	return s.CustomerID
}
