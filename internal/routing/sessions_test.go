package routing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/routing"
)

func TestSessions_CreateEnforcesSingleActiveSession(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, routing.Options{})

	c1 := f.customer(t, 1)
	c2 := f.customer(t, 2)
	op1 := f.operator(t, 10, "ru")
	op2 := f.operator(t, 11, "ru")

	session, err := f.sessions.Create(ctx, c1, op1)
	req.NoError(err)
	req.Equal(database.SessionActive, session.Status)

	_, err = f.sessions.Create(ctx, c1, op2)
	req.ErrorIs(err, routing.ErrInvalidOperation, "customer already in a session")

	_, err = f.sessions.Create(ctx, c2, op1)
	req.ErrorIs(err, routing.ErrInvalidOperation, "operator already in a session")

	_, err = f.sessions.Create(ctx, op2, op2)
	req.ErrorIs(err, routing.ErrInvalidOperation, "self pairing")

	_, err = f.sessions.Create(ctx, c2, c1)
	req.ErrorIs(err, routing.ErrInvalidOperation, "operator side must be an operator")
}

func TestSessions_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, routing.Options{})

	session, err := f.sessions.Create(ctx, f.customer(t, 1), f.operator(t, 2, "en"))
	req.NoError(err)

	req.NoError(f.sessions.Close(ctx, session))
	closedAt := session.ClosedAt.Time
	req.NoError(f.sessions.Close(ctx, session))
	req.Equal(closedAt, session.ClosedAt.Time)

	stored, err := f.sessions.Get(ctx, session.ID)
	req.NoError(err)
	req.Equal(database.SessionClosed, stored.Status)
	req.Nil(f.activeSession(t, 1))
	req.Nil(f.activeSession(t, 2))
}

func TestSessions_FindActiveForEitherSide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, routing.Options{})

	session, err := f.sessions.Create(ctx, f.customer(t, 1), f.operator(t, 2, "en"))
	require.NoError(t, err)

	assert.Equal(t, session.ID, f.activeSession(t, 1).ID)
	assert.Equal(t, session.ID, f.activeSession(t, 2).ID)
	assert.Nil(t, f.activeSession(t, 3))
}

func TestSessions_FindActiveForPrefersEarliest(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, routing.Options{})

	f.customer(t, 1)
	f.operator(t, 2, "en")
	f.operator(t, 3, "en")

	// Bypass the precondition to simulate legacy duplicates.
	first := &database.Session{CustomerID: 1, OperatorID: 2}
	second := &database.Session{CustomerID: 1, OperatorID: 3}
	req.NoError(f.store.SaveSession(ctx, first))
	req.NoError(f.store.SaveSession(ctx, second))

	req.Equal(first.ID, f.activeSession(t, 1).ID)
}

func TestSessions_GetUnknownIsNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routing.Options{})

	_, err := f.sessions.Get(context.Background(), 77)
	assert.ErrorIs(t, err, routing.ErrNotFound)
}

func TestSessions_LookupFailureIsStorageError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routing.Options{})
	f.store.failSessionLookup = true

	_, err := f.sessions.FindActiveFor(context.Background(), 1)
	assert.ErrorIs(t, err, routing.ErrStorage)
}
