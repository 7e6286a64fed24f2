package routing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/routing"
)

var errDiskFull = errors.New("disk full")

// failingStore wraps a real store and fails selected calls.
type failingStore struct {
	database.Store
	failParticipantSave bool
	failSessionLookup   bool
}

func (f *failingStore) SaveParticipant(ctx context.Context, p *database.Participant) error {
	if f.failParticipantSave {
		return errDiskFull
	}
	return f.Store.SaveParticipant(ctx, p)
}

func (f *failingStore) FindSessionsByParticipant(ctx context.Context, id int64, role database.SessionRole, status database.SessionStatus) ([]*database.Session, error) {
	if f.failSessionLookup {
		return nil, errDiskFull
	}
	return f.Store.FindSessionsByParticipant(ctx, id, role, status)
}

type fixture struct {
	store     *failingStore
	directory *routing.Directory
	sessions  *routing.Sessions
	queue     *routing.Queue
	engine    *routing.Engine
	router    *routing.Router
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts routing.Options) *fixture {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "routing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	logger := discardLogger()
	store := &failingStore{Store: database.NewStore(db, logger)}
	directory := routing.NewDirectory(store, logger)
	sessions := routing.NewSessions(store, logger)
	queue := routing.NewQueue()
	engine := routing.NewEngine(directory, sessions, queue, opts, logger)

	return &fixture{
		store:     store,
		directory: directory,
		sessions:  sessions,
		queue:     queue,
		engine:    engine,
		router:    routing.NewRouter(engine, logger),
	}
}

func (f *fixture) customer(t *testing.T, id int64) *database.Participant {
	t.Helper()
	p, err := f.router.OnContact(context.Background(), id, "")
	require.NoError(t, err)
	return p
}

func (f *fixture) operator(t *testing.T, id int64, languages ...string) *database.Participant {
	t.Helper()
	p := f.customer(t, id)
	op, _, err := f.router.OnRegisterOperator(context.Background(), p, languages)
	require.NoError(t, err)
	return op
}

func (f *fixture) reload(t *testing.T, id int64) *database.Participant {
	t.Helper()
	p, err := f.directory.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) activeSession(t *testing.T, id int64) *database.Session {
	t.Helper()
	s, err := f.sessions.FindActiveFor(context.Background(), id)
	require.NoError(t, err)
	return s
}
