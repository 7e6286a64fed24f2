package database_test

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/supportbot/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, slog.Default())
}

func TestSaveParticipant_AssignsCreationSequence(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	first := &database.Participant{ID: 1001, DisplayName: "Alice"}
	second := &database.Participant{ID: 42, DisplayName: "Bob"}
	req.NoError(store.SaveParticipant(ctx, first))
	req.NoError(store.SaveParticipant(ctx, second))

	req.NotZero(first.Seq)
	req.Greater(second.Seq, first.Seq, "sequence follows creation order, not external id")
	req.Equal(database.AvailabilityAvailable, first.Availability)

	fetched, err := store.GetParticipant(ctx, 1001)
	req.NoError(err)
	req.NotNil(fetched)
	req.Equal("Alice", fetched.DisplayName)
	req.False(fetched.IsOperator)
	req.Empty(fetched.SupportedLanguages)
	req.Empty(fetched.SelectedLanguage)
	req.Equal(first.Seq, fetched.Seq)
}

func TestSaveParticipant_UpdatesExisting(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	p := &database.Participant{ID: 7, DisplayName: "Op"}
	req.NoError(store.SaveParticipant(ctx, p))
	seq := p.Seq

	p.IsOperator = true
	p.SupportedLanguages = database.LanguageSet{"ru", "en"}
	p.Availability = database.AvailabilityBusy
	p.SelectedLanguage = "ru"
	req.NoError(store.SaveParticipant(ctx, p))
	req.Equal(seq, p.Seq)

	fetched, err := store.GetParticipant(ctx, 7)
	req.NoError(err)
	req.True(fetched.IsOperator)
	req.Equal(database.LanguageSet{"ru", "en"}, fetched.SupportedLanguages)
	req.Equal(database.AvailabilityBusy, fetched.Availability)
	req.Equal("ru", fetched.SelectedLanguage)
}

func TestGetParticipant_NotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	p, err := store.GetParticipant(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = store.GetParticipant(context.Background(), 0)
	assert.Error(t, err)
}

func TestFindOperatorsByStatusAndLanguage(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	participants := []*database.Participant{
		{ID: 30, IsOperator: true, SupportedLanguages: database.LanguageSet{"en"}, Availability: database.AvailabilityAvailable},
		{ID: 20, IsOperator: true, SupportedLanguages: database.LanguageSet{"ru", "en"}, Availability: database.AvailabilityAvailable},
		{ID: 10, IsOperator: true, SupportedLanguages: database.LanguageSet{"ru"}, Availability: database.AvailabilityBusy},
		{ID: 40, IsOperator: false, SelectedLanguage: "ru"},
		{ID: 50, IsOperator: true, SupportedLanguages: database.LanguageSet{"rus"}, Availability: database.AvailabilityAvailable},
		{ID: 60, IsOperator: true, SupportedLanguages: database.LanguageSet{"uz", "ru"}, Availability: database.AvailabilityAvailable},
	}
	for _, p := range participants {
		req.NoError(store.SaveParticipant(ctx, p))
	}

	tests := []struct {
		name     string
		status   database.Availability
		language string
		wantIDs  []int64
	}{
		{name: "available ru in creation order", status: database.AvailabilityAvailable, language: "ru", wantIDs: []int64{20, 60}},
		{name: "available en", status: database.AvailabilityAvailable, language: "en", wantIDs: []int64{30, 20}},
		{name: "busy ru", status: database.AvailabilityBusy, language: "ru", wantIDs: []int64{10}},
		{name: "no partial code match", status: database.AvailabilityAvailable, language: "us", wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			operators, err := store.FindOperatorsByStatusAndLanguage(ctx, tt.status, tt.language)
			require.NoError(t, err)

			var ids []int64
			for _, op := range operators {
				ids = append(ids, op.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSessions_CreateCloseAndFind(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	req.NoError(store.SaveParticipant(ctx, &database.Participant{ID: 1}))
	req.NoError(store.SaveParticipant(ctx, &database.Participant{ID: 2, IsOperator: true}))

	session := &database.Session{CustomerID: 1, OperatorID: 2}
	req.NoError(store.SaveSession(ctx, session))
	req.NotZero(session.ID)
	req.Equal(database.SessionActive, session.Status)

	active, err := store.FindSessionsByParticipant(ctx, 1, database.RoleCustomer, database.SessionActive)
	req.NoError(err)
	req.Len(active, 1)
	req.Equal(session.ID, active[0].ID)

	asOperator, err := store.FindSessionsByParticipant(ctx, 1, database.RoleOperator, database.SessionActive)
	req.NoError(err)
	req.Empty(asOperator)

	session.Status = database.SessionClosed
	session.ClosedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	req.NoError(store.SaveSession(ctx, session))

	fetched, err := store.GetSession(ctx, session.ID)
	req.NoError(err)
	req.Equal(database.SessionClosed, fetched.Status)
	req.True(fetched.ClosedAt.Valid)

	active, err = store.FindSessionsByParticipant(ctx, 2, database.RoleOperator, database.SessionActive)
	req.NoError(err)
	req.Empty(active)

	missing, err := store.GetSession(ctx, session.ID+100)
	req.NoError(err)
	req.Nil(missing)
}

func TestSaveSession_RejectsSelfPairing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveParticipant(ctx, &database.Participant{ID: 5}))
	err := store.SaveSession(ctx, &database.Session{CustomerID: 5, OperatorID: 5})
	assert.Error(t, err)
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.RunSQLMaintenance(context.Background()))
}

func TestLanguageSet_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     any
		want    database.LanguageSet
		wantErr bool
	}{
		{name: "nil", src: nil, want: nil},
		{name: "empty string", src: "", want: nil},
		{name: "string", src: "ru,en", want: database.LanguageSet{"ru", "en"}},
		{name: "bytes", src: []byte("uz"), want: database.LanguageSet{"uz"}},
		{name: "unsupported", src: 12, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got database.LanguageSet
			err := got.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			for _, code := range tt.want {
				assert.True(t, got.Contains(code))
			}
		})
	}
}

func TestFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "storage.db", want: "storage.db"},
		{input: "file:storage.db?cache=shared", want: "storage.db"},
		{input: "file:my%20db.sqlite", want: "my db.sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, database.FilePath(tt.input))
		})
	}
}

func TestDataSourceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "storage.db", want: "storage.db?_pragma=busy_timeout(5000)&_txlock=immediate"},
		{input: "file:storage.db?cache=shared", want: "file:storage.db?cache=shared&_pragma=busy_timeout(5000)&_txlock=immediate"},
		{input: "storage.db?_pragma=busy_timeout(100)", want: "storage.db?_pragma=busy_timeout(100)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, database.DataSourceName(tt.input))
			assert.Equal(t, database.FilePath(tt.input), database.FilePath(database.DataSourceName(tt.input)))
		})
	}
}

func TestNewDB_ReportsSchemaVersion(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "schema.db")

	db, err := database.NewDB(path)
	require.NoError(t, err)
	version, dirty, err := database.SchemaVersion(db, path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	database.CloseDB(db)

	// Reopening an up-to-date file is a no-op migration.
	db, err = database.NewDB(path)
	require.NoError(t, err)
	database.CloseDB(db)
}
