package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieweb/config"
	"movieweb/metadata"
)

func setupSQLiteStore(t *testing.T, cfg *config.Config, fetcher metadata.Fetcher) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "movies.db"), cfg, fetcher, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	runDataManagerTests(t, func(t *testing.T, fetcher metadata.Fetcher) DataManager {
		return setupSQLiteStore(t, &config.Config{MovieIDScheme: config.SchemeUUID}, fetcher)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "movies.db")
	cfg := &config.Config{MovieIDScheme: config.SchemeUUID}

	s, err := NewSQLiteStore(path, cfg, &stubFetcher{result: matrixEnrichment()}, nil)
	require.NoError(t, err)
	u, err := s.AddUser("Alice")
	require.NoError(t, err)
	_, err = s.AddMovie(context.Background(), u.ID, "The Matrix", "Wachowskis", 1999, 8.7)
	require.NoError(t, err)
	want, err := s.GetAllUsers()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, cfg, nil, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetAllUsers()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteStore_SequentialMovieIDs(t *testing.T) {
	s := setupSQLiteStore(t, &config.Config{MovieIDScheme: config.SchemeSequential}, nil)
	ctx := context.Background()

	u, err := s.AddUser("Alice")
	require.NoError(t, err)
	first, err := s.AddMovie(ctx, u.ID, "One", "", 2000, 7)
	require.NoError(t, err)
	second, err := s.AddMovie(ctx, u.ID, "Two", "", 2000, 7)
	require.NoError(t, err)

	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "2", second.ID)
}

func TestSQLiteStore_ClosedDatabaseReportsStorageError(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "movies.db"), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.AddUser("Alice")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	_, err = s.GetAllUsers()
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
