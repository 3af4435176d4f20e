package db

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieweb/metadata"
	"movieweb/models"
)

// stubFetcher returns a fixed enrichment and records the titles it was asked for.
type stubFetcher struct {
	result models.Enrichment
	calls  int32
	mu     sync.Mutex
	titles []string
}

func (f *stubFetcher) Fetch(_ context.Context, title string) models.Enrichment {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.titles = append(f.titles, title)
	f.mu.Unlock()
	return f.result
}

func matrixEnrichment() models.Enrichment {
	return models.Enrichment{Poster: "matrix.jpg", Actors: "Keanu Reeves, Carrie-Anne Moss", Plot: "Red pill or blue pill."}
}

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}

// storeFactory builds an empty DataManager that uses fetcher for enrichment.
type storeFactory func(t *testing.T, fetcher metadata.Fetcher) DataManager

// runDataManagerTests checks the behavior every backend must share.
func runDataManagerTests(t *testing.T, newStore storeFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("first user gets ID 1", func(t *testing.T) {
		s := newStore(t, &stubFetcher{result: matrixEnrichment()})
		u, err := s.AddUser("  Alice  ")
		require.NoError(t, err)
		assert.Equal(t, "1", u.ID)
		assert.Equal(t, "Alice", u.Name)
		assert.Empty(t, u.Movies)
		assert.Equal(t, "User Alice added successfully with ID 1", AddUserMessage(u))
	})

	t.Run("empty user name is rejected", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		_, err := s.AddUser("   ")
		assert.ErrorIs(t, err, ErrInvalidInput)
		users, err := s.GetAllUsers()
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("user IDs follow the highest ID after deletions", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		for _, name := range []string{"A", "B", "C"} {
			_, err := s.AddUser(name)
			require.NoError(t, err)
		}
		ok, err := s.DeleteUser("2")
		require.NoError(t, err)
		require.True(t, ok)

		u, err := s.AddUser("D")
		require.NoError(t, err)
		assert.Equal(t, "4", u.ID)
	})

	t.Run("add movie stores enrichment", func(t *testing.T) {
		fetcher := &stubFetcher{result: matrixEnrichment()}
		s := newStore(t, fetcher)
		u, err := s.AddUser("Alice")
		require.NoError(t, err)

		m, err := s.AddMovie(ctx, u.ID, " The Matrix ", "Wachowskis", 1999, 8.7)
		require.NoError(t, err)
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, "The Matrix", m.Name)
		assert.Equal(t, "matrix.jpg", m.Poster)
		assert.Equal(t, "Keanu Reeves, Carrie-Anne Moss", m.Actors)
		assert.Equal(t, []string{"The Matrix"}, fetcher.titles)

		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]models.Movie{m.ID: m}, movies)
	})

	t.Run("failed lookup stores N/A", func(t *testing.T) {
		s := newStore(t, metadata.NoopFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)

		m, err := s.AddMovie(ctx, u.ID, "Unknown Film", "Nobody", 2001, 5)
		require.NoError(t, err)
		assert.Equal(t, models.NotAvailable, m.Poster)
		assert.Equal(t, models.NotAvailable, m.Actors)
		assert.Equal(t, models.NotAvailable, m.Plot)
	})

	t.Run("add movie to unknown user", func(t *testing.T) {
		fetcher := &stubFetcher{}
		s := newStore(t, fetcher)
		_, err := s.AddMovie(ctx, "42", "Heat", "Mann", 1995, 8.3)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Zero(t, atomic.LoadInt32(&fetcher.calls), "no lookup for a missing user")
	})

	t.Run("add movie with empty name", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, u.ID, "  ", "Someone", 2000, 1)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("duplicate names differ only in case", func(t *testing.T) {
		fetcher := &stubFetcher{result: matrixEnrichment()}
		s := newStore(t, fetcher)
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, u.ID, "Matrix", "Wachowskis", 1999, 8.7)
		require.NoError(t, err)

		_, err = s.AddMovie(ctx, u.ID, "matrix", "Wachowskis", 1999, 8.7)
		assert.ErrorIs(t, err, ErrDuplicateMovie)
		assert.EqualValues(t, 1, atomic.LoadInt32(&fetcher.calls), "duplicate is rejected before the lookup")

		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		assert.Len(t, movies, 1)
	})

	t.Run("same movie for two users", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		a, err := s.AddUser("Alice")
		require.NoError(t, err)
		b, err := s.AddUser("Bob")
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, a.ID, "Heat", "Mann", 1995, 8.3)
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, b.ID, "HEAT", "Mann", 1995, 8.3)
		assert.NoError(t, err)
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		s := newStore(t, &stubFetcher{result: matrixEnrichment()})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		m, err := s.AddMovie(ctx, u.ID, "The Matrix", "Wachowskis", 1999, 8.7)
		require.NoError(t, err)

		ok, err := s.UpdateMovie(u.ID, m.ID, models.MoviePatch{Rating: floatPtr(9.5)})
		require.NoError(t, err)
		assert.True(t, ok)

		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		want := m
		want.Rating = 9.5
		assert.Equal(t, want, movies[m.ID])
	})

	t.Run("update several fields", func(t *testing.T) {
		s := newStore(t, &stubFetcher{result: matrixEnrichment()})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		m, err := s.AddMovie(ctx, u.ID, "Matrix", "Wachowskis", 1998, 8)
		require.NoError(t, err)

		ok, err := s.UpdateMovie(u.ID, m.ID, models.MoviePatch{
			Name: strPtr("The Matrix"), Year: intPtr(1999), Plot: strPtr("A hacker wakes up."),
		})
		require.NoError(t, err)
		require.True(t, ok)

		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		got := movies[m.ID]
		assert.Equal(t, "The Matrix", got.Name)
		assert.Equal(t, 1999, got.Year)
		assert.Equal(t, "A hacker wakes up.", got.Plot)
		assert.Equal(t, "Wachowskis", got.Director)
		assert.Equal(t, "matrix.jpg", got.Poster)
	})

	t.Run("update rejects empty and duplicate names", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		heat, err := s.AddMovie(ctx, u.ID, "Heat", "Mann", 1995, 8.3)
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, u.ID, "Alien", "Scott", 1979, 8.5)
		require.NoError(t, err)

		_, err = s.UpdateMovie(u.ID, heat.ID, models.MoviePatch{Name: strPtr(" ")})
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = s.UpdateMovie(u.ID, heat.ID, models.MoviePatch{Name: strPtr("ALIEN")})
		assert.ErrorIs(t, err, ErrDuplicateMovie)

		ok, err := s.UpdateMovie(u.ID, heat.ID, models.MoviePatch{Name: strPtr("heat")})
		require.NoError(t, err, "renaming a movie to itself in another case is allowed")
		assert.True(t, ok)
	})

	t.Run("update missing user or movie", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)

		ok, err := s.UpdateMovie("99", "1", models.MoviePatch{Rating: floatPtr(1)})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.UpdateMovie(u.ID, "missing", models.MoviePatch{Rating: floatPtr(1)})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete movie", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		m, err := s.AddMovie(ctx, u.ID, "Heat", "Mann", 1995, 8.3)
		require.NoError(t, err)

		before, err := s.GetAllUsers()
		require.NoError(t, err)
		ok, err := s.DeleteMovie(u.ID, "does-not-exist")
		require.NoError(t, err)
		assert.False(t, ok)
		after, err := s.GetAllUsers()
		require.NoError(t, err)
		assert.Equal(t, before, after, "deleting an unknown movie changes nothing")

		ok, err = s.DeleteMovie(u.ID, m.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		assert.Empty(t, movies)

		ok, err = s.DeleteMovie("99", m.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rename and delete user", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, u.ID, "Heat", "Mann", 1995, 8.3)
		require.NoError(t, err)

		ok, err := s.UpdateUser(u.ID, "Alicia")
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = s.UpdateUser(u.ID, "")
		assert.ErrorIs(t, err, ErrInvalidInput)

		ok, err = s.UpdateUser("99", "Nobody")
		require.NoError(t, err)
		assert.False(t, ok)

		users, err := s.GetAllUsers()
		require.NoError(t, err)
		assert.Equal(t, "Alicia", users[u.ID].Name)

		ok, err = s.DeleteUser(u.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		assert.Empty(t, movies)

		ok, err = s.DeleteUser(u.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reads of unknown user are empty", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		movies, err := s.GetUserMovies("404")
		require.NoError(t, err)
		assert.NotNil(t, movies)
		assert.Empty(t, movies)

		list, err := s.ListMovies("404")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("list movies is sorted by name", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		for _, name := range []string{"Zodiac", "alien", "Heat"} {
			_, err := s.AddMovie(ctx, u.ID, name, "", 2000, 7)
			require.NoError(t, err)
		}
		list, err := s.ListMovies(u.ID)
		require.NoError(t, err)
		names := make([]string, 0, len(list))
		for _, m := range list {
			names = append(names, m.Name)
		}
		assert.Equal(t, []string{"alien", "Heat", "Zodiac"}, names)
	})

	t.Run("returned document is a copy", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)
		_, err = s.AddMovie(ctx, u.ID, "Heat", "Mann", 1995, 8.3)
		require.NoError(t, err)

		users, err := s.GetAllUsers()
		require.NoError(t, err)
		for id := range users[u.ID].Movies {
			delete(users[u.ID].Movies, id)
		}
		movies, err := s.GetUserMovies(u.ID)
		require.NoError(t, err)
		assert.Len(t, movies, 1)
	})

	t.Run("concurrent adds keep names unique", func(t *testing.T) {
		s := newStore(t, &stubFetcher{})
		u, err := s.AddUser("Alice")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var added, dups int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := "Heat"
				if i%2 == 1 {
					name = strings.ToUpper(name)
				}
				_, err := s.AddMovie(ctx, u.ID, name, "Mann", 1995, 8.3)
				switch {
				case err == nil:
					atomic.AddInt32(&added, 1)
				case assert.ErrorIs(t, err, ErrDuplicateMovie):
					atomic.AddInt32(&dups, 1)
				}
			}(i)
		}
		wg.Wait()

		assert.EqualValues(t, 1, added)
		assert.EqualValues(t, 7, dups)
	})
}
