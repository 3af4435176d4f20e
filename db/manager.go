// Package db stores users and their favorite movies.
//
// Two backends implement DataManager: JSONStore mirrors the whole document to a
// single JSON file, SQLiteStore keeps it in an embedded SQLite database.
package db

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"movieweb/models"
)

// DataManager is the storage contract used by the web layer.
type DataManager interface {
	// GetAllUsers returns a deep copy of every user with their movies.
	GetAllUsers() (models.Document, error)
	// GetUserMovies returns the user's movies keyed by movie ID, or an empty map.
	GetUserMovies(userID string) (map[string]models.Movie, error)
	// ListMovies returns the user's movies sorted by name.
	ListMovies(userID string) ([]models.Movie, error)

	AddUser(name string) (models.User, error)
	UpdateUser(userID, name string) (bool, error)
	DeleteUser(userID string) (bool, error)

	// AddMovie enriches the movie with metadata before storing it.
	AddMovie(ctx context.Context, userID, name, director string, year int, rating float64) (models.Movie, error)
	UpdateMovie(userID, movieID string, patch models.MoviePatch) (bool, error)
	DeleteMovie(userID, movieID string) (bool, error)

	Close() error
}

// AddUserMessage is the status line shown after a user is created.
func AddUserMessage(u models.User) string {
	return fmt.Sprintf("User %s added successfully with ID %s", u.Name, u.ID)
}

// nextUserID returns max(numeric ids)+1, or "1" when there are none.
// Non-numeric ids are ignored.
func nextUserID[T any](users map[string]T) string {
	highest := 0
	for id := range users {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}

// findMovieByName returns the ID of a movie whose name matches case-insensitively,
// skipping exceptID.
func findMovieByName(movies map[string]models.Movie, name, exceptID string) (string, bool) {
	for id, m := range movies {
		if id == exceptID {
			continue
		}
		if strings.EqualFold(m.Name, name) {
			return id, true
		}
	}
	return "", false
}

// sortedMovies orders movies by name, then ID.
func sortedMovies(movies map[string]models.Movie) []models.Movie {
	out := make([]models.Movie, 0, len(movies))
	for _, m := range movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func duplicateMovieError(name string) error {
	return fmt.Errorf("%w: movie %q is already in the user's list", ErrDuplicateMovie, name)
}

func userNotFoundError(userID string) error {
	return fmt.Errorf("%w: user with ID %s not found", ErrUserNotFound, userID)
}
