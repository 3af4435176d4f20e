package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"movieweb/config"
	"movieweb/metadata"
	"movieweb/models"
	"movieweb/utils"
)

// SQLiteStore implements DataManager on top of an SQLite database.
//
// Tables:
//
//	users(id, name)                                   PRIMARY KEY (id)
//	movies(user_id, id, name, director, year, rating,
//	       poster, actors, plot)                      PRIMARY KEY (user_id, id)
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	idScheme string
	fetcher  metadata.Fetcher
	log      *zap.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS movies (
	user_id  TEXT NOT NULL,
	id       TEXT NOT NULL,
	name     TEXT NOT NULL,
	director TEXT NOT NULL DEFAULT '',
	year     INTEGER NOT NULL DEFAULT 0,
	rating   REAL NOT NULL DEFAULT 0,
	poster   TEXT NOT NULL DEFAULT 'N/A',
	actors   TEXT NOT NULL DEFAULT 'N/A',
	plot     TEXT NOT NULL DEFAULT 'N/A',
	PRIMARY KEY (user_id, id)
);`

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string, cfg *config.Config, fetcher metadata.Fetcher, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = metadata.NoopFetcher{}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory for %s: %w", ErrStorageUnavailable, dbPath, err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrStorageUnavailable, dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: configuring %s: %w", ErrStorageUnavailable, dbPath, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema in %s: %w", ErrStorageUnavailable, dbPath, err)
	}

	scheme := config.SchemeUUID
	if cfg != nil && cfg.MovieIDScheme != "" {
		scheme = cfg.MovieIDScheme
	}
	s := &SQLiteStore{
		db:       db,
		path:     dbPath,
		idScheme: scheme,
		fetcher:  fetcher,
		log:      log.Named("sqlitestore"),
	}
	s.log.Info("Opened SQLite store", zap.String("file", dbPath), zap.String("movie_id_scheme", scheme))
	return s, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageError(op, err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func userExists(q rowQuerier, userID string) (bool, error) {
	var one int
	err := q.QueryRow("SELECT 1 FROM users WHERE id = ?", userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageError("looking up user", err)
	}
	return true, nil
}

func scanMovies(q rowQuerier, userID string) (map[string]models.Movie, error) {
	rows, err := q.Query(
		"SELECT id, name, director, year, rating, poster, actors, plot FROM movies WHERE user_id = ?", userID)
	if err != nil {
		return nil, storageError("listing movies", err)
	}
	defer rows.Close()

	movies := make(map[string]models.Movie)
	for rows.Next() {
		var m models.Movie
		if err := rows.Scan(&m.ID, &m.Name, &m.Director, &m.Year, &m.Rating, &m.Poster, &m.Actors, &m.Plot); err != nil {
			return nil, storageError("reading movie", err)
		}
		movies[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("listing movies", err)
	}
	return movies, nil
}

// GetAllUsers assembles the same document shape the JSON store persists.
func (s *SQLiteStore) GetAllUsers() (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, name FROM users")
	if err != nil {
		return nil, storageError("listing users", err)
	}
	doc := models.Document{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			rows.Close()
			return nil, storageError("reading user", err)
		}
		u.Movies = make(map[string]models.Movie)
		doc[u.ID] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageError("listing users", err)
	}

	movieRows, err := s.db.Query(
		"SELECT user_id, id, name, director, year, rating, poster, actors, plot FROM movies")
	if err != nil {
		return nil, storageError("listing movies", err)
	}
	defer movieRows.Close()
	for movieRows.Next() {
		var userID string
		var m models.Movie
		if err := movieRows.Scan(&userID, &m.ID, &m.Name, &m.Director, &m.Year, &m.Rating, &m.Poster, &m.Actors, &m.Plot); err != nil {
			return nil, storageError("reading movie", err)
		}
		if u, ok := doc[userID]; ok {
			u.Movies[m.ID] = m
		}
	}
	if err := movieRows.Err(); err != nil {
		return nil, storageError("listing movies", err)
	}
	return doc, nil
}

func (s *SQLiteStore) GetUserMovies(userID string) (map[string]models.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanMovies(s.db, userID)
}

func (s *SQLiteStore) ListMovies(userID string) ([]models.Movie, error) {
	movies, err := s.GetUserMovies(userID)
	if err != nil {
		return nil, err
	}
	return sortedMovies(movies), nil
}

func (s *SQLiteStore) AddUser(name string) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var u models.User
	err := s.withTx(context.Background(), "adding user", func(tx *sql.Tx) error {
		rows, err := tx.Query("SELECT id FROM users")
		if err != nil {
			return storageError("listing user ids", err)
		}
		ids := make(map[string]struct{})
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return storageError("reading user id", err)
			}
			ids[id] = struct{}{}
		}
		rows.Close()

		u = models.User{ID: nextUserID(ids), Name: name, Movies: map[string]models.Movie{}}
		if _, err := tx.Exec("INSERT INTO users (id, name) VALUES (?, ?)", u.ID, u.Name); err != nil {
			return storageError("inserting user", err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("Added user", zap.String("user_id", u.ID), zap.String("name", u.Name))
	return u, nil
}

func (s *SQLiteStore) UpdateUser(userID, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE users SET name = ? WHERE id = ?", name, userID)
	if err != nil {
		return false, storageError("renaming user", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) DeleteUser(userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	err := s.withTx(context.Background(), "deleting user", func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM users WHERE id = ?", userID)
		if err != nil {
			return storageError("deleting user", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		deleted = true
		if _, err := tx.Exec("DELETE FROM movies WHERE user_id = ?", userID); err != nil {
			return storageError("deleting user movies", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("Deleted user", zap.String("user_id", userID))
	}
	return deleted, nil
}

func (s *SQLiteStore) AddMovie(ctx context.Context, userID, name, director string, year int, rating float64) (models.Movie, error) {
	name = strings.TrimSpace(name)
	if err := s.checkNewMovie(userID, name); err != nil {
		return models.Movie{}, err
	}

	enrichment := s.fetcher.Fetch(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	var movie models.Movie
	err := s.withTx(context.Background(), "adding movie", func(tx *sql.Tx) error {
		ok, err := userExists(tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return userNotFoundError(userID)
		}
		movies, err := scanMovies(tx, userID)
		if err != nil {
			return err
		}
		if _, dup := findMovieByName(movies, name, ""); dup {
			return duplicateMovieError(name)
		}

		movie = models.Movie{
			ID:       s.nextMovieID(userID, movies),
			Name:     name,
			Director: strings.TrimSpace(director),
			Year:     year,
			Rating:   rating,
			Poster:   enrichment.Poster,
			Actors:   enrichment.Actors,
			Plot:     enrichment.Plot,
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO movies
			(user_id, id, name, director, year, rating, poster, actors, plot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, movie.ID, movie.Name, movie.Director, movie.Year, movie.Rating, movie.Poster, movie.Actors, movie.Plot)
		if err != nil {
			return storageError("inserting movie", err)
		}
		return nil
	})
	if err != nil {
		return models.Movie{}, err
	}
	s.log.Info("Added movie", zap.String("user_id", userID), zap.String("movie_id", movie.ID), zap.String("name", name))
	return movie, nil
}

func (s *SQLiteStore) checkNewMovie(userID, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ok, err := userExists(s.db, userID)
	if err != nil {
		return err
	}
	if !ok {
		return userNotFoundError(userID)
	}
	if name == "" {
		return fmt.Errorf("%w: movie name is required", ErrInvalidInput)
	}
	movies, err := scanMovies(s.db, userID)
	if err != nil {
		return err
	}
	if _, dup := findMovieByName(movies, name, ""); dup {
		return duplicateMovieError(name)
	}
	return nil
}

func (s *SQLiteStore) nextMovieID(userID string, movies map[string]models.Movie) string {
	if s.idScheme == config.SchemeSequential {
		id := strconv.Itoa(len(movies) + 1)
		if existing, taken := movies[id]; taken {
			s.log.Warn("Sequential movie ID already in use, existing movie will be replaced",
				zap.String("user_id", userID), zap.String("movie_id", id), zap.String("replaced", existing.Name))
		}
		return id
	}
	for {
		id := utils.GenerateDashlessUUID()
		if _, taken := movies[id]; !taken {
			return id
		}
	}
}

func (s *SQLiteStore) UpdateMovie(userID, movieID string, patch models.MoviePatch) (bool, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return false, fmt.Errorf("%w: movie name cannot be empty", ErrInvalidInput)
		}
		patch.Name = &trimmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	err := s.withTx(context.Background(), "updating movie", func(tx *sql.Tx) error {
		movies, err := scanMovies(tx, userID)
		if err != nil {
			return err
		}
		movie, ok := movies[movieID]
		if !ok {
			return nil
		}
		if patch.Name != nil {
			if _, dup := findMovieByName(movies, *patch.Name, movieID); dup {
				return duplicateMovieError(*patch.Name)
			}
		}
		patch.Apply(&movie)
		_, err = tx.Exec(`UPDATE movies SET name = ?, director = ?, year = ?, rating = ?, poster = ?, actors = ?, plot = ?
			WHERE user_id = ? AND id = ?`,
			movie.Name, movie.Director, movie.Year, movie.Rating, movie.Poster, movie.Actors, movie.Plot, userID, movieID)
		if err != nil {
			return storageError("updating movie", err)
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if updated {
		s.log.Info("Updated movie", zap.String("user_id", userID), zap.String("movie_id", movieID))
	}
	return updated, nil
}

func (s *SQLiteStore) DeleteMovie(userID, movieID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM movies WHERE user_id = ? AND id = ?", userID, movieID)
	if err != nil {
		return false, storageError("deleting movie", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("Deleted movie", zap.String("user_id", userID), zap.String("movie_id", movieID))
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info("SQLite store closed", zap.String("file", s.path))
	return s.db.Close()
}
