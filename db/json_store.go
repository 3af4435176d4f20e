package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"movieweb/config"
	"movieweb/metadata"
	"movieweb/models"
	"movieweb/utils"
)

// JSONStore keeps the whole document in memory and rewrites the backing file
// after every successful mutation.
type JSONStore struct {
	mu   sync.RWMutex
	data models.Document

	path     string
	backup   bool
	idScheme string

	fetcher metadata.Fetcher
	log     *zap.Logger
}

// NewJSONStore creates a store backed by cfg.DataFilePath and loads it.
// A missing file starts an empty store; an unreadable or malformed one is an error.
func NewJSONStore(cfg *config.Config, fetcher metadata.Fetcher, log *zap.Logger) (*JSONStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = metadata.NoopFetcher{}
	}
	scheme := cfg.MovieIDScheme
	if scheme == "" {
		scheme = config.SchemeUUID
	}
	s := &JSONStore{
		path:     cfg.DataFilePath,
		backup:   cfg.EnableBackup,
		idScheme: scheme,
		fetcher:  fetcher,
		log:      log.Named("jsonstore"),
	}

	s.log.Info("Initializing JSON store", zap.String("file", s.path), zap.String("movie_id_scheme", scheme))
	doc, err := s.Load()
	if err != nil {
		s.log.Error("Loading data file failed", zap.Error(err))
		return nil, err
	}
	s.data = doc
	return s, nil
}

// Load reads the backing file and returns its document.
// It does not touch the in-memory state.
func (s *JSONStore) Load() (models.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			if leftover := s.leftoverSaveFiles(); len(leftover) > 0 {
				return nil, fmt.Errorf("%w: %s is missing but %s exist; restore one of them before starting",
					ErrStorageUnavailable, s.path, strings.Join(leftover, ", "))
			}
			s.log.Info("Data file not found, starting with an empty store", zap.String("file", s.path))
			return models.Document{}, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStorageUnavailable, s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		s.log.Warn("Data file is empty, starting with an empty store", zap.String("file", s.path))
		return models.Document{}, nil
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrStorageUnavailable, s.path, err)
	}
	doc = normalizeDocument(doc)

	s.log.Info("Loaded data file",
		zap.String("file", s.path),
		zap.Int("users", len(doc)),
		zap.Int("movies", doc.MovieCount()))
	return doc, nil
}

// normalizeDocument fills ids from map keys and replaces nil maps, so files
// written before movies carried their own id load cleanly.
func normalizeDocument(doc models.Document) models.Document {
	if doc == nil {
		return models.Document{}
	}
	for userID, u := range doc {
		if u.ID == "" {
			u.ID = userID
		}
		if u.Movies == nil {
			u.Movies = make(map[string]models.Movie)
		}
		for movieID, m := range u.Movies {
			if m.ID == "" {
				m.ID = movieID
				u.Movies[movieID] = m
			}
		}
		doc[userID] = u
	}
	return doc
}

// Save writes the current document to disk.
func (s *JSONStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// leftoverSaveFiles lists the backup and temp files next to the data file.
// They only exist without the data file after an interrupted save or a manual delete.
func (s *JSONStore) leftoverSaveFiles() []string {
	var found []string
	for _, p := range []string{s.path + ".bak", s.path + ".tmp"} {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	return found
}

// persist serializes the document and atomically replaces the data file.
// The data file is never moved away: the backup is a hard link (or copy) of
// it, and the final rename swaps the new content in.
// The caller must hold the write lock.
func (s *JSONStore) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding document: %w", ErrStorageUnavailable, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrStorageUnavailable, tmpPath, err)
	}

	if s.backup {
		if err := s.backupDataFile(); err != nil {
			s.log.Warn("Creating backup failed, saving anyway", zap.String("backup", s.path+".bak"), zap.Error(err))
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing %s: %w", ErrStorageUnavailable, s.path, err)
	}

	s.log.Debug("Saved data file", zap.String("file", s.path), zap.Int("bytes", len(raw)))
	return nil
}

// backupDataFile points .bak at the current data file. A missing data file
// (first save) is not an error.
func (s *JSONStore) backupDataFile() error {
	backupPath := s.path + ".bak"
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Link(s.path, backupPath); err == nil {
		return nil
	}
	// Filesystems without hard links get a copy.
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return os.WriteFile(backupPath, raw, 0o644)
}

// commit persists the document. On failure the user entry is restored to prev
// (or removed when it did not exist) so memory never runs ahead of disk.
// The caller must hold the write lock.
func (s *JSONStore) commit(userID string, prev models.User, existed bool) error {
	err := s.persist()
	if err == nil {
		return nil
	}
	if existed {
		s.data[userID] = prev
	} else {
		delete(s.data, userID)
	}
	s.log.Error("Persisting change failed, rolled back", zap.String("user_id", userID), zap.Error(err))
	return err
}

// GetAllUsers returns a deep copy of the document.
func (s *JSONStore) GetAllUsers() (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone(), nil
}

// GetUserMovies returns a copy of the user's movies, empty if the user is unknown.
func (s *JSONStore) GetUserMovies(userID string) (map[string]models.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data[userID]
	if !ok {
		return map[string]models.Movie{}, nil
	}
	return u.Clone().Movies, nil
}

func (s *JSONStore) ListMovies(userID string) ([]models.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMovies(s.data[userID].Movies), nil
}

// AddUser creates a user with the next numeric ID.
func (s *JSONStore) AddUser(name string) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := models.User{
		ID:     nextUserID(s.data),
		Name:   name,
		Movies: make(map[string]models.Movie),
	}
	s.data[u.ID] = u
	if err := s.commit(u.ID, models.User{}, false); err != nil {
		return models.User{}, err
	}
	s.log.Info("Added user", zap.String("user_id", u.ID), zap.String("name", u.Name))
	return u.Clone(), nil
}

func (s *JSONStore) UpdateUser(userID, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data[userID]
	if !ok {
		return false, nil
	}
	prev := u.Clone()
	u.Name = name
	s.data[userID] = u
	if err := s.commit(userID, prev, true); err != nil {
		return false, err
	}
	s.log.Info("Renamed user", zap.String("user_id", userID), zap.String("name", name))
	return true, nil
}

// DeleteUser removes the user together with all their movies.
func (s *JSONStore) DeleteUser(userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data[userID]
	if !ok {
		return false, nil
	}
	delete(s.data, userID)
	if err := s.commit(userID, u, true); err != nil {
		return false, err
	}
	s.log.Info("Deleted user", zap.String("user_id", userID), zap.Int("movies", len(u.Movies)))
	return true, nil
}

// AddMovie validates the movie, looks up its metadata and stores it.
// The lookup runs without holding the lock, so the user and name checks are
// repeated before the insert.
func (s *JSONStore) AddMovie(ctx context.Context, userID, name, director string, year int, rating float64) (models.Movie, error) {
	name = strings.TrimSpace(name)

	if err := s.checkNewMovie(userID, name); err != nil {
		return models.Movie{}, err
	}

	enrichment := s.fetcher.Fetch(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data[userID]
	if !ok {
		return models.Movie{}, userNotFoundError(userID)
	}
	if _, dup := findMovieByName(u.Movies, name, ""); dup {
		return models.Movie{}, duplicateMovieError(name)
	}

	prev := u.Clone()
	movie := models.Movie{
		ID:       s.nextMovieID(u),
		Name:     name,
		Director: strings.TrimSpace(director),
		Year:     year,
		Rating:   rating,
		Poster:   enrichment.Poster,
		Actors:   enrichment.Actors,
		Plot:     enrichment.Plot,
	}
	u = u.Clone()
	u.Movies[movie.ID] = movie
	s.data[userID] = u

	if err := s.commit(userID, prev, true); err != nil {
		return models.Movie{}, err
	}
	s.log.Info("Added movie", zap.String("user_id", userID), zap.String("movie_id", movie.ID), zap.String("name", name))
	return movie, nil
}

func (s *JSONStore) checkNewMovie(userID, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.data[userID]
	if !ok {
		return userNotFoundError(userID)
	}
	if name == "" {
		return fmt.Errorf("%w: movie name is required", ErrInvalidInput)
	}
	if _, dup := findMovieByName(u.Movies, name, ""); dup {
		return duplicateMovieError(name)
	}
	return nil
}

// nextMovieID picks the ID for a new movie of u according to the configured scheme.
func (s *JSONStore) nextMovieID(u models.User) string {
	if s.idScheme == config.SchemeSequential {
		id := strconv.Itoa(len(u.Movies) + 1)
		if existing, taken := u.Movies[id]; taken {
			s.log.Warn("Sequential movie ID already in use, existing movie will be replaced",
				zap.String("user_id", u.ID), zap.String("movie_id", id), zap.String("replaced", existing.Name))
		}
		return id
	}
	for {
		id := utils.GenerateDashlessUUID()
		if _, taken := u.Movies[id]; !taken {
			return id
		}
	}
}

// UpdateMovie applies patch to an existing movie. It reports false when the user
// or the movie does not exist.
func (s *JSONStore) UpdateMovie(userID, movieID string, patch models.MoviePatch) (bool, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return false, fmt.Errorf("%w: movie name cannot be empty", ErrInvalidInput)
		}
		patch.Name = &trimmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data[userID]
	if !ok {
		return false, nil
	}
	movie, ok := u.Movies[movieID]
	if !ok {
		return false, nil
	}
	if patch.Name != nil {
		if _, dup := findMovieByName(u.Movies, *patch.Name, movieID); dup {
			return false, duplicateMovieError(*patch.Name)
		}
	}

	prev := u.Clone()
	patch.Apply(&movie)
	u = u.Clone()
	u.Movies[movieID] = movie
	s.data[userID] = u

	if err := s.commit(userID, prev, true); err != nil {
		return false, err
	}
	s.log.Info("Updated movie", zap.String("user_id", userID), zap.String("movie_id", movieID))
	return true, nil
}

func (s *JSONStore) DeleteMovie(userID, movieID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data[userID]
	if !ok {
		return false, nil
	}
	if _, ok := u.Movies[movieID]; !ok {
		return false, nil
	}

	prev := u.Clone()
	u = u.Clone()
	delete(u.Movies, movieID)
	s.data[userID] = u

	if err := s.commit(userID, prev, true); err != nil {
		return false, err
	}
	s.log.Info("Deleted movie", zap.String("user_id", userID), zap.String("movie_id", movieID))
	return true, nil
}

// Close flushes the document one last time. An empty store that never
// had a file is left without one.
func (s *JSONStore) Close() error {
	s.mu.RLock()
	empty := len(s.data) == 0
	s.mu.RUnlock()
	if empty {
		if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := s.Save(); err != nil {
		return err
	}
	s.log.Info("JSON store closed", zap.String("file", s.path))
	return nil
}
