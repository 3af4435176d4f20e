package db

import (
	"sort"
	"strconv"
	"strings"

	"movieweb/models"
)

// DefaultPageSize is the number of movies per page of the movie list.
const DefaultPageSize = 4

// UserMovie is a movie together with its owner, as shown on the movie list.
type UserMovie struct {
	UserID   string       `json:"user_id"`
	UserName string       `json:"user_name"`
	Movie    models.Movie `json:"movie"`
}

// CalculateTotalPages returns ceil(total movies / pageSize).
// A non-positive pageSize uses DefaultPageSize.
func CalculateTotalPages(doc models.Document, pageSize int) int {
	return pageCount(doc.MovieCount(), pageSize)
}

func pageCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return (total + pageSize - 1) / pageSize
}

// lessID orders numeric ids numerically and everything else after them, lexically.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// SortedUsers returns the users ordered by numeric ID.
func SortedUsers(doc models.Document) []models.User {
	users := make([]models.User, 0, len(doc))
	for _, u := range doc {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return lessID(users[i].ID, users[j].ID) })
	return users
}

// FlattenMovies lists every movie with its owner, ordered by owner ID then movie name.
func FlattenMovies(doc models.Document) []UserMovie {
	out := make([]UserMovie, 0, doc.MovieCount())
	for _, u := range SortedUsers(doc) {
		for _, m := range sortedMovies(u.Movies) {
			out = append(out, UserMovie{UserID: u.ID, UserName: u.Name, Movie: m})
		}
	}
	return out
}

// FilterMovies keeps the movies matching filter. A nil filter keeps everything.
func FilterMovies(items []UserMovie, filter *MovieFilter) ([]UserMovie, error) {
	if filter == nil {
		return items, nil
	}
	out := make([]UserMovie, 0, len(items))
	for _, item := range items {
		ok, err := filter.Match(item.Movie)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// Paginate returns the requested page of items and the total page count.
// Pages start at 1; a page past the end yields an empty slice.
func Paginate(items []UserMovie, page, pageSize int) ([]UserMovie, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	total := pageCount(len(items), pageSize)

	start := (page - 1) * pageSize
	if start >= len(items) {
		return []UserMovie{}, total
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

// ParsePage converts a page query value, defaulting to 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
