package models

// NotAvailable is stored in enrichment fields when no metadata could be obtained.
const NotAvailable = "N/A"

// Movie is one favorite movie of a user.
// IDs are unique within a single user only.
type Movie struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Director string  `json:"director"`
	Year     int     `json:"year"`
	Rating   float64 `json:"rating"`
	Poster   string  `json:"poster"`
	Actors   string  `json:"actors"` // Comma-joined
	Plot     string  `json:"plot"`
}

// User owns a set of movies keyed by movie ID.
type User struct {
	ID     string           `json:"id"` // Numeric string
	Name   string           `json:"name"`
	Movies map[string]Movie `json:"movies"`
}

// Document is the persisted root: every user keyed by user ID.
type Document map[string]User

// Enrichment holds the metadata fields looked up by movie title.
type Enrichment struct {
	Poster string `json:"poster"`
	Actors string `json:"actors"`
	Plot   string `json:"plot"`
}

// EmptyEnrichment returns an Enrichment with every field set to NotAvailable.
func EmptyEnrichment() Enrichment {
	return Enrichment{Poster: NotAvailable, Actors: NotAvailable, Plot: NotAvailable}
}

// MoviePatch lists the movie fields a partial update may change.
// Nil fields are left untouched.
type MoviePatch struct {
	Name     *string  `json:"name,omitempty"`
	Director *string  `json:"director,omitempty"`
	Year     *int     `json:"year,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Poster   *string  `json:"poster,omitempty"`
	Actors   *string  `json:"actors,omitempty"`
	Plot     *string  `json:"plot,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p MoviePatch) IsEmpty() bool {
	return p.Name == nil && p.Director == nil && p.Year == nil && p.Rating == nil &&
		p.Poster == nil && p.Actors == nil && p.Plot == nil
}

// Apply copies every non-nil field of the patch onto m.
func (p MoviePatch) Apply(m *Movie) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Director != nil {
		m.Director = *p.Director
	}
	if p.Year != nil {
		m.Year = *p.Year
	}
	if p.Rating != nil {
		m.Rating = *p.Rating
	}
	if p.Poster != nil {
		m.Poster = *p.Poster
	}
	if p.Actors != nil {
		m.Actors = *p.Actors
	}
	if p.Plot != nil {
		m.Plot = *p.Plot
	}
}

// Clone returns a deep copy of the user, including the movies map.
func (u User) Clone() User {
	movies := make(map[string]Movie, len(u.Movies))
	for id, m := range u.Movies {
		movies[id] = m
	}
	u.Movies = movies
	return u
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for id, u := range d {
		out[id] = u.Clone()
	}
	return out
}

// MovieCount is the number of movies across all users.
func (d Document) MovieCount() int {
	total := 0
	for _, u := range d {
		total += len(u.Movies)
	}
	return total
}
