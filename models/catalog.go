package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// CatalogStaleAfter is how long a cached catalog document is served before it is re-fetched.
const CatalogStaleAfter = 24 * time.Hour

// CatalogItem is one cached upstream movie record. Promoted fields are typed; everything the
// upstream returned is preserved verbatim in RawDocument.
type CatalogItem struct {
	ID           int64           `json:"id"` // internal row id, referenced by watchlist entries
	TMDBID       int64           `json:"tmdb_id"`
	Title        string          `json:"title"`
	Overview     string          `json:"overview"`
	PosterPath   *string         `json:"poster_path"`
	BackdropPath *string         `json:"backdrop_path"`
	ReleaseDate  *string         `json:"release_date"` // YYYY-MM-DD
	Genres       []string        `json:"genres"`
	Runtime      *int            `json:"runtime"`
	VoteAverage  float64         `json:"vote_average"`
	VoteCount    int             `json:"vote_count"`
	RawDocument  json.RawMessage `json:"tmdb_json,omitempty"`
	CachedAt     time.Time       `json:"cached_at"`
	// Detailed is set when RawDocument is a full details payload rather than a list summary.
	Detailed bool `json:"-"`
}

// IsFresh reports whether the item was cached within the staleness window as of now.
func (c CatalogItem) IsFresh(now time.Time) bool {
	if c.CachedAt.IsZero() {
		return false
	}
	return now.Sub(c.CachedAt) < CatalogStaleAfter
}

// MovieSummary is the subset of an upstream movie object shared by search, discover, trending and
// details payloads. Fields not listed here stay in the raw JSON the summary was decoded from.
type MovieSummary struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	GenreIDs         []int   `json:"genre_ids"`
	OriginalLanguage string  `json:"original_language"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
}

// ReleaseYear returns the year component of ReleaseDate, or 0 when absent or malformed.
func (m MovieSummary) ReleaseYear() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(m.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// CatalogMovie pairs a decoded summary with the raw upstream object it came from.
type CatalogMovie struct {
	MovieSummary
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON emits the raw upstream object so clients see every upstream field.
func (m CatalogMovie) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(m.MovieSummary)
}

// UnmarshalJSON keeps a copy of the raw object alongside the decoded summary.
func (m *CatalogMovie) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &m.MovieSummary); err != nil {
		return err
	}
	m.Raw = append(m.Raw[:0], data...)
	return nil
}

// CatalogItemFromSummary converts an upstream list result into a cache row.
func CatalogItemFromSummary(m CatalogMovie, cachedAt time.Time) CatalogItem {
	return CatalogItem{
		TMDBID:       m.ID,
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   optionalString(m.PosterPath),
		BackdropPath: optionalString(m.BackdropPath),
		ReleaseDate:  optionalString(m.ReleaseDate),
		Genres:       []string{},
		VoteAverage:  m.VoteAverage,
		VoteCount:    m.VoteCount,
		RawDocument:  m.Raw,
		CachedAt:     cachedAt,
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// CastMember is the normalised cast entry attached to detail documents.
type CastMember struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character"`
	ProfilePath *string `json:"profile_path"`
	Order       int     `json:"order"`
}

// SearchFilters narrows a catalog search. Zero values mean "no filter".
type SearchFilters struct {
	GenreIDs  []int
	Year      int
	MinRating *float64
	Language  string
}

// Active reports whether any filter is set.
func (f SearchFilters) Active() bool {
	return len(f.GenreIDs) > 0 || f.Year > 0 || f.MinRating != nil || f.Language != ""
}

// Matches applies every set filter to a result, intersecting the predicates.
func (f SearchFilters) Matches(m MovieSummary) bool {
	if len(f.GenreIDs) > 0 && !anyGenre(f.GenreIDs, m.GenreIDs) {
		return false
	}
	if f.Year > 0 && m.ReleaseYear() != f.Year {
		return false
	}
	if f.MinRating != nil && m.VoteAverage < *f.MinRating {
		return false
	}
	if f.Language != "" && m.OriginalLanguage != f.Language {
		return false
	}
	return true
}

func anyGenre(want, have []int) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

// CatalogPage is one page of list results as returned by /movies and /trending.
type CatalogPage struct {
	Results      []CatalogMovie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Page         int            `json:"page"`
}

// TrendingWindow selects the trending time range.
type TrendingWindow string

const (
	TrendingDay   TrendingWindow = "day"
	TrendingWeek  TrendingWindow = "week"
	TrendingMonth TrendingWindow = "month"
)

// Valid reports whether the window is one of the supported values.
func (w TrendingWindow) Valid() bool {
	switch w {
	case TrendingDay, TrendingWeek, TrendingMonth:
		return true
	}
	return false
}
