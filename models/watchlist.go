package models

import (
	"fmt"
	"time"
)

// Category is the lifecycle stage of a watchlist entry. The declaration order is the forward order.
type Category string

const (
	CategoryWantToWatch Category = "want-to-watch"
	CategoryWatching    Category = "watching"
	CategoryWatched     Category = "watched"
)

// DefaultCategory is applied when an upsert does not name a category.
const DefaultCategory = CategoryWantToWatch

var categoryRank = map[Category]int{
	CategoryWantToWatch: 0,
	CategoryWatching:    1,
	CategoryWatched:     2,
}

// ParseCategory validates a wire value. An empty value yields DefaultCategory.
func ParseCategory(v string) (Category, error) {
	if v == "" {
		return DefaultCategory, nil
	}
	c := Category(v)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", v)
	}
	return c, nil
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryRank[c]
	return ok
}

// Next returns the single forward transition from c. watched is terminal.
func (c Category) Next() (Category, bool) {
	switch c {
	case CategoryWantToWatch:
		return CategoryWatching, true
	case CategoryWatching:
		return CategoryWatched, true
	}
	return "", false
}

// NextCategories lists the states a UI may move an entry to from c.
func NextCategories(c Category) []Category {
	if next, ok := c.Next(); ok {
		return []Category{next}
	}
	return []Category{}
}

// IsBackward reports whether moving from -> to goes against the lifecycle order.
func IsBackward(from, to Category) bool {
	return categoryRank[to] < categoryRank[from]
}

// Rating bounds for WatchlistEntry.UserRating.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether r is nil or within [MinRating, MaxRating].
func ValidRating(r *int) bool {
	return r == nil || (*r >= MinRating && *r <= MaxRating)
}

// WatchlistEntry is one user's tracked relationship to a cached catalog item.
type WatchlistEntry struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	MovieID    int64        `json:"movie_id"` // catalog cache row id
	TMDBID     int64        `json:"tmdb_id"`
	Category   Category     `json:"category"`
	UserRating *int         `json:"user_rating"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Movie      *CatalogItem `json:"movie,omitempty"`
}

// WatchlistUpsert captures the arguments of an idempotent create-or-update.
type WatchlistUpsert struct {
	UserID   string   `json:"user_id"`
	TMDBID   int64    `json:"tmdb_id"`
	Category Category `json:"category,omitempty"`
	Rating   *int     `json:"rating"`
}

// WatchlistUpsertResult reports which branch an upsert took.
type WatchlistUpsertResult struct {
	Entry   WatchlistEntry
	Created bool
}
