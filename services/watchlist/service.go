package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cinelist/internal/database"
	"cinelist/models"
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrTMDBIDRequired = errors.New("tmdb id is required")
	// ErrNotCached means the catalog item has not been fetched into the cache yet. Callers populate
	// it through the catalog proxy and retry.
	ErrNotCached       = errors.New("movie not cached")
	ErrNotFound        = errors.New("watchlist entry not found")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	// ErrBackwardTransition is only returned when strict transitions are enabled.
	ErrBackwardTransition = database.ErrBackwardTransition
)

type catalogLookup interface {
	GetByTMDBID(ctx context.Context, tmdbID int64) (*models.CatalogItem, error)
}

type entryStore interface {
	Upsert(ctx context.Context, userID string, movieID int64, category models.Category, rating *int, forwardOnly bool) (models.WatchlistEntry, bool, error)
	UpdateRating(ctx context.Context, userID string, movieID int64, rating *int) (*models.WatchlistEntry, error)
	Delete(ctx context.Context, userID string, movieID int64) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.WatchlistEntry, error)
}

var (
	_ catalogLookup = (*database.CatalogRepository)(nil)
	_ entryStore    = (*database.WatchlistRepository)(nil)
)

// Options tunes the sync protocol.
type Options struct {
	// StrictTransitions rejects category changes that move an entry backwards.
	StrictTransitions bool
}

// Service implements the idempotent watchlist protocol on top of the catalog cache and entry store.
type Service struct {
	catalog catalogLookup
	entries entryStore
	strict  bool
}

func NewService(catalog catalogLookup, entries entryStore, opts Options) *Service {
	return &Service{catalog: catalog, entries: entries, strict: opts.StrictTransitions}
}

// Upsert creates the user's entry for the movie or overwrites its category and rating. Repeating a
// call with the same arguments leaves one entry with the same content.
func (s *Service) Upsert(ctx context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return models.WatchlistUpsertResult{}, ErrUserIDRequired
	}
	if in.TMDBID <= 0 {
		return models.WatchlistUpsertResult{}, ErrTMDBIDRequired
	}
	category, err := models.ParseCategory(string(in.Category))
	if err != nil {
		return models.WatchlistUpsertResult{}, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}
	if !models.ValidRating(in.Rating) {
		return models.WatchlistUpsertResult{}, ErrInvalidRating
	}

	movie, err := s.resolve(ctx, in.TMDBID)
	if err != nil {
		return models.WatchlistUpsertResult{}, err
	}
	if movie == nil {
		return models.WatchlistUpsertResult{}, ErrNotCached
	}

	entry, created, err := s.entries.Upsert(ctx, userID, movie.ID, category, in.Rating, s.strict)
	if err != nil {
		return models.WatchlistUpsertResult{}, err
	}
	entry.TMDBID = movie.TMDBID

	action := "updated"
	if created {
		action = "created"
	}
	log.Printf("[watchlist] %s entry user=%s tmdb=%d category=%s", action, userID, movie.TMDBID, category)
	return models.WatchlistUpsertResult{Entry: entry, Created: created}, nil
}

// Remove deletes the user's entry for the movie.
func (s *Service) Remove(ctx context.Context, userID string, tmdbID int64) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	if tmdbID <= 0 {
		return ErrTMDBIDRequired
	}
	movie, err := s.resolve(ctx, tmdbID)
	if err != nil {
		return err
	}
	if movie == nil {
		return ErrNotFound
	}
	removed, err := s.entries.Delete(ctx, userID, movie.ID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	log.Printf("[watchlist] removed entry user=%s tmdb=%d", userID, tmdbID)
	return nil
}

// SetRating updates only the rating of an existing entry. A nil rating clears it.
func (s *Service) SetRating(ctx context.Context, userID string, tmdbID int64, rating *int) (models.WatchlistEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.WatchlistEntry{}, ErrUserIDRequired
	}
	if tmdbID <= 0 {
		return models.WatchlistEntry{}, ErrTMDBIDRequired
	}
	if !models.ValidRating(rating) {
		return models.WatchlistEntry{}, ErrInvalidRating
	}
	movie, err := s.resolve(ctx, tmdbID)
	if err != nil {
		return models.WatchlistEntry{}, err
	}
	if movie == nil {
		return models.WatchlistEntry{}, ErrNotFound
	}
	entry, err := s.entries.UpdateRating(ctx, userID, movie.ID, rating)
	if err != nil {
		return models.WatchlistEntry{}, err
	}
	if entry == nil {
		return models.WatchlistEntry{}, ErrNotFound
	}
	entry.TMDBID = movie.TMDBID
	return *entry, nil
}

// List returns the user's entries, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.entries.ListByUser(ctx, userID)
}

func (s *Service) resolve(ctx context.Context, tmdbID int64) (*models.CatalogItem, error) {
	movie, err := s.catalog.GetByTMDBID(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("resolve movie %d: %w", tmdbID, err)
	}
	return movie, nil
}
