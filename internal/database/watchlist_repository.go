package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cinelist/models"
)

// ErrBackwardTransition is returned by a forward-only upsert that would move an entry back.
var ErrBackwardTransition = errors.New("backward category transition")

// WatchlistRepository stores per-user watchlist entries. (user_id, movie_id) is unique.
type WatchlistRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewWatchlistRepository creates a watchlist repository on an open connection.
func NewWatchlistRepository(db *sql.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// categoryRankSQL maps a category column to its lifecycle rank.
func categoryRankSQL(col string) string {
	return fmt.Sprintf("(CASE %s WHEN 'want-to-watch' THEN 0 WHEN 'watching' THEN 1 WHEN 'watched' THEN 2 END)", col)
}

// Upsert creates the entry for (userID, movieID) or overwrites its category and rating in a single
// statement, so concurrent callers converge on one row. created reports which branch ran.
// With forwardOnly set, an update that would lower the category rank is rejected with
// ErrBackwardTransition and nothing is written.
func (r *WatchlistRepository) Upsert(ctx context.Context, userID string, movieID int64, category models.Category, rating *int, forwardOnly bool) (models.WatchlistEntry, bool, error) {
	now := r.now()
	newID := uuid.NewString()

	guard := ""
	if forwardOnly {
		guard = " WHERE " + categoryRankSQL("excluded.category") + " >= " + categoryRankSQL("watchlist.category")
	}

	entry := models.WatchlistEntry{
		UserID:     userID,
		MovieID:    movieID,
		Category:   category,
		UserRating: rating,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO watchlist (id, user_id, movie_id, category, user_rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, movie_id) DO UPDATE SET
			category = excluded.category,
			user_rating = excluded.user_rating,
			updated_at = excluded.updated_at`+guard+`
		RETURNING id, created_at, updated_at`,
		newID, userID, movieID, string(category), rating, now, now,
	).Scan(&entry.ID, scanTime(&entry.CreatedAt), scanTime(&entry.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) && forwardOnly {
		return models.WatchlistEntry{}, false, ErrBackwardTransition
	}
	if err != nil {
		return models.WatchlistEntry{}, false, fmt.Errorf("upsert watchlist entry: %w", err)
	}
	return entry, entry.ID == newID, nil
}

// Get returns the entry for (userID, movieID), or nil if none exists.
func (r *WatchlistRepository) Get(ctx context.Context, userID string, movieID int64) (*models.WatchlistEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT w.id, w.user_id, w.movie_id, m.tmdb_id, w.category, w.user_rating, w.created_at, w.updated_at
		FROM watchlist w JOIN movies m ON m.id = w.movie_id
		WHERE w.user_id = ? AND w.movie_id = ?`, userID, movieID)
	entry, err := scanWatchlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watchlist entry: %w", err)
	}
	return entry, nil
}

// UpdateRating sets the rating of an existing entry. It returns nil when no entry matched.
func (r *WatchlistRepository) UpdateRating(ctx context.Context, userID string, movieID int64, rating *int) (*models.WatchlistEntry, error) {
	entry := models.WatchlistEntry{UserID: userID, MovieID: movieID}
	var category string
	err := r.db.QueryRowContext(ctx, `
		UPDATE watchlist SET user_rating = ?, updated_at = ?
		WHERE user_id = ? AND movie_id = ?
		RETURNING id, category, user_rating, created_at, updated_at`,
		rating, r.now(), userID, movieID,
	).Scan(&entry.ID, &category, &entry.UserRating, scanTime(&entry.CreatedAt), scanTime(&entry.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update watchlist rating: %w", err)
	}
	entry.Category = models.Category(category)
	return &entry, nil
}

// Delete removes the entry for (userID, movieID) and reports whether a row was removed.
func (r *WatchlistRepository) Delete(ctx context.Context, userID string, movieID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	if err != nil {
		return false, fmt.Errorf("delete watchlist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete watchlist entry: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns the user's entries with their movie rows, most recently updated first.
func (r *WatchlistRepository) ListByUser(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT w.id, w.user_id, w.movie_id, m.tmdb_id, w.category, w.user_rating, w.created_at, w.updated_at,
			m.id, m.tmdb_id, m.title, m.overview, m.poster_path, m.backdrop_path, m.release_date,
			m.genres, m.runtime, m.vote_average, m.vote_count, m.tmdb_json, m.is_detailed, m.cached_at
		FROM watchlist w JOIN movies m ON m.id = w.movie_id
		WHERE w.user_id = ?
		ORDER BY w.updated_at DESC, w.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WatchlistEntry{}
	for rows.Next() {
		entry, err := scanWatchlistWithMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	return entries, nil
}

func scanWatchlistEntry(row rowScanner) (*models.WatchlistEntry, error) {
	var (
		entry    models.WatchlistEntry
		category string
		rating   sql.NullInt64
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.MovieID, &entry.TMDBID, &category, &rating,
		scanTime(&entry.CreatedAt), scanTime(&entry.UpdatedAt)); err != nil {
		return nil, err
	}
	entry.Category = models.Category(category)
	entry.UserRating = nullableInt(rating)
	return &entry, nil
}

// watchlistMovieRow adapts a joined row so scanCatalogItem can read the trailing movie columns.
type watchlistMovieRow struct {
	rows  *sql.Rows
	entry *models.WatchlistEntry
}

func (w watchlistMovieRow) Scan(dest ...any) error {
	var (
		category string
		rating   sql.NullInt64
	)
	head := []any{&w.entry.ID, &w.entry.UserID, &w.entry.MovieID, &w.entry.TMDBID, &category, &rating,
		scanTime(&w.entry.CreatedAt), scanTime(&w.entry.UpdatedAt)}
	if err := w.rows.Scan(append(head, dest...)...); err != nil {
		return err
	}
	w.entry.Category = models.Category(category)
	w.entry.UserRating = nullableInt(rating)
	return nil
}

func scanWatchlistWithMovie(rows *sql.Rows) (*models.WatchlistEntry, error) {
	entry := &models.WatchlistEntry{}
	movie, err := scanCatalogItem(watchlistMovieRow{rows: rows, entry: entry})
	if err != nil {
		return nil, err
	}
	entry.Movie = movie
	return entry, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
