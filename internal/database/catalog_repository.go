package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cinelist/models"
)

// CatalogRepository persists cached upstream movie documents keyed by TMDB id.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a catalog repository on an open connection.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const catalogColumns = `id, tmdb_id, title, overview, poster_path, backdrop_path, release_date,
	genres, runtime, vote_average, vote_count, tmdb_json, is_detailed, cached_at`

// GetByTMDBID returns the cached item for tmdbID, or nil when it has never been cached.
func (r *CatalogRepository) GetByTMDBID(ctx context.Context, tmdbID int64) (*models.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM movies WHERE tmdb_id = ?`, tmdbID)
	item, err := scanCatalogItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", tmdbID, err)
	}
	return item, nil
}

// Upsert writes a full document, overwriting any row with the same TMDB id and resetting cached_at.
// The stored row id is written back into item.
func (r *CatalogRepository) Upsert(ctx context.Context, item *models.CatalogItem) error {
	if item == nil || item.TMDBID <= 0 {
		return fmt.Errorf("upsert movie: tmdb id is required")
	}
	if item.CachedAt.IsZero() {
		item.CachedAt = time.Now().UTC()
	}
	genres, raw, err := encodeCatalogJSON(item)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO movies (tmdb_id, title, overview, poster_path, backdrop_path, release_date,
			genres, runtime, vote_average, vote_count, tmdb_json, is_detailed, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tmdb_id) DO UPDATE SET
			title = excluded.title,
			overview = excluded.overview,
			poster_path = excluded.poster_path,
			backdrop_path = excluded.backdrop_path,
			release_date = excluded.release_date,
			genres = excluded.genres,
			runtime = excluded.runtime,
			vote_average = excluded.vote_average,
			vote_count = excluded.vote_count,
			tmdb_json = excluded.tmdb_json,
			is_detailed = excluded.is_detailed,
			cached_at = excluded.cached_at
		RETURNING id`,
		item.TMDBID, item.Title, item.Overview, item.PosterPath, item.BackdropPath, item.ReleaseDate,
		genres, item.Runtime, item.VoteAverage, item.VoteCount, raw, item.Detailed, item.CachedAt.UTC(),
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("upsert movie %d: %w", item.TMDBID, err)
	}
	return nil
}

// UpsertSummaries ingests list results. Rows already holding a details document are left alone so
// a search hit never downgrades a cached detail payload.
func (r *CatalogRepository) UpsertSummaries(ctx context.Context, items []models.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movies (tmdb_id, title, overview, poster_path, backdrop_path, release_date,
			genres, runtime, vote_average, vote_count, tmdb_json, is_detailed, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(tmdb_id) DO UPDATE SET
			title = excluded.title,
			overview = excluded.overview,
			poster_path = excluded.poster_path,
			backdrop_path = excluded.backdrop_path,
			release_date = excluded.release_date,
			vote_average = excluded.vote_average,
			vote_count = excluded.vote_count,
			tmdb_json = excluded.tmdb_json,
			cached_at = excluded.cached_at
		WHERE movies.is_detailed = 0`)
	if err != nil {
		return fmt.Errorf("prepare summary upsert: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		if item.TMDBID <= 0 {
			continue
		}
		if item.CachedAt.IsZero() {
			item.CachedAt = time.Now().UTC()
		}
		genres, raw, err := encodeCatalogJSON(item)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			item.TMDBID, item.Title, item.Overview, item.PosterPath, item.BackdropPath, item.ReleaseDate,
			genres, item.Runtime, item.VoteAverage, item.VoteCount, raw, item.CachedAt.UTC(),
		); err != nil {
			return fmt.Errorf("upsert summary %d: %w", item.TMDBID, err)
		}
	}
	return tx.Commit()
}

func encodeCatalogJSON(item *models.CatalogItem) (string, string, error) {
	genres := item.Genres
	if genres == nil {
		genres = []string{}
	}
	g, err := json.Marshal(genres)
	if err != nil {
		return "", "", fmt.Errorf("encode genres: %w", err)
	}
	raw := string(item.RawDocument)
	if raw == "" {
		raw = "{}"
	}
	return string(g), raw, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (*models.CatalogItem, error) {
	var (
		item     models.CatalogItem
		poster   sql.NullString
		backdrop sql.NullString
		release  sql.NullString
		runtime  sql.NullInt64
		genres   string
		raw      string
	)
	if err := row.Scan(&item.ID, &item.TMDBID, &item.Title, &item.Overview, &poster, &backdrop, &release,
		&genres, &runtime, &item.VoteAverage, &item.VoteCount, &raw, &item.Detailed, scanTime(&item.CachedAt)); err != nil {
		return nil, err
	}
	item.PosterPath = nullableString(poster)
	item.BackdropPath = nullableString(backdrop)
	item.ReleaseDate = nullableString(release)
	if runtime.Valid {
		v := int(runtime.Int64)
		item.Runtime = &v
	}
	if err := json.Unmarshal([]byte(genres), &item.Genres); err != nil {
		item.Genres = []string{}
	}
	item.RawDocument = json.RawMessage(raw)
	return &item, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
