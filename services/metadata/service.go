package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"cinelist/models"
)

var (
	// ErrInvalidWindow is returned by Trending for an unknown time window.
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrTrailerNotFound is returned when the upstream lists no YouTube trailer for a movie.
	ErrTrailerNotFound = errors.New("no trailer found")
)

const (
	// ingestLimit caps how many list results are written back to the catalog cache per call.
	ingestLimit   = 20
	castLimit     = 10
	monthlyWindow = 30 * 24 * time.Hour
	ingestTimeout = 30 * time.Second

	// detailsFetchTimeout bounds a shared details fetch once it no longer follows a caller's ctx.
	detailsFetchTimeout = 30 * time.Second
)

// catalogStore is the slice of the catalog repository the proxy needs.
type catalogStore interface {
	GetByTMDBID(ctx context.Context, tmdbID int64) (*models.CatalogItem, error)
	Upsert(ctx context.Context, item *models.CatalogItem) error
	UpsertSummaries(ctx context.Context, items []models.CatalogItem) error
}

// Config carries the upstream settings for the catalog proxy.
type Config struct {
	APIKey            string
	BaseURL           string
	Language          string
	RequestsPerSecond float64
	IngestWorkers     int
	HTTPClient        *http.Client
}

// Service fronts the TMDB catalog API with a write-through relational cache.
type Service struct {
	tmdb     *tmdbClient
	cache    catalogStore
	trailers *TrailerCache

	// Collapses concurrent cache misses for the same details document.
	details singleflight.Group

	// Fire-and-forget cache ingestion of list results.
	ingest *pool.Pool

	now func() time.Time
}

func NewService(cfg Config, cache catalogStore, trailers *TrailerCache) *Service {
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "en-US"
	}
	workers := cfg.IngestWorkers
	if workers <= 0 {
		workers = 4
	}
	if trailers == nil {
		trailers = NewTrailerCache(0, models.CatalogStaleAfter, nil)
	}
	return &Service{
		tmdb:     newTMDBClient(cfg.APIKey, cfg.BaseURL, language, cfg.HTTPClient, cfg.RequestsPerSecond),
		cache:    cache,
		trailers: trailers,
		ingest:   pool.New().WithMaxGoroutines(workers),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close waits for pending cache ingestion. The service must not be used afterwards.
func (s *Service) Close() {
	s.ingest.Wait()
}

// Search runs a catalog search. With any filter set it asks /discover and, when that comes back
// empty, falls back to /search with the filters applied locally.
func (s *Service) Search(ctx context.Context, query string, page int, filters models.SearchFilters) (*models.CatalogPage, error) {
	query = strings.TrimSpace(query)
	if page < 1 {
		page = 1
	}
	if query == "" {
		return &models.CatalogPage{Results: []models.CatalogMovie{}, TotalPages: 0, TotalResults: 0, Page: page}, nil
	}

	var (
		resp *tmdbListResponse
		err  error
	)
	if filters.Active() {
		resp, err = s.tmdb.discoverMovies(ctx, query, page, filters)
		if err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			log.Printf("[metadata] discover returned nothing for %q, falling back to search with local filters", query)
			fallback, err := s.tmdb.searchMovies(ctx, query, page)
			if err != nil {
				return nil, err
			}
			// Paging stays the discover response's; only the results come from the fallback.
			resp.Results = filterResults(fallback.Results, filters)
		}
	} else {
		resp, err = s.tmdb.searchMovies(ctx, query, page)
		if err != nil {
			return nil, err
		}
	}

	results := nonNilResults(resp.Results)
	s.ingestAsync(results)

	return &models.CatalogPage{
		Results:      results,
		TotalPages:   resp.TotalPages,
		TotalResults: len(results),
		Page:         pageOr(resp.Page, page),
	}, nil
}

// Trending lists trending movies. The month window is derived from /movie/popular restricted to
// releases from the last 30 days.
func (s *Service) Trending(ctx context.Context, window models.TrendingWindow, page int) (*models.CatalogPage, error) {
	if window == "" {
		window = models.TrendingWeek
	}
	if !window.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWindow, window)
	}
	if page < 1 {
		page = 1
	}

	var (
		resp *tmdbListResponse
		err  error
	)
	if window == models.TrendingMonth {
		resp, err = s.tmdb.popularMovies(ctx, page)
	} else {
		resp, err = s.tmdb.trendingMovies(ctx, window, page)
	}
	if err != nil {
		return nil, err
	}

	results := nonNilResults(resp.Results)
	if window == models.TrendingMonth {
		results = releasedSince(results, s.now().Add(-monthlyWindow))
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Popularity > results[j].Popularity
		})
	}
	s.ingestAsync(results)

	total := resp.TotalResults
	if total == 0 {
		total = len(results)
	}
	totalPages := resp.TotalPages
	if totalPages == 0 {
		totalPages = 1
	}
	return &models.CatalogPage{
		Results:      results,
		TotalPages:   totalPages,
		TotalResults: total,
		Page:         pageOr(resp.Page, page),
	}, nil
}

// GetDetails returns the details document for tmdbID. A fresh cached details document is served
// as-is; otherwise the upstream is queried, a normalised cast list is attached, and the result is
// written back to the cache.
func (s *Service) GetDetails(ctx context.Context, tmdbID int64, includeRecommendations bool) (json.RawMessage, error) {
	if tmdbID <= 0 {
		return nil, fmt.Errorf("invalid tmdb id %d", tmdbID)
	}

	if cached := s.cachedDetails(ctx, tmdbID, includeRecommendations); cached != nil {
		return cached, nil
	}

	key := "details:" + strconv.FormatInt(tmdbID, 10) + ":" + strconv.FormatBool(includeRecommendations)
	// The flight outlives any single caller: it runs detached and each caller waits on its own ctx.
	ch := s.details.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detailsFetchTimeout)
		defer cancel()
		return s.fetchDetails(fetchCtx, tmdbID, includeRecommendations)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Printf("[metadata] shared inflight details fetch for tmdb=%d", tmdbID)
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (s *Service) cachedDetails(ctx context.Context, tmdbID int64, includeRecommendations bool) json.RawMessage {
	if s.cache == nil {
		return nil
	}
	item, err := s.cache.GetByTMDBID(ctx, tmdbID)
	if err != nil {
		log.Printf("[metadata] cache read failed for tmdb=%d: %v", tmdbID, err)
		return nil
	}
	if item == nil || !item.Detailed || !item.IsFresh(s.now()) || len(item.RawDocument) == 0 {
		return nil
	}
	if includeRecommendations && !hasKey(item.RawDocument, "recommendations") {
		return nil
	}
	return item.RawDocument
}

func (s *Service) fetchDetails(ctx context.Context, tmdbID int64, includeRecommendations bool) (json.RawMessage, error) {
	appendTo := []string{"credits", "videos", "release_dates"}
	if includeRecommendations {
		appendTo = append(appendTo, "recommendations")
	}
	raw, err := s.tmdb.movieDetails(ctx, tmdbID, appendTo)
	if err != nil {
		return nil, err
	}

	doc, item, err := normaliseDetails(raw, s.now())
	if err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "decode tmdb details", Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Upsert(ctx, item); err != nil {
			log.Printf("[metadata] cache write failed for tmdb=%d: %v", tmdbID, err)
		}
	}
	return doc, nil
}

type tmdbDetails struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	Runtime      *int    `json:"runtime"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Genres       []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			ID          int64   `json:"id"`
			Name        string  `json:"name"`
			Character   string  `json:"character"`
			ProfilePath *string `json:"profile_path"`
			Order       int     `json:"order"`
		} `json:"cast"`
	} `json:"credits"`
}

// normaliseDetails adds a top-level cast array to the upstream document and derives the cache row.
func normaliseDetails(raw json.RawMessage, now time.Time) (json.RawMessage, *models.CatalogItem, error) {
	var details tmdbDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, err
	}

	cast := make([]models.CastMember, 0, len(details.Credits.Cast))
	for _, c := range details.Credits.Cast {
		cast = append(cast, models.CastMember{
			ID:          c.ID,
			Name:        c.Name,
			Character:   c.Character,
			ProfilePath: c.ProfilePath,
			Order:       c.Order,
		})
	}
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	if len(cast) > castLimit {
		cast = cast[:castLimit]
	}
	castJSON, err := json.Marshal(cast)
	if err != nil {
		return nil, nil, err
	}
	fields["cast"] = castJSON

	doc, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, err
	}

	genres := make([]string, 0, len(details.Genres))
	for _, g := range details.Genres {
		genres = append(genres, g.Name)
	}
	summary := models.CatalogMovie{MovieSummary: models.MovieSummary{
		ID:           details.ID,
		Title:        details.Title,
		Overview:     details.Overview,
		PosterPath:   details.PosterPath,
		BackdropPath: details.BackdropPath,
		ReleaseDate:  details.ReleaseDate,
		VoteAverage:  details.VoteAverage,
		VoteCount:    details.VoteCount,
	}, Raw: doc}
	item := models.CatalogItemFromSummary(summary, now)
	item.Genres = genres
	item.Runtime = details.Runtime
	item.Detailed = true
	return doc, &item, nil
}

// Trailer returns the YouTube key of the movie's trailer, preferring official uploads.
func (s *Service) Trailer(ctx context.Context, tmdbID int64) (string, error) {
	if tmdbID <= 0 {
		return "", fmt.Errorf("invalid tmdb id %d", tmdbID)
	}
	if key, ok := s.trailers.Get(ctx, tmdbID); ok {
		return key, nil
	}

	videos, err := s.tmdb.movieVideos(ctx, tmdbID)
	if err != nil {
		return "", err
	}
	best := selectTrailer(videos)
	if best == nil {
		return "", ErrTrailerNotFound
	}
	s.trailers.Add(ctx, tmdbID, best.Key)
	return best.Key, nil
}

func selectTrailer(videos []tmdbVideo) *tmdbVideo {
	var fallback *tmdbVideo
	for i := range videos {
		v := &videos[i]
		if !strings.EqualFold(v.Site, "youtube") || !strings.EqualFold(v.Type, "trailer") || v.Key == "" {
			continue
		}
		if v.Official {
			return v
		}
		if fallback == nil {
			fallback = v
		}
	}
	return fallback
}

// ingestAsync writes up to ingestLimit list results to the cache without blocking the caller's
// response. Errors are logged.
func (s *Service) ingestAsync(results []models.CatalogMovie) {
	if s.cache == nil || len(results) == 0 {
		return
	}
	if len(results) > ingestLimit {
		results = results[:ingestLimit]
	}
	now := s.now()
	items := make([]models.CatalogItem, 0, len(results))
	for _, m := range results {
		if m.ID <= 0 {
			continue
		}
		items = append(items, models.CatalogItemFromSummary(m, now))
	}
	if len(items) == 0 {
		return
	}

	s.ingest.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := s.cache.UpsertSummaries(ctx, items); err != nil {
			log.Printf("[metadata] ingest of %d results failed: %v", len(items), err)
		}
	})
}

func filterResults(results []models.CatalogMovie, filters models.SearchFilters) []models.CatalogMovie {
	out := make([]models.CatalogMovie, 0, len(results))
	for _, m := range results {
		if filters.Matches(m.MovieSummary) {
			out = append(out, m)
		}
	}
	return out
}

func releasedSince(results []models.CatalogMovie, cutoff time.Time) []models.CatalogMovie {
	out := make([]models.CatalogMovie, 0, len(results))
	for _, m := range results {
		if m.ReleaseDate == "" {
			continue
		}
		released, err := time.Parse("2006-01-02", m.ReleaseDate)
		if err != nil {
			continue
		}
		if !released.Before(cutoff.Truncate(24 * time.Hour)) {
			out = append(out, m)
		}
	}
	return out
}

func nonNilResults(results []models.CatalogMovie) []models.CatalogMovie {
	if results == nil {
		return []models.CatalogMovie{}
	}
	return results
}

func pageOr(upstream, requested int) int {
	if upstream > 0 {
		return upstream
	}
	return requested
}

func hasKey(doc json.RawMessage, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}
