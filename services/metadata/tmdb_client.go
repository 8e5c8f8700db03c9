package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cinelist/models"
)

const defaultTMDBBaseURL = "https://api.themoviedb.org/3"

// Minimal TMDB v3 client covering search, discover, trending, popular, details and videos.
// Keys issued as v4 read tokens (JWTs, "ey...") are sent as Bearer; v3 keys go in api_key.
type tmdbClient struct {
	apiKey   string
	baseURL  string
	language string
	httpc    *http.Client
	limiter  *rate.Limiter
}

func newTMDBClient(apiKey, baseURL, language string, httpc *http.Client, requestsPerSecond float64) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTMDBBaseURL
	}
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &tmdbClient{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		httpc:    httpc,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

func (c *tmdbClient) isV4() bool {
	return strings.HasPrefix(c.apiKey, "ey")
}

type tmdbListResponse struct {
	Page         int                   `json:"page"`
	Results      []models.CatalogMovie `json:"results"`
	TotalPages   int                   `json:"total_pages"`
	TotalResults int                   `json:"total_results"`
}

type tmdbVideo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

func (c *tmdbClient) searchMovies(ctx context.Context, query string, page int) (*tmdbListResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("include_adult", "false")
	var resp tmdbListResponse
	if err := c.doGET(ctx, "/search/movie", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) discoverMovies(ctx context.Context, query string, page int, filters models.SearchFilters) (*tmdbListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("include_adult", "false")
	if len(filters.GenreIDs) > 0 {
		ids := make([]string, 0, len(filters.GenreIDs))
		for _, id := range filters.GenreIDs {
			ids = append(ids, strconv.Itoa(id))
		}
		q.Set("with_genres", strings.Join(ids, ","))
	}
	if filters.Year > 0 {
		q.Set("primary_release_year", strconv.Itoa(filters.Year))
	}
	if filters.MinRating != nil {
		q.Set("vote_average.gte", strconv.FormatFloat(*filters.MinRating, 'f', -1, 64))
	}
	if filters.Language != "" {
		q.Set("with_original_language", filters.Language)
	}
	if query != "" {
		q.Set("with_keywords", query)
	}
	var resp tmdbListResponse
	if err := c.doGET(ctx, "/discover/movie", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) trendingMovies(ctx context.Context, window models.TrendingWindow, page int) (*tmdbListResponse, error) {
	q := url.Values{}
	q.Set("language", c.language)
	q.Set("page", strconv.Itoa(page))
	var resp tmdbListResponse
	if err := c.doGET(ctx, "/trending/movie/"+string(window), q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) popularMovies(ctx context.Context, page int) (*tmdbListResponse, error) {
	q := url.Values{}
	q.Set("language", c.language)
	q.Set("page", strconv.Itoa(page))
	var resp tmdbListResponse
	if err := c.doGET(ctx, "/movie/popular", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// movieDetails returns the raw details document with the requested appended sub-resources.
func (c *tmdbClient) movieDetails(ctx context.Context, tmdbID int64, appendToResponse []string) (json.RawMessage, error) {
	q := url.Values{}
	if len(appendToResponse) > 0 {
		q.Set("append_to_response", strings.Join(appendToResponse, ","))
	}
	var raw json.RawMessage
	if err := c.doGET(ctx, fmt.Sprintf("/movie/%d", tmdbID), q, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *tmdbClient) movieVideos(ctx context.Context, tmdbID int64) ([]tmdbVideo, error) {
	var resp struct {
		Results []tmdbVideo `json:"results"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("/movie/%d/videos", tmdbID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *tmdbClient) doGET(ctx context.Context, path string, q url.Values, v any) error {
	if !c.isConfigured() {
		return &UpstreamError{Status: http.StatusInternalServerError, Message: "tmdb api key not configured"}
	}
	if q == nil {
		q = url.Values{}
	}
	if !c.isV4() {
		q.Set("api_key", c.apiKey)
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &UpstreamError{Status: http.StatusInternalServerError, Message: "tmdb throttle", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build tmdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.isV4() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Printf("[tmdb] GET %s", path)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &UpstreamError{Status: http.StatusInternalServerError, Message: "tmdb request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &UpstreamError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("tmdb get %s failed: %s: %s", path, resp.Status, strings.TrimSpace(string(body))),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &UpstreamError{Status: http.StatusBadGateway, Message: "decode tmdb response", Err: err}
	}
	return nil
}

// UpstreamError reports a failed call to the catalog API. Status carries the upstream HTTP status
// when one was received, else 500.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamStatus extracts the status to surface for err, defaulting to 500.
func UpstreamStatus(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Status > 0 {
		return ue.Status
	}
	return http.StatusInternalServerError
}
