package client

//go:generate mockgen -source=api.go -destination=mock_api_test.go -package=client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cinelist/models"
)

var (
	// ErrUnauthenticated is returned when the server rejects the session.
	ErrUnauthenticated = errors.New("login required")
	// ErrNotCached is returned when the server has no catalog row for the movie yet.
	ErrNotCached = errors.New("movie not cached")
)

// APIError carries any other non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cinelist api: %d %s", e.Status, e.Message)
}

// API is the server surface the Syncer depends on.
type API interface {
	List(ctx context.Context, userID string) ([]models.WatchlistEntry, error)
	Upsert(ctx context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error)
	Remove(ctx context.Context, userID string, tmdbID int64) error
	SetRating(ctx context.Context, userID string, tmdbID int64, rating *int) (models.WatchlistEntry, error)
	// GetDetails asks the server to fetch and cache the movie.
	GetDetails(ctx context.Context, tmdbID int64) error
}

// HTTPClient implements API against a cinelist server.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
	// Token returns the bearer token to send, or "" for none.
	Token func() string
}

var _ API = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, token func() string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Token:   token,
	}
}

type rpcResult struct {
	Success bool                  `json:"success"`
	Created bool                  `json:"created"`
	Updated bool                  `json:"updated"`
	Data    models.WatchlistEntry `json:"data"`
}

func (c *HTTPClient) List(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	var out struct {
		Data []models.WatchlistEntry `json:"data"`
	}
	q := url.Values{"user_id": {userID}}
	if err := c.do(ctx, http.MethodGet, "/watchlist?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) Upsert(ctx context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
	var out rpcResult
	if err := c.do(ctx, http.MethodPost, "/watchlist-rpc", in, &out); err != nil {
		return models.WatchlistUpsertResult{}, err
	}
	return models.WatchlistUpsertResult{Entry: out.Data, Created: out.Created}, nil
}

func (c *HTTPClient) Remove(ctx context.Context, userID string, tmdbID int64) error {
	q := url.Values{"user_id": {userID}, "tmdb_id": {strconv.FormatInt(tmdbID, 10)}}
	return c.do(ctx, http.MethodDelete, "/watchlist-rpc?"+q.Encode(), nil, nil)
}

func (c *HTTPClient) SetRating(ctx context.Context, userID string, tmdbID int64, rating *int) (models.WatchlistEntry, error) {
	body := struct {
		UserID string `json:"user_id"`
		TMDBID int64  `json:"tmdb_id"`
		Rating *int   `json:"rating"`
	}{userID, tmdbID, rating}
	var out rpcResult
	if err := c.do(ctx, http.MethodPatch, "/watchlist-rpc", body, &out); err != nil {
		return models.WatchlistEntry{}, err
	}
	return out.Data, nil
}

func (c *HTTPClient) GetDetails(ctx context.Context, tmdbID int64) error {
	return c.do(ctx, http.MethodGet, "/movies?id="+strconv.FormatInt(tmdbID, 10), nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound && strings.EqualFold(payload.Error, "movie not cached"):
		return ErrNotCached
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}
