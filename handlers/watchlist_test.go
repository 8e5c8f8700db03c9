package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelist/internal/auth"
	"cinelist/models"
	"cinelist/services/watchlist"
)

type stubWatchlist struct {
	upsertResult models.WatchlistUpsertResult
	upsertErr    error
	lastUpsert   models.WatchlistUpsert
	removeErr    error
	lastRemove   string
	rateEntry    models.WatchlistEntry
	rateErr      error
	lastRating   *int
	listItems    []models.WatchlistEntry
	listErr      error
	lastUser     string
}

func (s *stubWatchlist) Upsert(_ context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
	s.lastUpsert = in
	return s.upsertResult, s.upsertErr
}

func (s *stubWatchlist) Remove(_ context.Context, userID string, _ int64) error {
	s.lastRemove = userID
	return s.removeErr
}

func (s *stubWatchlist) SetRating(_ context.Context, userID string, _ int64, rating *int) (models.WatchlistEntry, error) {
	s.lastUser, s.lastRating = userID, rating
	return s.rateEntry, s.rateErr
}

func (s *stubWatchlist) List(_ context.Context, userID string) ([]models.WatchlistEntry, error) {
	s.lastUser = userID
	return s.listItems, s.listErr
}

func rpcRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWatchlistRPCUpsertCreated(t *testing.T) {
	stub := &stubWatchlist{upsertResult: models.WatchlistUpsertResult{
		Entry:   models.WatchlistEntry{ID: "e1", UserID: "u1", TMDBID: 603, Category: models.CategoryWantToWatch},
		Created: true,
	}}
	rec := httptest.NewRecorder()
	NewWatchlistHandler(stub).RPC(rec, rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":603}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["created"])
	assert.NotContains(t, body, "updated")
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "e1", data["id"])
	assert.Equal(t, "u1", stub.lastUpsert.UserID)
	assert.Nil(t, stub.lastUpsert.Rating)
}

func TestWatchlistRPCUpsertUpdated(t *testing.T) {
	stub := &stubWatchlist{upsertResult: models.WatchlistUpsertResult{Entry: models.WatchlistEntry{ID: "e1"}}}
	rec := httptest.NewRecorder()
	NewWatchlistHandler(stub).RPC(rec, rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":603,"category":"watched","rating":4}`))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["updated"])
	assert.NotContains(t, body, "created")
	assert.Equal(t, models.CategoryWatched, stub.lastUpsert.Category)
	require.NotNil(t, stub.lastUpsert.Rating)
	assert.Equal(t, 4, *stub.lastUpsert.Rating)
}

func TestWatchlistRPCErrors(t *testing.T) {
	cases := []struct {
		name    string
		req     *http.Request
		stub    *stubWatchlist
		status  int
		message string
	}{
		{"missing tmdb id", rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1"}`), &stubWatchlist{}, http.StatusBadRequest, "Missing user_id or tmdb_id"},
		{"missing user", rpcRequest(http.MethodPost, "/watchlist-rpc", `{"tmdb_id":5}`), &stubWatchlist{}, http.StatusBadRequest, "Missing user_id or tmdb_id"},
		{"bad json", rpcRequest(http.MethodPost, "/watchlist-rpc", `{`), &stubWatchlist{}, http.StatusBadRequest, "invalid request body"},
		{"not cached", rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":5}`), &stubWatchlist{upsertErr: watchlist.ErrNotCached}, http.StatusNotFound, "Movie not cached"},
		{"bad rating", rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":5,"rating":9}`), &stubWatchlist{upsertErr: watchlist.ErrInvalidRating}, http.StatusBadRequest, watchlist.ErrInvalidRating.Error()},
		{"backward", rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":5,"category":"watching"}`), &stubWatchlist{upsertErr: watchlist.ErrBackwardTransition}, http.StatusConflict, watchlist.ErrBackwardTransition.Error()},
		{"remove missing", rpcRequest(http.MethodDelete, "/watchlist-rpc?user_id=u1&tmdb_id=5", ""), &stubWatchlist{removeErr: watchlist.ErrNotFound}, http.StatusNotFound, watchlist.ErrNotFound.Error()},
		{"remove bad id", rpcRequest(http.MethodDelete, "/watchlist-rpc?user_id=u1&tmdb_id=abc", ""), &stubWatchlist{}, http.StatusBadRequest, "Missing user_id or tmdb_id"},
		{"method", rpcRequest(http.MethodPut, "/watchlist-rpc", `{}`), &stubWatchlist{}, http.StatusMethodNotAllowed, "Method not allowed"},
		{"storage failure is not echoed", rpcRequest(http.MethodPost, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":5}`), &stubWatchlist{upsertErr: errors.New("sqlite: database is locked")}, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewWatchlistHandler(tc.stub).RPC(rec, tc.req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, decodeBody(t, rec)["error"])
		})
	}
}

func TestWatchlistRPCRemoveAndRate(t *testing.T) {
	stub := &stubWatchlist{rateEntry: models.WatchlistEntry{ID: "e1"}}
	h := NewWatchlistHandler(stub)

	rec := httptest.NewRecorder()
	h.RPC(rec, rpcRequest(http.MethodDelete, "/watchlist-rpc?user_id=u1&tmdb_id=603", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["removed"])
	assert.Equal(t, "u1", stub.lastRemove)

	rec = httptest.NewRecorder()
	h.RPC(rec, rpcRequest(http.MethodPatch, "/watchlist-rpc", `{"user_id":"u1","tmdb_id":603,"rating":null}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["updated"])
	assert.Nil(t, stub.lastRating)
}

func TestWatchlistVerifiedUser(t *testing.T) {
	stub := &stubWatchlist{listItems: []models.WatchlistEntry{{ID: "e1"}}}
	h := NewWatchlistHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/watchlist", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), "token-user"))
	rec := httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token-user", stub.lastUser)
	assert.Len(t, decodeBody(t, rec)["data"], 1)

	req = httptest.NewRequest(http.MethodGet, "/watchlist?user_id=someone-else", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), "token-user"))
	rec = httptest.NewRecorder()
	h.List(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
