package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"cinelist/models"
	"cinelist/services/watchlist"
)

type watchlistService interface {
	Upsert(ctx context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error)
	Remove(ctx context.Context, userID string, tmdbID int64) error
	SetRating(ctx context.Context, userID string, tmdbID int64, rating *int) (models.WatchlistEntry, error)
	List(ctx context.Context, userID string) ([]models.WatchlistEntry, error)
}

var _ watchlistService = (*watchlist.Service)(nil)

type WatchlistHandler struct {
	Service watchlistService
}

func NewWatchlistHandler(service watchlistService) *WatchlistHandler {
	return &WatchlistHandler{Service: service}
}

type rpcResponse struct {
	Success bool                   `json:"success"`
	Created bool                   `json:"created,omitempty"`
	Updated bool                   `json:"updated,omitempty"`
	Removed bool                   `json:"removed,omitempty"`
	Data    *models.WatchlistEntry `json:"data,omitempty"`
}

// RPC dispatches /watchlist-rpc by method.
func (h *WatchlistHandler) RPC(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsert(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	case http.MethodPatch:
		h.rate(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *WatchlistHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var body models.WatchlistUpsert
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, ok := h.requireUser(w, r, body.UserID)
	if !ok {
		return
	}
	if body.TMDBID <= 0 {
		writeError(w, http.StatusBadRequest, "Missing user_id or tmdb_id")
		return
	}
	body.UserID = userID

	res, err := h.Service.Upsert(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	entry := res.Entry
	writeJSON(w, http.StatusOK, rpcResponse{Success: true, Created: res.Created, Updated: !res.Created, Data: &entry})
}

func (h *WatchlistHandler) remove(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := h.requireUser(w, r, q.Get("user_id"))
	if !ok {
		return
	}
	tmdbID, err := strconv.ParseInt(strings.TrimSpace(q.Get("tmdb_id")), 10, 64)
	if err != nil || tmdbID <= 0 {
		writeError(w, http.StatusBadRequest, "Missing user_id or tmdb_id")
		return
	}

	if err := h.Service.Remove(r.Context(), userID, tmdbID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpcResponse{Success: true, Removed: true})
}

func (h *WatchlistHandler) rate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
		TMDBID int64  `json:"tmdb_id"`
		Rating *int   `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, ok := h.requireUser(w, r, body.UserID)
	if !ok {
		return
	}
	if body.TMDBID <= 0 {
		writeError(w, http.StatusBadRequest, "Missing user_id or tmdb_id")
		return
	}

	entry, err := h.Service.SetRating(r.Context(), userID, body.TMDBID, body.Rating)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpcResponse{Success: true, Updated: true, Data: &entry})
}

// List serves GET /watchlist.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	items, err := h.Service.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.WatchlistEntry{"data": items})
}

func (h *WatchlistHandler) requireUser(w http.ResponseWriter, r *http.Request, claimed string) (string, bool) {
	userID, err := resolveUser(r, claimed)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return "", false
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user_id or tmdb_id")
		return "", false
	}
	return userID, true
}

func (h *WatchlistHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrNotCached):
		writeError(w, http.StatusNotFound, "Movie not cached")
	case errors.Is(err, watchlist.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, watchlist.ErrUserIDRequired), errors.Is(err, watchlist.ErrTMDBIDRequired):
		writeError(w, http.StatusBadRequest, "Missing user_id or tmdb_id")
	case errors.Is(err, watchlist.ErrInvalidCategory), errors.Is(err, watchlist.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, watchlist.ErrBackwardTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[watchlist] request failed: %v", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
	}
}
