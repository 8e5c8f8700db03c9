package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cinelist/services/recommend"
)

type recommendService interface {
	Recommend(ctx context.Context, userID string, tmdbID int64) (string, error)
}

var _ recommendService = (*recommend.Service)(nil)

type RecommendHandler struct {
	Service recommendService
}

func NewRecommendHandler(s recommendService) *RecommendHandler {
	return &RecommendHandler{Service: s}
}

func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		TMDBID int64  `json:"tmdb_id"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := resolveUser(r, body.UserID)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	text, err := h.Service.Recommend(r.Context(), userID, body.TMDBID)
	switch {
	case errors.Is(err, recommend.ErrMissingInput):
		writeError(w, http.StatusBadRequest, "Missing tmdb_id or user_id")
	case errors.Is(err, recommend.ErrMovieNotFound):
		writeError(w, http.StatusNotFound, "Movie not found")
	case err != nil:
		writeJSON(w, http.StatusOK, map[string]string{"recommendation": recommend.FallbackBlurb})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"recommendation": text})
	}
}
