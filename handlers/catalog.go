package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"cinelist/models"
	metadatapkg "cinelist/services/metadata"
)

type catalogService interface {
	Search(ctx context.Context, query string, page int, filters models.SearchFilters) (*models.CatalogPage, error)
	GetDetails(ctx context.Context, tmdbID int64, includeRecommendations bool) (json.RawMessage, error)
	Trending(ctx context.Context, window models.TrendingWindow, page int) (*models.CatalogPage, error)
	Trailer(ctx context.Context, tmdbID int64) (string, error)
}

var _ catalogService = (*metadatapkg.Service)(nil)

type CatalogHandler struct {
	Service catalogService
}

func NewCatalogHandler(s catalogService) *CatalogHandler {
	return &CatalogHandler{Service: s}
}

// Movies serves both searches (?q=) and details lookups (?id=).
func (h *CatalogHandler) Movies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if idStr := strings.TrimSpace(q.Get("id")); idStr != "" {
		tmdbID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || tmdbID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		doc, err := h.Service.GetDetails(r.Context(), tmdbID, q.Get("details") == "true")
		if err != nil {
			log.Printf("[catalog] details tmdb=%d failed: %v", tmdbID, err)
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]json.RawMessage{"movie": doc})
		return
	}

	filters, err := parseSearchFilters(q.Get("with_genres"), q.Get("primary_release_year"),
		q.Get("vote_average.gte"), q.Get("with_original_language"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.Service.Search(r.Context(), q.Get("q"), parsePage(q.Get("page")), filters)
	if err != nil {
		log.Printf("[catalog] search q=%q failed: %v", q.Get("q"), err)
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := models.TrendingWindow(strings.ToLower(strings.TrimSpace(q.Get("time_window"))))

	page, err := h.Service.Trending(r.Context(), window, parsePage(q.Get("page")))
	if err != nil {
		if errors.Is(err, metadatapkg.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[catalog] trending window=%q failed: %v", window, err)
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type trailerResponse struct {
	VideoKey *string `json:"videoKey"`
	Error    string  `json:"error,omitempty"`
}

func (h *CatalogHandler) Trailer(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimSpace(r.URL.Query().Get("id"))
	if idStr == "" {
		writeJSON(w, http.StatusBadRequest, trailerResponse{Error: "Movie ID is required"})
		return
	}
	tmdbID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || tmdbID <= 0 {
		writeJSON(w, http.StatusBadRequest, trailerResponse{Error: "invalid id"})
		return
	}

	key, err := h.Service.Trailer(r.Context(), tmdbID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, trailerResponse{VideoKey: &key})
	case errors.Is(err, metadatapkg.ErrTrailerNotFound):
		writeJSON(w, http.StatusNotFound, trailerResponse{Error: "No trailer found"})
	default:
		log.Printf("[catalog] trailer tmdb=%d failed: %v", tmdbID, err)
		status := metadatapkg.UpstreamStatus(err)
		writeJSON(w, status, trailerResponse{Error: fmt.Sprintf("TMDB API error: %d %s", status, http.StatusText(status))})
	}
}

func parsePage(v string) int {
	page, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func parseSearchFilters(genres, year, minRating, language string) (models.SearchFilters, error) {
	var f models.SearchFilters
	if genres = strings.TrimSpace(genres); genres != "" {
		for _, part := range strings.Split(genres, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return f, errors.New("with_genres must be a comma separated list of genre ids")
			}
			f.GenreIDs = append(f.GenreIDs, id)
		}
	}
	if year = strings.TrimSpace(year); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return f, errors.New("primary_release_year must be a year")
		}
		f.Year = y
	}
	if minRating = strings.TrimSpace(minRating); minRating != "" {
		v, err := strconv.ParseFloat(minRating, 64)
		if err != nil {
			return f, errors.New("vote_average.gte must be a number")
		}
		f.MinRating = &v
	}
	f.Language = strings.TrimSpace(language)
	return f, nil
}
