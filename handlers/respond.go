package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"cinelist/internal/auth"
	metadatapkg "cinelist/services/metadata"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

const internalErrorMessage = "Internal server error"

// writeCatalogError reports a catalog failure without exposing upstream or storage detail. The
// caller logs the full error.
func writeCatalogError(w http.ResponseWriter, err error) {
	status := catalogErrorStatus(err)
	switch status {
	case http.StatusNotFound:
		writeError(w, status, "Movie not found")
	case http.StatusBadGateway:
		upstream := metadatapkg.UpstreamStatus(err)
		writeError(w, status, fmt.Sprintf("TMDB API error: %d %s", upstream, http.StatusText(upstream)))
	default:
		writeError(w, status, internalErrorMessage)
	}
}

// catalogErrorStatus maps a catalog proxy failure to a response status. Upstream 404s pass through;
// every other upstream failure is reported as a bad gateway.
func catalogErrorStatus(err error) int {
	var ue *metadatapkg.UpstreamError
	if errors.As(err, &ue) {
		if ue.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var errUserMismatch = errors.New("user_id does not match the authenticated user")

// resolveUser picks the acting user. With a verified token the token subject wins and a differing
// claimed id is rejected; without one the claimed id is trusted.
func resolveUser(r *http.Request, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	verified := auth.GetUserID(r)
	if verified == "" {
		return claimed, nil
	}
	if claimed != "" && claimed != verified {
		return "", errUserMismatch
	}
	return verified, nil
}
