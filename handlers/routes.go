package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register mounts the public catalog routes on r and the user routes on a subrouter guarded by
// userMiddleware. A nil middleware leaves the user routes open.
func Register(r *mux.Router, catalog *CatalogHandler, watchlist *WatchlistHandler, recommend *RecommendHandler, userMiddleware mux.MiddlewareFunc) {
	r.HandleFunc("/movies", catalog.Movies).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/trending", catalog.Trending).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/trailer", catalog.Trailer).Methods(http.MethodGet, http.MethodOptions)

	user := r.NewRoute().Subrouter()
	if userMiddleware != nil {
		user.Use(userMiddleware)
	}
	// Method dispatch happens in the handlers so unsupported verbs get a JSON 405.
	user.HandleFunc("/watchlist-rpc", watchlist.RPC)
	user.HandleFunc("/watchlist", watchlist.List).Methods(http.MethodGet, http.MethodOptions)
	user.HandleFunc("/recommend", recommend.Recommend)
}
