package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"cinelist/services/recommend"
)

type stubRecommender struct {
	text string
	err  error
}

func (s stubRecommender) Recommend(context.Context, string, int64) (string, error) {
	return s.text, s.err
}

func TestRecommendHandler(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		stub   stubRecommender
		status int
		field  string
		want   string
	}{
		{"ok", http.MethodPost, `{"tmdb_id":603,"user_id":"u1"}`, stubRecommender{text: "Watch it."}, http.StatusOK, "recommendation", "Watch it."},
		{"missing", http.MethodPost, `{"user_id":"u1"}`, stubRecommender{err: recommend.ErrMissingInput}, http.StatusBadRequest, "error", "Missing tmdb_id or user_id"},
		{"uncached", http.MethodPost, `{"tmdb_id":1,"user_id":"u1"}`, stubRecommender{err: recommend.ErrMovieNotFound}, http.StatusNotFound, "error", "Movie not found"},
		{"unexpected failure", http.MethodPost, `{"tmdb_id":1,"user_id":"u1"}`, stubRecommender{err: errors.New("boom")}, http.StatusOK, "recommendation", recommend.FallbackBlurb},
		{"method", http.MethodGet, ``, stubRecommender{}, http.StatusMethodNotAllowed, "error", "Method not allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRecommendHandler(tc.stub).Recommend(rec, rpcRequest(tc.method, "/recommend", tc.body))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.want, decodeBody(t, rec)[tc.field])
		})
	}
}
