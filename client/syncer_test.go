package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"cinelist/models"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	n.successes = append(n.successes, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Failure(msg string) {
	n.mu.Lock()
	n.failures = append(n.failures, msg)
	n.mu.Unlock()
}

func intPtr(v int) *int { return &v }

func signedInSyncer(t *testing.T, initial []models.WatchlistEntry) (*Syncer, *MockAPI, *recordingNotifier) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	notes := &recordingNotifier{}
	s := NewSyncer(api, NewMirror(), notes)

	api.EXPECT().List(gomock.Any(), "u1").Return(initial, nil)
	require.NoError(t, s.SignIn(context.Background(), "u1"))
	return s, api, notes
}

func TestSyncerAddRollsBackOnFailure(t *testing.T) {
	existing := []models.WatchlistEntry{{ID: "e7", UserID: "u1", TMDBID: 7, Category: models.CategoryWatching}}
	s, api, notes := signedInSyncer(t, existing)

	api.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
			// The optimistic entry is visible while the call is in flight.
			got, ok := s.Mirror().Get(42)
			assert.True(t, ok)
			assert.Equal(t, PendingCreate, got.State)
			return models.WatchlistUpsertResult{}, &APIError{Status: 500, Message: "database is locked"}
		})
	api.EXPECT().List(gomock.Any(), "u1").Return(existing, nil)

	err := s.Add(context.Background(), models.CatalogItem{TMDBID: 42, Title: "Dune"}, "")
	require.Error(t, err)

	_, ok := s.Mirror().Get(42)
	assert.False(t, ok, "pending entry should be discarded by the reload")
	assert.Len(t, s.Mirror().Visible(), 1)
	assert.Equal(t, []string{"database is locked"}, notes.failures)
}

func TestSyncerAddConfirmsServerEntry(t *testing.T) {
	s, api, notes := signedInSyncer(t, nil)

	api.EXPECT().Upsert(gomock.Any(), models.WatchlistUpsert{UserID: "u1", TMDBID: 42, Category: models.CategoryWantToWatch}).
		Return(models.WatchlistUpsertResult{Entry: models.WatchlistEntry{ID: "srv", UserID: "u1", TMDBID: 42, Category: models.CategoryWantToWatch}, Created: true}, nil)

	require.NoError(t, s.Add(context.Background(), models.CatalogItem{TMDBID: 42, Title: "Dune"}, ""))

	got, ok := s.Mirror().Get(42)
	require.True(t, ok)
	assert.Equal(t, Confirmed, got.State)
	assert.Equal(t, "srv", got.Entry.ID)
	require.NotNil(t, got.Entry.Movie)
	assert.Equal(t, "Dune", got.Entry.Movie.Title)
	assert.Equal(t, []string{"Added to watchlist"}, notes.successes)
}

func TestSyncerNotCachedPopulatesAndRetriesOnce(t *testing.T) {
	s, api, _ := signedInSyncer(t, nil)
	entry := models.WatchlistEntry{ID: "srv", UserID: "u1", TMDBID: 99, Category: models.CategoryWantToWatch}

	gomock.InOrder(
		api.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(models.WatchlistUpsertResult{}, ErrNotCached),
		api.EXPECT().GetDetails(gomock.Any(), int64(99)).Return(nil),
		api.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(models.WatchlistUpsertResult{Entry: entry, Created: true}, nil),
	)

	require.NoError(t, s.Add(context.Background(), models.CatalogItem{TMDBID: 99}, ""))
	got, _ := s.Mirror().Get(99)
	assert.Equal(t, Confirmed, got.State)
}

func TestSyncerNotCachedGivesUpAfterSecondAttempt(t *testing.T) {
	s, api, notes := signedInSyncer(t, nil)

	api.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(models.WatchlistUpsertResult{}, ErrNotCached).Times(2)
	api.EXPECT().GetDetails(gomock.Any(), int64(99)).Return(nil).Times(1)
	api.EXPECT().List(gomock.Any(), "u1").Return(nil, nil)

	err := s.Add(context.Background(), models.CatalogItem{TMDBID: 99}, "")
	assert.ErrorIs(t, err, ErrNotCached)
	assert.Empty(t, s.Mirror().Visible())
	assert.Equal(t, []string{"Could not load movie details"}, notes.failures)
}

func TestSyncerSetCategoryKeepsRating(t *testing.T) {
	existing := []models.WatchlistEntry{{ID: "e1", UserID: "u1", TMDBID: 5, Category: models.CategoryWatching, UserRating: intPtr(4)}}
	s, api, _ := signedInSyncer(t, existing)

	api.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
			require.NotNil(t, in.Rating)
			assert.Equal(t, 4, *in.Rating)
			assert.Equal(t, models.CategoryWatched, in.Category)
			return models.WatchlistUpsertResult{Entry: models.WatchlistEntry{ID: "e1", TMDBID: 5, Category: in.Category, UserRating: in.Rating}}, nil
		})

	require.NoError(t, s.SetCategory(context.Background(), 5, models.CategoryWatched))
	got, _ := s.Mirror().Get(5)
	assert.Equal(t, models.CategoryWatched, got.Entry.Category)
	assert.Equal(t, Confirmed, got.State)
}

func TestSyncerRemoveAndRating(t *testing.T) {
	existing := []models.WatchlistEntry{{ID: "e1", UserID: "u1", TMDBID: 5, Category: models.CategoryWatched}}
	s, api, _ := signedInSyncer(t, existing)

	api.EXPECT().SetRating(gomock.Any(), "u1", int64(5), intPtr(3)).
		Return(models.WatchlistEntry{ID: "e1", TMDBID: 5, Category: models.CategoryWatched, UserRating: intPtr(3)}, nil)
	require.NoError(t, s.SetRating(context.Background(), 5, intPtr(3)))
	got, _ := s.Mirror().Get(5)
	assert.Equal(t, 3, *got.Entry.UserRating)

	assert.Error(t, s.SetRating(context.Background(), 5, intPtr(6)))

	api.EXPECT().Remove(gomock.Any(), "u1", int64(5)).Return(nil)
	require.NoError(t, s.Remove(context.Background(), 5))
	assert.Empty(t, s.Mirror().Snapshot())
}

func TestSyncerUnauthenticatedClearsMirror(t *testing.T) {
	existing := []models.WatchlistEntry{{ID: "e1", UserID: "u1", TMDBID: 5}}
	s, api, notes := signedInSyncer(t, existing)

	api.EXPECT().Remove(gomock.Any(), "u1", int64(5)).Return(ErrUnauthenticated)

	err := s.Remove(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, s.Mirror().Snapshot())
	assert.Equal(t, []string{"Login required"}, notes.failures)

	// Signed out: mutations fail without touching the API.
	assert.ErrorIs(t, s.Add(context.Background(), models.CatalogItem{TMDBID: 1}, ""), ErrUnauthenticated)
}

func TestSyncerSignOutDuringUpsertKeepsMirrorEmpty(t *testing.T) {
	s, api, notes := signedInSyncer(t, nil)

	api.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
			s.SignOut()
			return models.WatchlistUpsertResult{Entry: models.WatchlistEntry{ID: "srv", UserID: "u1", TMDBID: 42}, Created: true}, nil
		})

	err := s.Add(context.Background(), models.CatalogItem{TMDBID: 42}, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, s.Mirror().Snapshot())
	assert.Empty(t, notes.successes)
}

func TestSyncerSignOutDuringReloadKeepsMirrorEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	s := NewSyncer(api, NewMirror(), nil)

	api.EXPECT().List(gomock.Any(), "u1").DoAndReturn(
		func(context.Context, string) ([]models.WatchlistEntry, error) {
			s.SignOut()
			return []models.WatchlistEntry{{ID: "e1", UserID: "u1", TMDBID: 5}}, nil
		})

	assert.ErrorIs(t, s.SignIn(context.Background(), "u1"), ErrUnauthenticated)
	assert.Empty(t, s.Mirror().Snapshot())
}

func TestSyncerStaleReloadDoesNotOverwriteNewUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	s := NewSyncer(api, NewMirror(), nil)

	api.EXPECT().List(gomock.Any(), "u1").DoAndReturn(
		func(ctx context.Context, _ string) ([]models.WatchlistEntry, error) {
			// A second user signs in while the first user's list is still loading.
			require.NoError(t, s.SignIn(ctx, "u2"))
			return []models.WatchlistEntry{{ID: "old", UserID: "u1", TMDBID: 5}}, nil
		})
	api.EXPECT().List(gomock.Any(), "u2").Return([]models.WatchlistEntry{{ID: "new", UserID: "u2", TMDBID: 9}}, nil)

	assert.ErrorIs(t, s.SignIn(context.Background(), "u1"), ErrUnauthenticated)
	visible := s.Mirror().Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "u2", visible[0].UserID)
}

func TestSyncerSignOutClears(t *testing.T) {
	s, _, _ := signedInSyncer(t, []models.WatchlistEntry{{TMDBID: 1}, {TMDBID: 2}})
	require.Len(t, s.Mirror().Visible(), 2)
	s.SignOut()
	assert.Empty(t, s.Mirror().Snapshot())
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Could not load movie details", failureMessage(ErrNotCached))
	assert.Equal(t, "nope", failureMessage(&APIError{Status: 400, Message: "nope"}))
	assert.Equal(t, "Something went wrong, please try again", failureMessage(errors.New("dial tcp")))
}
