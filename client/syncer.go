package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/avast/retry-go/v4"

	"cinelist/models"
)

// Notifier receives user-facing outcome messages.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Failure(string) {}

// Syncer applies watchlist mutations optimistically to a Mirror and reconciles them with the
// server. Any failed call discards local pending state by reloading the list.
type Syncer struct {
	api      API
	mirror   *Mirror
	notifier Notifier

	// epoch changes on every sign-in and sign-out. Results of calls started under an older epoch
	// are dropped so a cleared mirror never refills with the previous user's entries.
	mu     sync.RWMutex
	userID string
	epoch  uint64
}

func NewSyncer(api API, mirror *Mirror, notifier Notifier) *Syncer {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if mirror == nil {
		mirror = NewMirror()
	}
	return &Syncer{api: api, mirror: mirror, notifier: notifier}
}

func (s *Syncer) Mirror() *Mirror { return s.mirror }

// SignIn sets the acting user and loads their list.
func (s *Syncer) SignIn(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.userID = userID
	s.epoch++
	s.mirror.Clear()
	s.mu.Unlock()
	return s.Reload(ctx)
}

// SignOut forgets the user and clears the mirror.
func (s *Syncer) SignOut() {
	s.mu.Lock()
	s.userID = ""
	s.epoch++
	s.mirror.Clear()
	s.mu.Unlock()
}

type session struct {
	userID string
	epoch  uint64
}

func (s *Syncer) currentSession() (session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return session{}, ErrUnauthenticated
	}
	return session{userID: s.userID, epoch: s.epoch}, nil
}

// apply runs fn against the mirror only while sess is still current. SignOut holds the write
// lock, so it cannot slip in between the check and fn.
func (s *Syncer) apply(sess session, fn func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.epoch != sess.epoch {
		return ErrUnauthenticated
	}
	fn()
	return nil
}

// signOutIf signs out only when the rejected session is still the current one.
func (s *Syncer) signOutIf(sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == sess.epoch {
		s.userID = ""
		s.epoch++
		s.mirror.Clear()
	}
}

// Reload replaces the mirror with the server's list.
func (s *Syncer) Reload(ctx context.Context) error {
	sess, err := s.currentSession()
	if err != nil {
		s.mirror.Clear()
		return err
	}
	entries, err := s.api.List(ctx, sess.userID)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			s.signOutIf(sess)
		}
		return fmt.Errorf("reload watchlist: %w", err)
	}
	return s.apply(sess, func() { s.mirror.Replace(entries) })
}

// Add puts a movie on the list, or moves an existing entry to category.
func (s *Syncer) Add(ctx context.Context, movie models.CatalogItem, category models.Category) error {
	if category == "" {
		category = models.DefaultCategory
	}
	return s.upsert(ctx, movie.TMDBID, category, &movie, "Added to watchlist")
}

// SetCategory moves an entry to category, keeping its rating.
func (s *Syncer) SetCategory(ctx context.Context, tmdbID int64, category models.Category) error {
	return s.upsert(ctx, tmdbID, category, nil, "Watchlist updated")
}

func (s *Syncer) upsert(ctx context.Context, tmdbID int64, category models.Category, movie *models.CatalogItem, okMsg string) error {
	sess, err := s.currentSession()
	if err != nil {
		return s.fail(ctx, sess, err)
	}

	var rating *int
	if err := s.apply(sess, func() {
		s.mirror.stage(tmdbID, func(cur *models.WatchlistEntry) models.WatchlistEntry {
			if cur == nil {
				return models.WatchlistEntry{UserID: sess.userID, TMDBID: tmdbID, Category: category, Movie: movie}
			}
			next := *cur
			next.Category = category
			rating = cur.UserRating
			return next
		})
	}); err != nil {
		return err
	}

	// The server overwrites the rating on upsert, so the current one is resent.
	res, err := s.upsertPopulating(ctx, models.WatchlistUpsert{UserID: sess.userID, TMDBID: tmdbID, Category: category, Rating: rating})
	if err != nil {
		return s.fail(ctx, sess, err)
	}
	if err := s.apply(sess, func() { s.mirror.confirm(res.Entry) }); err != nil {
		return err
	}
	s.notifier.Success(okMsg)
	return nil
}

// upsertPopulating retries exactly once after asking the server to cache an unknown movie.
func (s *Syncer) upsertPopulating(ctx context.Context, in models.WatchlistUpsert) (models.WatchlistUpsertResult, error) {
	var res models.WatchlistUpsertResult
	populate := false
	err := retry.Do(
		func() error {
			if populate {
				if err := s.api.GetDetails(ctx, in.TMDBID); err != nil {
					return retry.Unrecoverable(fmt.Errorf("populate movie %d: %w", in.TMDBID, err))
				}
			}
			r, err := s.api.Upsert(ctx, in)
			if errors.Is(err, ErrNotCached) {
				populate = true
				return err
			}
			if err != nil {
				return retry.Unrecoverable(err)
			}
			res = r
			return nil
		},
		retry.Attempts(2),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	return res, err
}

func (s *Syncer) Remove(ctx context.Context, tmdbID int64) error {
	sess, err := s.currentSession()
	if err != nil {
		return s.fail(ctx, sess, err)
	}
	if err := s.apply(sess, func() { s.mirror.markDeleted(tmdbID) }); err != nil {
		return err
	}
	if err := s.api.Remove(ctx, sess.userID, tmdbID); err != nil {
		return s.fail(ctx, sess, err)
	}
	if err := s.apply(sess, func() { s.mirror.drop(tmdbID) }); err != nil {
		return err
	}
	s.notifier.Success("Removed from watchlist")
	return nil
}

// SetRating sets or, with nil, clears the rating of an entry.
func (s *Syncer) SetRating(ctx context.Context, tmdbID int64, rating *int) error {
	sess, err := s.currentSession()
	if err != nil {
		return s.fail(ctx, sess, err)
	}
	if !models.ValidRating(rating) {
		s.notifier.Failure("Rating must be between 1 and 5")
		return fmt.Errorf("rating %d out of range", *rating)
	}
	if _, ok := s.mirror.Get(tmdbID); !ok {
		s.notifier.Failure("Movie is not on your watchlist")
		return fmt.Errorf("movie %d not on watchlist", tmdbID)
	}
	if err := s.apply(sess, func() {
		s.mirror.stage(tmdbID, func(cur *models.WatchlistEntry) models.WatchlistEntry {
			if cur == nil {
				return models.WatchlistEntry{UserID: sess.userID, TMDBID: tmdbID, UserRating: rating}
			}
			next := *cur
			next.UserRating = rating
			return next
		})
	}); err != nil {
		return err
	}

	entry, err := s.api.SetRating(ctx, sess.userID, tmdbID, rating)
	if err != nil {
		return s.fail(ctx, sess, err)
	}
	if err := s.apply(sess, func() { s.mirror.confirm(entry) }); err != nil {
		return err
	}
	s.notifier.Success("Rating saved")
	return nil
}

// fail reports err and rolls the mirror back. A rejected session signs out instead.
func (s *Syncer) fail(ctx context.Context, sess session, err error) error {
	if errors.Is(err, ErrUnauthenticated) {
		s.signOutIf(sess)
		s.notifier.Failure("Login required")
		return ErrUnauthenticated
	}
	s.notifier.Failure(failureMessage(err))
	if rerr := s.Reload(ctx); rerr != nil {
		log.Printf("[client] reload after failure: %v", rerr)
	}
	return err
}

func failureMessage(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNotCached):
		return "Could not load movie details"
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	}
	return "Something went wrong, please try again"
}
