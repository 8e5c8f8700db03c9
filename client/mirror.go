package client

import (
	"sync"

	"cinelist/models"
)

// EntryState tracks whether a mirrored entry matches the server.
type EntryState int

const (
	Confirmed EntryState = iota
	PendingCreate
	PendingUpdate
	PendingDelete
)

func (s EntryState) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case PendingCreate:
		return "pending-create"
	case PendingUpdate:
		return "pending-update"
	case PendingDelete:
		return "pending-delete"
	}
	return "unknown"
}

type MirrorEntry struct {
	Entry models.WatchlistEntry
	State EntryState
}

// Mirror is the client-held copy of one user's watchlist, newest first.
type Mirror struct {
	mu      sync.Mutex
	entries []MirrorEntry
}

func NewMirror() *Mirror {
	return &Mirror{}
}

// Snapshot returns a copy of the entries, including ones pending deletion.
func (m *Mirror) Snapshot() []MirrorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MirrorEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Visible returns entries a UI should render.
func (m *Mirror) Visible() []models.WatchlistEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WatchlistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.State != PendingDelete {
			out = append(out, e.Entry)
		}
	}
	return out
}

func (m *Mirror) Get(tmdbID int64) (MirrorEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tmdbID); i >= 0 {
		return m.entries[i], true
	}
	return MirrorEntry{}, false
}

// Replace discards all local state for the authoritative list.
func (m *Mirror) Replace(entries []models.WatchlistEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]MirrorEntry, 0, len(entries))
	for _, e := range entries {
		m.entries = append(m.entries, MirrorEntry{Entry: e, State: Confirmed})
	}
}

func (m *Mirror) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// stage applies an optimistic edit. An existing entry is passed to edit and marked PendingUpdate;
// otherwise a new entry built by edit(nil) is prepended as PendingCreate.
func (m *Mirror) stage(tmdbID int64, edit func(*models.WatchlistEntry) models.WatchlistEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tmdbID); i >= 0 {
		cur := m.entries[i].Entry
		m.entries[i].Entry = edit(&cur)
		if m.entries[i].State != PendingCreate {
			m.entries[i].State = PendingUpdate
		}
		return
	}
	m.entries = append([]MirrorEntry{{Entry: edit(nil), State: PendingCreate}}, m.entries...)
}

func (m *Mirror) markDeleted(tmdbID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tmdbID); i >= 0 {
		m.entries[i].State = PendingDelete
		return true
	}
	return false
}

// confirm swaps in the server's copy of an entry.
func (m *Mirror) confirm(entry models.WatchlistEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(entry.TMDBID); i >= 0 {
		if entry.Movie == nil {
			entry.Movie = m.entries[i].Entry.Movie
		}
		m.entries[i] = MirrorEntry{Entry: entry, State: Confirmed}
		return
	}
	m.entries = append([]MirrorEntry{{Entry: entry, State: Confirmed}}, m.entries...)
}

func (m *Mirror) drop(tmdbID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tmdbID); i >= 0 {
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
	}
}

func (m *Mirror) indexLocked(tmdbID int64) int {
	for i, e := range m.entries {
		if e.Entry.TMDBID == tmdbID {
			return i
		}
	}
	return -1
}
