// Package capsules caches the server-owned time capsule list. Mutations
// are optimistic: the local list changes first and is reconciled when the
// backend answers.
package capsules

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KingLuiBoi/GWENApp/internal/backend"
	"github.com/KingLuiBoi/GWENApp/internal/validation"
)

// Backend is the slice of the backend client the store needs.
type Backend interface {
	ListTimeCapsules(ctx context.Context) ([]backend.TimeCapsule, error)
	CreateTimeCapsule(ctx context.Context, note string, target time.Time) (backend.TimeCapsule, error)
	DeleteTimeCapsule(ctx context.Context, id int) error
}

// Store holds the cached list, sorted by target open time descending.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	items []backend.TimeCapsule
}

func NewStore(b Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: b, logger: logger, now: time.Now}
}

// Items returns a snapshot of the cached list.
func (s *Store) Items() []backend.TimeCapsule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.TimeCapsule, len(s.items))
	copy(out, s.items)
	return out
}

// Refresh replaces the cache wholesale from the backend.
func (s *Store) Refresh(ctx context.Context) error {
	items, err := s.backend.ListTimeCapsules(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.sortLocked()
	return nil
}

// Create validates locally, inserts optimistically with id 0, then asks
// the backend. The optimistic entry is swapped for the confirmed record
// on success and rolled back on failure.
func (s *Store) Create(ctx context.Context, note string, target time.Time) (backend.TimeCapsule, error) {
	if strings.TrimSpace(note) == "" {
		return backend.TimeCapsule{}, validation.Errorf("note", "must not be empty")
	}
	if !target.After(s.now()) {
		return backend.TimeCapsule{}, validation.Errorf("targetTime", "must be in the future")
	}

	optimistic := backend.TimeCapsule{
		Note:      note,
		Timestamp: float64(target.Unix()),
		CreatedAt: float64(s.now().Unix()),
	}
	s.mu.Lock()
	s.items = append(s.items, optimistic)
	s.sortLocked()
	s.mu.Unlock()

	confirmed, err := s.backend.CreateTimeCapsule(ctx, note, target)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeOptimisticLocked(optimistic)
	if err != nil {
		s.logger.Error("time capsule create failed, rolled back", "error", err)
		return backend.TimeCapsule{}, err
	}
	s.items = append(s.items, confirmed)
	s.sortLocked()
	return confirmed, nil
}

// Delete removes optimistically and always asks the backend, so a stale
// local entry still reaches the server. On failure the removed record is
// re-inserted preserving sort order, not its original index.
func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	removed, had := s.removeByIDLocked(id)
	s.mu.Unlock()

	err := s.backend.DeleteTimeCapsule(ctx, id)
	if err != nil {
		s.mu.Lock()
		if had {
			s.items = append(s.items, removed)
			s.sortLocked()
		}
		s.mu.Unlock()
		s.logger.Error("time capsule delete failed", "id", id, "error", err)
		return err
	}
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Timestamp > s.items[j].Timestamp
	})
}

func (s *Store) removeByIDLocked(id int) (backend.TimeCapsule, bool) {
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return it, true
		}
	}
	return backend.TimeCapsule{}, false
}

func (s *Store) removeOptimisticLocked(opt backend.TimeCapsule) {
	for i, it := range s.items {
		if it.ID == 0 && it.Note == opt.Note && it.Timestamp == opt.Timestamp {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}
