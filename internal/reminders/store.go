// Package reminders caches the server-owned location reminder list with
// the same optimistic mutation policy as the time capsule cache.
package reminders

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

// DefaultRadius is the trigger radius in meters when none is given.
const DefaultRadius = 100

// Backend is the slice of the backend client the store needs.
type Backend interface {
	ListReminders(ctx context.Context) ([]backend.Reminder, error)
	CreateReminder(ctx context.Context, note string, lat, lon float64, placeName string, radius int) (backend.Reminder, error)
	DeleteReminder(ctx context.Context, id int) error
}

// Store holds the cached list, newest first.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	items []backend.Reminder
}

func NewStore(b Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: b, logger: logger, now: time.Now}
}

// Items returns a snapshot of the cached list.
func (s *Store) Items() []backend.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Reminder, len(s.items))
	copy(out, s.items)
	return out
}

// Refresh replaces the cache wholesale from the backend.
func (s *Store) Refresh(ctx context.Context) error {
	items, err := s.backend.ListReminders(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.sortLocked()
	return nil
}

// Create validates locally, then inserts optimistically and reconciles
// with the backend. Coordinates are passed as pointers so "absent" is
// distinguishable from a legitimate zero coordinate.
func (s *Store) Create(ctx context.Context, note, placeName string, lat, lon *float64, radius int) (backend.Reminder, error) {
	if strings.TrimSpace(note) == "" {
		return backend.Reminder{}, validation.Errorf("reminder", "must not be empty")
	}
	if strings.TrimSpace(placeName) == "" {
		return backend.Reminder{}, validation.Errorf("placeName", "must not be empty")
	}
	if lat == nil || lon == nil {
		return backend.Reminder{}, validation.Errorf("coordinates", "latitude and longitude are required")
	}
	if radius <= 0 {
		radius = DefaultRadius
	}

	optimistic := backend.Reminder{
		Note:      note,
		Latitude:  *lat,
		Longitude: *lon,
		PlaceName: placeName,
		Radius:    radius,
		CreatedAt: float64(s.now().Unix()),
	}
	s.mu.Lock()
	s.items = append(s.items, optimistic)
	s.sortLocked()
	s.mu.Unlock()

	confirmed, err := s.backend.CreateReminder(ctx, note, *lat, *lon, placeName, radius)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeOptimisticLocked(optimistic)
	if err != nil {
		s.logger.Error("reminder create failed, rolled back", "error", err)
		return backend.Reminder{}, err
	}
	s.items = append(s.items, confirmed)
	s.sortLocked()
	return confirmed, nil
}

// Delete removes optimistically; on failure the record is re-inserted
// preserving sort order.
func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	removed, had := s.removeByIDLocked(id)
	s.mu.Unlock()

	err := s.backend.DeleteReminder(ctx, id)
	if err != nil {
		s.mu.Lock()
		if had {
			s.items = append(s.items, removed)
			s.sortLocked()
		}
		s.mu.Unlock()
		s.logger.Error("reminder delete failed", "id", id, "error", err)
		return err
	}
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].CreatedAt > s.items[j].CreatedAt
	})
}

func (s *Store) removeByIDLocked(id int) (backend.Reminder, bool) {
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return it, true
		}
	}
	return backend.Reminder{}, false
}

func (s *Store) removeOptimisticLocked(opt backend.Reminder) {
	for i, it := range s.items {
		if it.ID == 0 && it.Note == opt.Note && it.CreatedAt == opt.CreatedAt {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}
