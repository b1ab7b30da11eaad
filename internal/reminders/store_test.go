package reminders

import (
	"context"
	"errors"
	"testing"

	"github.com/KingLuiBoi/GWENApp/internal/backend"
	"github.com/KingLuiBoi/GWENApp/internal/validation"
)

type fakeBackend struct {
	items     []backend.Reminder
	nextID    int
	createErr error
	deleteErr error
	creates   int

	lastRadius int
}

func (f *fakeBackend) ListReminders(_ context.Context) ([]backend.Reminder, error) {
	out := make([]backend.Reminder, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeBackend) CreateReminder(_ context.Context, note string, lat, lon float64, placeName string, radius int) (backend.Reminder, error) {
	f.creates++
	f.lastRadius = radius
	if f.createErr != nil {
		return backend.Reminder{}, f.createErr
	}
	f.nextID++
	r := backend.Reminder{ID: f.nextID, Note: note, Latitude: lat, Longitude: lon, PlaceName: placeName, Radius: radius}
	f.items = append(f.items, r)
	return r, nil
}

func (f *fakeBackend) DeleteReminder(_ context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, it := range f.items {
		if it.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func coord(v float64) *float64 { return &v }

func TestCreate_ValidatesBeforeNetwork(t *testing.T) {
	fb := &fakeBackend{}
	s := NewStore(fb, nil)

	cases := []struct {
		name      string
		note      string
		place     string
		lat, lon  *float64
		wantField string
	}{
		{"empty note", " ", "Market", coord(1), coord(2), "reminder"},
		{"empty place", "buy milk", "", coord(1), coord(2), "placeName"},
		{"missing latitude", "buy milk", "Market", nil, coord(2), "coordinates"},
		{"missing longitude", "buy milk", "Market", coord(1), nil, "coordinates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tc.note, tc.place, tc.lat, tc.lon, 100)
			if !validation.Is(err) {
				t.Fatalf("expected validation failure, got %v", err)
			}
			var ve *validation.Error
			if errors.As(err, &ve) && ve.Field != tc.wantField {
				t.Fatalf("expected field %q, got %q", tc.wantField, ve.Field)
			}
		})
	}
	if fb.creates != 0 {
		t.Fatal("expected no network calls")
	}
}

func TestCreate_DefaultsRadius(t *testing.T) {
	fb := &fakeBackend{}
	s := NewStore(fb, nil)

	r, err := s.Create(context.Background(), "buy milk", "Market", coord(37.77), coord(-122.41), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fb.lastRadius != DefaultRadius || r.Radius != DefaultRadius {
		t.Fatalf("expected default radius %v, got %v", DefaultRadius, fb.lastRadius)
	}
}

func TestCreate_FailureRollsBack(t *testing.T) {
	fb := &fakeBackend{createErr: errors.New("boom")}
	s := NewStore(fb, nil)

	_, err := s.Create(context.Background(), "buy milk", "Market", coord(1), coord(2), 100)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.Items()) != 0 {
		t.Fatalf("expected rollback, got %+v", s.Items())
	}
}

func TestDelete_FailureReinsertsSorted(t *testing.T) {
	fb := &fakeBackend{}
	s := NewStore(fb, nil)
	fb.items = []backend.Reminder{
		{ID: 1, Note: "oldest", CreatedAt: 100},
		{ID: 2, Note: "middle", CreatedAt: 200},
		{ID: 3, Note: "newest", CreatedAt: 300},
	}
	_ = s.Refresh(context.Background())
	fb.deleteErr = errors.New("server unavailable")

	if err := s.Delete(context.Background(), 2); err == nil {
		t.Fatal("expected error")
	}
	items := s.Items()
	if len(items) != 3 || items[0].ID != 3 || items[1].ID != 2 || items[2].ID != 1 {
		t.Fatalf("expected newest-first order restored, got %+v", items)
	}
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	fb := &fakeBackend{}
	s := NewStore(fb, nil)
	fb.items = []backend.Reminder{{ID: 1, Note: "a", CreatedAt: 1}}
	_ = s.Refresh(context.Background())

	fb.items = []backend.Reminder{{ID: 2, Note: "b", CreatedAt: 2}, {ID: 3, Note: "c", CreatedAt: 3}}
	_ = s.Refresh(context.Background())

	items := s.Items()
	if len(items) != 2 || items[0].ID != 3 {
		t.Fatalf("expected replacement with newest first, got %+v", items)
	}
}
