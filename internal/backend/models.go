package backend

import "time"

// TimeCapsule is a server-owned note that unlocks at a target time.
// Timestamps are unix seconds, matching the wire format.
type TimeCapsule struct {
	ID        int     `json:"id"`
	Note      string  `json:"note"`
	Timestamp float64 `json:"timestamp"`
	CreatedAt float64 `json:"created_at"`
}

// TargetTime is the moment the capsule is meant to be opened.
func (t TimeCapsule) TargetTime() time.Time {
	return time.Unix(int64(t.Timestamp), 0)
}

// Reminder is a server-owned geofenced note. The backend decides when it
// triggers; the client only creates, lists, and deletes.
type Reminder struct {
	ID        int     `json:"id"`
	Note      string  `json:"reminder"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"place_name"`
	Radius    int     `json:"radius"`
	CreatedAt float64 `json:"created_at"`
}

// Place is one result from a nearby-places search.
type Place struct {
	Name      string   `json:"name"`
	PlaceID   string   `json:"place_id"`
	Vicinity  string   `json:"vicinity"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Rating    *float64 `json:"rating,omitempty"`
	Types     []string `json:"types,omitempty"`
}

// PlaceDetail is the full record for a single place.
type PlaceDetail struct {
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	Phone        *string       `json:"phone,omitempty"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	Website      *string       `json:"website,omitempty"`
	Rating       *float64      `json:"rating,omitempty"`
	OpeningHours []string      `json:"opening_hours,omitempty"`
	Reviews      []PlaceReview `json:"reviews,omitempty"`
}

type PlaceReview struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
	Time   int64  `json:"time"`
}

// GeocodingResult maps a free-form address to a coordinate.
type GeocodingResult struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Health reports which backend capabilities are configured.
type Health struct {
	Status           string `json:"status"`
	OpenAIKeySet     bool   `json:"openai_api_key_set"`
	ElevenLabsKeySet bool   `json:"elevenlabs_api_key_set"`
	GwenVoiceIDSet   bool   `json:"gwen_voice_id_set"`
	GoogleAPIKeySet  bool   `json:"google_api_key_set"`
}

// Healthy reports whether the backend considers itself operational.
func (h Health) Healthy() bool { return h.Status == "healthy" }

type createResponse struct {
	Success bool `json:"success"`
	ID      int  `json:"id"`
}

type locationUpdateResponse struct {
	Success         bool       `json:"success"`
	NearbyReminders []Reminder `json:"nearby_reminders"`
}
