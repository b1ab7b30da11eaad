package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ReplyTextHeader carries the assistant reply transcript alongside the
// raw audio body of a /gwen response.
const ReplyTextHeader = "X-GWEN-Response-Text"

// promptTimeout bounds a full prompt round trip, which includes LLM
// generation and speech synthesis on the server side.
const promptTimeout = 30 * time.Second

// Client talks to the GWEN backend. It holds no mutable state beyond the
// http.Client, so concurrent calls from independent engines are safe.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a Client for the given base URL.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SendPrompt submits a user prompt and returns the spoken reply as raw
// audio bytes plus the transcript from the response header.
func (c *Client) SendPrompt(ctx context.Context, prompt string) ([]byte, string, error) {
	body, _ := json.Marshal(map[string]string{"prompt": prompt})
	ctx, cancel := context.WithTimeout(ctx, promptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/gwen", bytes.NewReader(body))
	if err != nil {
		return nil, "", networkErr(err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Prompt replies can be large audio payloads; bypass the short
	// default timeout and rely on the request context instead.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", networkErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, "", rejectedErr(resp.StatusCode, strings.TrimSpace(string(b)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", networkErr(err)
	}
	if len(audio) == 0 {
		return nil, "", decodeErr(fmt.Errorf("empty audio reply"))
	}
	transcript := resp.Header.Get(ReplyTextHeader)
	c.logger.Debug("prompt reply received", "audio_bytes", len(audio), "has_transcript", transcript != "")
	return audio, transcript, nil
}

// CheckPosition reports reminders whose geofence contains the coordinate.
func (c *Client) CheckPosition(ctx context.Context, lat, lon float64) ([]Reminder, error) {
	var out locationUpdateResponse
	err := c.postJSON(ctx, "/location/update", map[string]any{
		"latitude":  lat,
		"longitude": lon,
	}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return out.NearbyReminders, nil
}

// ListTimeCapsules fetches all time capsules.
func (c *Client) ListTimeCapsules(ctx context.Context) ([]TimeCapsule, error) {
	var out []TimeCapsule
	if err := c.getJSON(ctx, "/timecapsule", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTimeCapsule stores a note to be opened at target. The backend
// assigns the id and creation time.
func (c *Client) CreateTimeCapsule(ctx context.Context, note string, target time.Time) (TimeCapsule, error) {
	var created createResponse
	err := c.postJSON(ctx, "/timecapsule", map[string]any{
		"note":      note,
		"timestamp": float64(target.Unix()),
	}, http.StatusCreated, &created)
	if err != nil {
		return TimeCapsule{}, err
	}
	return TimeCapsule{
		ID:        created.ID,
		Note:      note,
		Timestamp: float64(target.Unix()),
		CreatedAt: float64(time.Now().Unix()),
	}, nil
}

// DeleteTimeCapsule removes a capsule by id.
func (c *Client) DeleteTimeCapsule(ctx context.Context, id int) error {
	return c.delete(ctx, fmt.Sprintf("/timecapsule/%d", id))
}

// ListReminders fetches all location reminders.
func (c *Client) ListReminders(ctx context.Context) ([]Reminder, error) {
	var out []Reminder
	if err := c.getJSON(ctx, "/reminder/location", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReminder stores a geofenced reminder and returns it with the
// server-assigned id.
func (c *Client) CreateReminder(ctx context.Context, note string, lat, lon float64, placeName string, radius int) (Reminder, error) {
	var created createResponse
	err := c.postJSON(ctx, "/reminder/location", map[string]any{
		"reminder":   note,
		"latitude":   lat,
		"longitude":  lon,
		"place_name": placeName,
		"radius":     radius,
	}, http.StatusCreated, &created)
	if err != nil {
		return Reminder{}, err
	}
	return Reminder{
		ID:        created.ID,
		Note:      note,
		Latitude:  lat,
		Longitude: lon,
		PlaceName: placeName,
		Radius:    radius,
		CreatedAt: float64(time.Now().Unix()),
	}, nil
}

// DeleteReminder removes a reminder by id.
func (c *Client) DeleteReminder(ctx context.Context, id int) error {
	return c.delete(ctx, fmt.Sprintf("/reminder/location/%d", id))
}

// SearchPlaces queries nearby places of the given type within radius meters.
func (c *Client) SearchPlaces(ctx context.Context, lat, lon float64, placeType string, radius int) ([]Place, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%g", lat))
	q.Set("longitude", fmt.Sprintf("%g", lon))
	q.Set("type", placeType)
	q.Set("radius", fmt.Sprintf("%d", radius))
	var out []Place
	if err := c.getJSON(ctx, "/places/search", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PlaceDetails fetches the full record for one place.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (PlaceDetail, error) {
	var out PlaceDetail
	if err := c.getJSON(ctx, "/places/detail/"+url.PathEscape(placeID), nil, &out); err != nil {
		return PlaceDetail{}, err
	}
	return out, nil
}

// Geocode resolves a free-form address to a coordinate.
func (c *Client) Geocode(ctx context.Context, address string) (GeocodingResult, error) {
	q := url.Values{}
	q.Set("address", address)
	var out GeocodingResult
	if err := c.getJSON(ctx, "/geocode", q, &out); err != nil {
		return GeocodingResult{}, err
	}
	return out, nil
}

// CheckHealth fetches the backend's capability report.
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	var out Health
	if err := c.getJSON(ctx, "/health", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return networkErr(err)
	}
	return c.doJSON(req, http.StatusOK, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, wantStatus int, out any) error {
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return networkErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, wantStatus, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return networkErr(err)
	}
	return c.doJSON(req, http.StatusOK, nil)
}

func (c *Client) doJSON(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return networkErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return rejectedErr(resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeErr(err)
	}
	return nil
}
