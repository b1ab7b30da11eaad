// Package control exposes the client's HTTP surface: engine intents,
// observable state, the cached record lists, and Prometheus metrics.
// This is the presentation boundary; engines never return errors across
// it, handlers report observable state instead.
package control

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KingLuiBoi/GWENApp/internal/backend"
	"github.com/KingLuiBoi/GWENApp/internal/capsules"
	"github.com/KingLuiBoi/GWENApp/internal/location"
	"github.com/KingLuiBoi/GWENApp/internal/position"
	"github.com/KingLuiBoi/GWENApp/internal/reminders"
	"github.com/KingLuiBoi/GWENApp/internal/validation"
	"github.com/KingLuiBoi/GWENApp/internal/voice"
)

// VoiceEngine is the set of intents and observations the API drives.
type VoiceEngine interface {
	Snapshot() voice.Snapshot
	EnableWakeWord()
	DisableWakeWord()
	StartManualCapture()
	StopManualCapture()
	SubmitTypedPrompt(text string)
	RetryLastFailedPrompt()
	DismissError()
}

// LocationEngine is the observable side of the trigger engine.
type LocationEngine interface {
	Snapshot() location.Snapshot
}

type Handlers struct {
	Voice     VoiceEngine
	Location  LocationEngine
	Capsules  *capsules.Store
	Reminders *reminders.Store
	Backend   *backend.Client
	Position  *position.PushProvider
}

func NewHandlers(v VoiceEngine, l LocationEngine, c *capsules.Store, r *reminders.Store, b *backend.Client, p *position.PushProvider) Handlers {
	return Handlers{Voice: v, Location: l, Capsules: c, Reminders: r, Backend: b, Position: p}
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
	e.GET("/state", h.state)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/wakeword/enable", h.enableWakeWord)
	e.POST("/wakeword/disable", h.disableWakeWord)
	e.POST("/capture/start", h.startCapture)
	e.POST("/capture/stop", h.stopCapture)
	e.POST("/prompt", h.submitPrompt)
	e.POST("/prompt/retry", h.retryPrompt)
	e.POST("/error/dismiss", h.dismissError)

	e.GET("/capsules", h.listCapsules)
	e.POST("/capsules", h.createCapsule)
	e.DELETE("/capsules/:id", h.deleteCapsule)

	e.GET("/reminders", h.listReminders)
	e.POST("/reminders", h.createReminder)
	e.DELETE("/reminders/:id", h.deleteReminder)

	e.GET("/places/search", h.searchPlaces)
	e.GET("/places/detail/:id", h.placeDetail)
	e.GET("/geocode", h.geocode)

	e.POST("/position", h.pushPosition)
}

type stateResponse struct {
	voice.Snapshot
	TriggeredReminders []backend.Reminder `json:"triggeredReminders"`
}

func (h Handlers) stateNow() stateResponse {
	return stateResponse{
		Snapshot:           h.Voice.Snapshot(),
		TriggeredReminders: h.Location.Snapshot().Triggered,
	}
}

func (h Handlers) healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h Handlers) state(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stateNow())
}

func (h Handlers) enableWakeWord(c echo.Context) error {
	h.Voice.EnableWakeWord()
	return c.JSON(http.StatusOK, h.stateNow())
}

func (h Handlers) disableWakeWord(c echo.Context) error {
	h.Voice.DisableWakeWord()
	return c.JSON(http.StatusOK, h.stateNow())
}

func (h Handlers) startCapture(c echo.Context) error {
	h.Voice.StartManualCapture()
	return c.JSON(http.StatusOK, h.stateNow())
}

func (h Handlers) stopCapture(c echo.Context) error {
	h.Voice.StopManualCapture()
	return c.JSON(http.StatusOK, h.stateNow())
}

func (h Handlers) submitPrompt(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	h.Voice.SubmitTypedPrompt(req.Text)
	return c.JSON(http.StatusAccepted, h.stateNow())
}

func (h Handlers) retryPrompt(c echo.Context) error {
	h.Voice.RetryLastFailedPrompt()
	return c.JSON(http.StatusAccepted, h.stateNow())
}

func (h Handlers) dismissError(c echo.Context) error {
	h.Voice.DismissError()
	return c.JSON(http.StatusOK, h.stateNow())
}

func (h Handlers) listCapsules(c echo.Context) error {
	if err := h.Capsules.Refresh(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.Capsules.Items())
}

func (h Handlers) createCapsule(c echo.Context) error {
	var req struct {
		Note      string  `json:"note"`
		Timestamp float64 `json:"timestamp"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	created, err := h.Capsules.Create(c.Request().Context(), req.Note, time.Unix(int64(req.Timestamp), 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h Handlers) deleteCapsule(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return badRequest(c, "id must be an integer")
	}
	if err := h.Capsules.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h Handlers) listReminders(c echo.Context) error {
	if err := h.Reminders.Refresh(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.Reminders.Items())
}

func (h Handlers) createReminder(c echo.Context) error {
	var req struct {
		Note      string   `json:"reminder"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		PlaceName string   `json:"place_name"`
		Radius    int      `json:"radius"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	created, err := h.Reminders.Create(c.Request().Context(), req.Note, req.PlaceName, req.Latitude, req.Longitude, req.Radius)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h Handlers) deleteReminder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return badRequest(c, "id must be an integer")
	}
	if err := h.Reminders.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h Handlers) searchPlaces(c echo.Context) error {
	lat, err1 := strconv.ParseFloat(c.QueryParam("latitude"), 64)
	lon, err2 := strconv.ParseFloat(c.QueryParam("longitude"), 64)
	if err1 != nil || err2 != nil {
		return badRequest(c, "latitude and longitude are required")
	}
	radius := 1000
	if r := c.QueryParam("radius"); r != "" {
		if parsed, err := strconv.Atoi(r); err == nil {
			radius = parsed
		}
	}
	placeType := c.QueryParam("type")
	if placeType == "" {
		placeType = "restaurant"
	}
	places, err := h.Backend.SearchPlaces(c.Request().Context(), lat, lon, placeType, radius)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, places)
}

func (h Handlers) placeDetail(c echo.Context) error {
	detail, err := h.Backend.PlaceDetails(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h Handlers) geocode(c echo.Context) error {
	address := c.QueryParam("address")
	if address == "" {
		return badRequest(c, "address is required")
	}
	result, err := h.Backend.Geocode(c.Request().Context(), address)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h Handlers) pushPosition(c echo.Context) error {
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return badRequest(c, "latitude and longitude are required")
	}
	h.Position.Publish(position.Update{Latitude: *req.Latitude, Longitude: *req.Longitude})
	return c.JSON(http.StatusAccepted, map[string]bool{"success": true})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps failures to the API boundary: local validation is the
// caller's fault, anything from the backend is a gateway problem.
func writeError(c echo.Context, err error) error {
	if validation.Is(err) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if _, ok := backend.KindOf(err); ok {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": backend.UserMessage(err)})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
