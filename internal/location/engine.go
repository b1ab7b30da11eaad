// Package location evaluates geofenced reminders against coordinate
// updates. It runs independently of the voice engine; the two share only
// the backend client.
package location

import (
	"context"
	"log/slog"
	"sync"

	"github.com/KingLuiBoi/GWENApp/internal/backend"
	"github.com/KingLuiBoi/GWENApp/internal/metrics"
	"github.com/KingLuiBoi/GWENApp/internal/position"
)

// Checker is the slice of the backend client this engine needs.
type Checker interface {
	CheckPosition(ctx context.Context, lat, lon float64) ([]backend.Reminder, error)
}

// Snapshot is the engine's observable state.
type Snapshot struct {
	Triggered []backend.Reminder `json:"triggered"`
	LastError string             `json:"lastError,omitempty"`
}

// Engine issues at most one position check at a time. A coordinate
// arriving mid-flight is remembered, latest wins, and checked when the
// in-flight call returns. Every issued check carries a sequence number;
// a completion that is not the latest issued is discarded, so a slow old
// response can never overwrite a newer triggered set.
type Engine struct {
	checker Checker
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	inFlight  bool
	pending   *position.Update
	seq       uint64
	triggered []backend.Reminder
	lastError string
}

func NewEngine(checker Checker, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{checker: checker, metrics: m, logger: logger}
}

// Run consumes coordinate updates until ctx ends.
func (e *Engine) Run(ctx context.Context, updates <-chan position.Update) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			e.Observe(u)
		}
	}
}

// Observe feeds one coordinate into the engine.
func (e *Engine) Observe(u position.Update) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		e.pending = &u
		return
	}
	e.startCheckLocked(u)
}

// Snapshot returns the current triggered set.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	trig := make([]backend.Reminder, len(e.triggered))
	copy(trig, e.triggered)
	return Snapshot{Triggered: trig, LastError: e.lastError}
}

func (e *Engine) startCheckLocked(u position.Update) {
	e.inFlight = true
	e.seq++
	seq := e.seq
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	e.logger.Debug("position check issued", "seq", seq, "latitude", u.Latitude, "longitude", u.Longitude)
	go func() {
		rems, err := e.checker.CheckPosition(ctx, u.Latitude, u.Longitude)
		e.metrics.RecordPositionCheck(err != nil)
		e.complete(seq, rems, err)
	}()
}

// complete applies one check result. Only the most recently issued check
// is authoritative; anything older is dropped wholesale.
func (e *Engine) complete(seq uint64, rems []backend.Reminder, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.seq {
		e.metrics.RecordStaleCheck()
		e.logger.Debug("discarding stale position check", "seq", seq, "latest", e.seq)
		return
	}

	e.inFlight = false
	if err != nil {
		e.lastError = backend.UserMessage(err)
		e.logger.Error("position check failed", "error", err)
	} else {
		e.triggered = rems
		e.lastError = ""
		e.metrics.SetTriggeredReminders(len(rems))
		if len(rems) > 0 {
			e.logger.Info("reminders triggered", "count", len(rems))
		}
	}

	if e.pending != nil {
		next := *e.pending
		e.pending = nil
		e.startCheckLocked(next)
	}
}
