// Package position supplies coordinate updates to the location trigger
// engine. Updates come from the control API (a push from whatever device
// integration is running) or from a replay file during development.
package position

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Update is one observed coordinate.
type Update struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Provider emits coordinate updates until its context ends.
type Provider interface {
	Updates() <-chan Update
}

// PushProvider accepts coordinates pushed from outside, typically the
// POST /position control route. Publish never blocks; when the engine
// lags, older coordinates are the right thing to lose.
type PushProvider struct {
	updates chan Update
	logger  *slog.Logger
}

func NewPushProvider(logger *slog.Logger) *PushProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushProvider{updates: make(chan Update, 16), logger: logger}
}

func (p *PushProvider) Updates() <-chan Update { return p.updates }

func (p *PushProvider) Publish(u Update) {
	select {
	case p.updates <- u:
	default:
		p.logger.Warn("position update dropped, consumer lagging",
			"latitude", u.Latitude, "longitude", u.Longitude)
	}
}

// ReplayProvider reads a JSON array of coordinates from a file and emits
// them on a fixed interval, looping forever. It stands in for a real
// location feed during development.
type ReplayProvider struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	updates  chan Update
}

func NewReplayProvider(path string, interval time.Duration, logger *slog.Logger) *ReplayProvider {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayProvider{
		path:     path,
		interval: interval,
		logger:   logger,
		updates:  make(chan Update, 16),
	}
}

func (p *ReplayProvider) Updates() <-chan Update { return p.updates }

// Run emits the replay file's coordinates in order until ctx ends.
func (p *ReplayProvider) Run(ctx context.Context) error {
	route, err := loadRoute(p.path)
	if err != nil {
		return err
	}
	if len(route) == 0 {
		return fmt.Errorf("position: replay file %s holds no coordinates", p.path)
	}

	p.logger.Info("replaying position route", "path", p.path, "points", len(route), "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case p.updates <- route[i%len(route)]:
			default:
			}
			i++
		}
	}
}

func loadRoute(path string) ([]Update, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("position: reading replay file: %w", err)
	}
	var route []Update
	if err := json.Unmarshal(data, &route); err != nil {
		return nil, fmt.Errorf("position: parsing replay file: %w", err)
	}
	return route, nil
}

// Merge fans several providers into one stream. It returns once ctx ends.
func Merge(ctx context.Context, out chan<- Update, providers ...Provider) {
	for _, p := range providers {
		go func(p Provider) {
			for {
				select {
				case <-ctx.Done():
					return
				case u, ok := <-p.Updates():
					if !ok {
						return
					}
					select {
					case out <- u:
					case <-ctx.Done():
						return
					}
				}
			}
		}(p)
	}
	<-ctx.Done()
}
