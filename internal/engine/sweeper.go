package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/colefenn/tally/internal/websocket"
)

// Sweeper periodically re-evaluates pending disputes so the 24-hour timeout
// fires even when nobody votes. It runs once at start and then on a fixed
// interval until stopped.
type Sweeper struct {
	mu       sync.RWMutex
	engine   *Engine
	hub      *websocket.Hub
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a dispute timeout sweeper. hub may be nil; interval
// defaults to an hour when non-positive.
func NewSweeper(engine *Engine, hub *websocket.Hub, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		engine:   engine,
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop, running one sweep immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop gracefully stops the sweeper and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	resolutions, err := s.engine.SweepDisputes(ctx)
	if err != nil {
		s.logger.Error("dispute sweep failed", "error", err)
		return
	}
	if len(resolutions) > 0 {
		s.logger.Info("dispute sweep resolved disputes", "count", len(resolutions))
	}

	if s.hub == nil {
		return
	}
	for _, res := range resolutions {
		s.hub.Broadcast(res.HomeID, websocket.NewMessage("dispute", res.Status, res.DisputeID, map[string]any{
			"chore_id": res.ChoreID,
		}))
	}
}
