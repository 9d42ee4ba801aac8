package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/colefenn/tally/internal/model"
)

func TestSweeperResolvesOnStart(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)

	d, err := f.engine.CreateDispute(choreID, other, "stale complaint", nil)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}
	f.backdateDispute(t, d.ID, time.Now().UTC().Add(-26*time.Hour))

	sweeper := NewSweeper(f.engine, nil, time.Hour, slog.Default())
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	// The initial sweep runs asynchronously; poll for the resolution.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var status string
		if err := f.db.QueryRow(`SELECT status FROM disputes WHERE id = ?`, d.ID).Scan(&status); err != nil {
			t.Fatalf("get dispute status: %v", err)
		}
		if status == model.DisputeOverruled {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispute still %q after startup sweep", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweeperStopWaitsForLoop(t *testing.T) {
	f := setup(t)

	sweeper := NewSweeper(f.engine, nil, 10*time.Millisecond, slog.Default())
	sweeper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSweeperStopBeforeStart(t *testing.T) {
	f := setup(t)
	sweeper := NewSweeper(f.engine, nil, time.Hour, slog.Default())
	// Should not panic or block.
	sweeper.Stop()
}

func TestSweeperDefaultInterval(t *testing.T) {
	f := setup(t)
	sweeper := NewSweeper(f.engine, nil, 0, slog.Default())
	if sweeper.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", sweeper.interval)
	}
}
