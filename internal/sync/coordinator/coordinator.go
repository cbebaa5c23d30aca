package coordinator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	gosync "sync"
	"time"

	pkgsync "github.com/urbanmap/tilesync/internal/sync"
)

// maxJitterFraction bounds the random offset applied to every interval
const maxJitterFraction = 0.1

// Coordinator manages scheduled sync runs for multiple datasets
type Coordinator interface {
	// Start runs the schedules. It blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends all schedule loops and waits for them. Active runs are not stopped.
	Stop() error
}

// Schedule triggers runs of one dataset
type Schedule struct {
	Service  pkgsync.Service
	Interval time.Duration
	// Resume continues the latest stopped run when there is one
	Resume bool
}

type defaultCoordinator struct {
	schedules []Schedule

	mu         gosync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator. Schedules without a positive interval are ignored.
func New(schedules []Schedule) Coordinator {
	c := &defaultCoordinator{
		done: make(chan struct{}),
	}
	for _, s := range schedules {
		if s.Service == nil || s.Interval <= 0 {
			continue
		}
		c.schedules = append(c.schedules, s)
	}
	return c
}

// jittered returns interval shifted by a random offset of at most ±10%.
func jittered(interval time.Duration) time.Duration {
	spread := int64(float64(interval) * maxJitterFraction)
	if spread <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	return interval + time.Duration(rand.Int64N(2*spread)-spread)
}

func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting sync coordinator", "scheduled_datasets", len(c.schedules))

	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()

	var wg gosync.WaitGroup
	for _, s := range c.schedules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.loop(coordCtx, s)
		}()
	}

	<-coordCtx.Done()
	wg.Wait()
	close(c.done)
	slog.Info("Sync coordinator stopped")
	return nil
}

func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) loop(ctx context.Context, s Schedule) {
	slog.Info("Scheduled dataset sync",
		"dataset", s.Service.Name(),
		"interval", s.Interval,
		"resume", s.Resume)

	trigger(ctx, s)

	timer := time.NewTimer(jittered(s.Interval))
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			trigger(ctx, s)
			timer.Reset(jittered(s.Interval))
		case <-ctx.Done():
			return
		}
	}
}

func trigger(ctx context.Context, s Schedule) {
	name := s.Service.Name()
	run, err := s.Service.StartSync(ctx, s.Resume)
	if err != nil {
		slog.Error("Scheduled sync failed to start", "dataset", name, "error", err)
		return
	}
	slog.Info("Scheduled sync triggered",
		"dataset", name,
		"run_id", run.ID,
		"status", run.Status,
		"started_at", run.StartedAt)
}
