// Package coordinator starts scheduled sync runs.
//
// Each scheduled dataset gets its own loop that calls StartSync once at
// startup and then every configured interval, with a small random jitter so
// that several datasets do not hit the tile host at the same moment. A trigger
// that finds a run already active is a no-op because StartSync returns the
// active run unchanged.
//
// Usage:
//
//	c := coordinator.New([]coordinator.Schedule{
//	    {Service: roads, Interval: 24 * time.Hour, Resume: true},
//	})
//	go c.Start(ctx)
//	defer c.Stop()
package coordinator
