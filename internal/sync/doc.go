// Package sync runs vector tile synchronization for one dataset.
//
// A Manager owns a single run slot. StartSync plans the tile grid of the
// dataset, optionally excludes the tiles completed by the latest stopped run,
// and hands the work list to the fetch orchestrator. Every tile result is
// decoded, keyed and upserted, and the run is checkpointed to the RunStore
// every few processed tiles. When the orchestrator returns the run ends as:
//
//   - COMPLETED: every planned tile was processed, with or without tile errors
//   - STOPPED: StopSync cancelled the run before all tiles were processed
//   - FAILED: a checkpoint write failed or a worker panicked
//
// The terminal record is saved before the run slot is released, so a run seen
// as finished is always durable.
//
// The sync/coordinator subpackage starts runs on a schedule.
package sync
