// Package tasks runs background maintenance for the request store.
//
// # Reaping
//
// Resolved requests carry a delete time, set to the resolution time plus the
// configured grace period. The [Reaper] periodically deletes every request
// whose delete time has passed, together with its votes. Pending requests are
// never reaped.
//
// [Reaper.Sweep] performs a single pass and is what the `reap` command runs.
// [Reaper.Run] sweeps on a ticker until its context is cancelled and is
// started by the `serve` command.
//
// # Progress Reporting
//
// Each sweep emits a [SweepUpdate] on an optional channel. Sends use select
// with default so a slow reader never stalls the reaper.
package tasks
