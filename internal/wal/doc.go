// Package wal implements the frame log and the coherency protocol around
// its committed frame count.
//
// Three pieces cooperate:
//
//   - [LogStore]: append-only frame records on disk, the ground truth
//   - [SharedIndex]: the (epoch, committed count) pair visible to all handles
//   - [Handle]: a per-connection cache of that pair, refreshed only by
//     an explicit read scope ([Handle.BeginRead])
//
// The cache discipline is deliberate: a committed frame count consumed
// for a sync decision must come from a scope opened for that decision.
// Reading the shared index directly and holding onto the result is how
// stale-count bugs happen; Handle.FrameCount makes that staleness a
// reported error instead of a silently wrong number.
package wal
