// Package domain contains the core value types for walsync.
//
// It is the innermost layer: no dependencies on storage, HTTP, or logging,
// only the vocabulary the rest of the engine speaks.
//
//   - [Frame]: one committed unit of the write-ahead log
//   - [Position]: an (epoch, frame count) pair published by the shared index
//   - [Watermark]: the remote's last durably applied position
//   - [SyncDecision]: the outcome of one sync cycle
//
// Frame numbers are 1-based and contiguous within a generation. An epoch
// increments on every truncation or checkpoint so that frame numbers from
// different generations are never compared against each other.
package domain
