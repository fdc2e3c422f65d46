// Package ports defines the interfaces that connect the sync engine to
// infrastructure adapters.
//
//   - [FrameSource]: reads committed frame ranges from the log
//   - [FrameSender]: transmits a frame range to the remote service
//   - [WatermarkSource]: pulls the remote's durable position
//   - [WatermarkProvider]: serves the engine's non-blocking watermark reads
//   - [StateRepository]: persists the sync loop's last-pushed record
//   - [HTTPClient]: HTTP abstraction for dependency injection
//
// The engine depends only on these interfaces; concrete implementations
// live in internal/adapters and internal/wal.
package ports
