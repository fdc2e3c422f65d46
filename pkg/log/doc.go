// Package log provides a logging abstraction for walsync components.
//
// It defines a Logger interface that can be implemented by any logging
// library. A zerolog adapter and a no-op logger for testing are provided.
package log
