package domain

import "time"

// State is the sync loop's persistent record of what has been pushed,
// used for crash recovery and diagnostics. It never feeds the push
// decision itself; the decision always compares a fresh snapshot against
// the remote watermark.
type State struct {
	// LastPushed is the highest position confirmed sent to the remote.
	LastPushed Position `json:"last_pushed"`

	// LastPushAt is when the last successful push completed.
	LastPushAt time.Time `json:"last_push_at"`

	// LastCycleAt is when the last sync cycle ran, pushing or not.
	LastCycleAt time.Time `json:"last_cycle_at"`
}
