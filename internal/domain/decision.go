package domain

import "fmt"

// DecisionKind classifies the outcome of a sync decision.
type DecisionKind int

const (
	// DecisionUpToDate means the remote already holds every committed frame.
	DecisionUpToDate DecisionKind = iota

	// DecisionPushRange means frames [From, To] must be transmitted.
	DecisionPushRange
)

// String returns the string representation of the kind.
func (k DecisionKind) String() string {
	switch k {
	case DecisionUpToDate:
		return "up-to-date"
	case DecisionPushRange:
		return "push-range"
	default:
		return fmt.Sprintf("<unknown(%d)>", int(k))
	}
}

// SyncDecision is the result of comparing the local committed frame count
// against the remote watermark.
type SyncDecision struct {
	Kind DecisionKind

	// From and To bound the frames to push, inclusive.
	// Only meaningful when Kind is DecisionPushRange.
	From FrameNum
	To   FrameNum
}

// UpToDate returns a decision indicating no push is needed.
func UpToDate() SyncDecision {
	return SyncDecision{Kind: DecisionUpToDate}
}

// PushRange returns a decision to push frames [from, to].
func PushRange(from, to FrameNum) SyncDecision {
	return SyncDecision{Kind: DecisionPushRange, From: from, To: to}
}

// FrameCount returns the number of frames the decision would push.
func (d SyncDecision) FrameCount() int {
	if d.Kind != DecisionPushRange {
		return 0
	}
	return int(d.To - d.From + 1)
}

// String returns a human-readable form for logs.
func (d SyncDecision) String() string {
	if d.Kind == DecisionPushRange {
		return fmt.Sprintf("push-range[%d,%d]", d.From, d.To)
	}
	return d.Kind.String()
}
