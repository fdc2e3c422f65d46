package domain

// FrameNum identifies a frame by its 1-based position in the log.
// Zero means "no frames".
type FrameNum uint64

// Epoch identifies a log generation. It increments when the log is
// truncated or checkpointed.
type Epoch uint64

// Frame is one committed unit of change in the write-ahead log.
type Frame struct {
	// Num is the frame's position within its generation.
	Num FrameNum

	// Data is the frame payload. The engine treats it as opaque bytes.
	Data []byte

	// CRC32 is the IEEE checksum of Data, carried for integrity
	// verification on range reads.
	CRC32 uint32
}

// Position pairs a log generation with its committed frame count.
// Two positions are comparable only when their epochs match.
type Position struct {
	Epoch    Epoch    `json:"epoch"`
	FrameNum FrameNum `json:"frame_num"`
}

// IsZero returns true if the position has never been set.
func (p Position) IsZero() bool {
	return p.Epoch == 0 && p.FrameNum == 0
}

// Watermark is the last position the remote confirmed persisting.
// It is owned by the remote and read-only to this engine; it may lag
// the local log arbitrarily. A zero Epoch means the remote has not
// acknowledged anything for the current generation yet.
type Watermark struct {
	Epoch           Epoch    `json:"epoch"`
	DurableFrameNum FrameNum `json:"durable_frame_num"`
}
