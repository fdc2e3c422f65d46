package wal

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/walsync/internal/domain"
)

const (
	logFileName = "walsync.wal"

	logMagic   = "wsyncwal"
	logVersion = 1

	hdrSize    = 24 // magic[8] + version u32 + epoch u64 + reserved u32
	recHdrSize = 16 // frame num u64 + data len u32 + crc32 u32
)

// pinRetryInterval is the time between reattempting a read pin while a
// truncation holds the log exclusively.
const pinRetryInterval = 10 * time.Microsecond

// maxFrameSize bounds a single frame payload. Append rejects anything
// larger; a larger record on disk is treated as corruption during
// recovery and range reads.
const maxFrameSize = 64 << 20

// LogStore is the append-only frame log on durable storage; ground truth
// for frame bytes. Frame accounting lives in the SharedIndex, which is
// committed only after an append is durable.
type LogStore struct {
	path string
	idx  *SharedIndex

	mu      sync.Mutex
	f       *os.File
	size    int64
	offsets []int64 // offsets[i] is the record offset of frame i+1
	closed  bool

	truncMu     sync.RWMutex // read pins; held exclusively during truncation
	writerTaken atomic.Bool
}

// Open opens or creates the frame log under dir and recovers the shared
// index from its contents. A torn tail (partial final record) is dropped.
func Open(dir string) (*LogStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	l := &LogStore{path: path, f: f, idx: NewSharedIndex()}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}

	if fi.Size() == 0 {
		if err := l.writeHeader(1); err != nil {
			f.Close()
			return nil, err
		}
		l.size = hdrSize
		l.idx.restore(1, 0)
		return l, nil
	}

	if err := l.recover(fi.Size()); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the log file path.
func (l *LogStore) Path() string { return l.path }

// Index returns the shared index backing this log.
func (l *LogStore) Index() *SharedIndex { return l.idx }

func (l *LogStore) writeHeader(epoch domain.Epoch) error {
	hdr := make([]byte, hdrSize)
	copy(hdr[0:8], logMagic)
	binary.BigEndian.PutUint32(hdr[8:12], logVersion)
	binary.BigEndian.PutUint64(hdr[12:20], uint64(epoch))
	if _, err := l.f.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("write log header: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync log header: %w", err)
	}
	return nil
}

// recover scans the log, rebuilds the offset table, and seeds the shared
// index. The scan stops at the first record that is out of sequence,
// truncated, or fails its checksum; everything after that point is
// discarded.
func (l *LogStore) recover(fileSize int64) error {
	hdr := make([]byte, hdrSize)
	if _, err := l.f.ReadAt(hdr, 0); err != nil {
		return fmt.Errorf("read log header: %w", err)
	}
	if !bytes.Equal(hdr[0:8], []byte(logMagic)) {
		return fmt.Errorf("not a walsync log: bad magic")
	}
	if v := binary.BigEndian.Uint32(hdr[8:12]); v != logVersion {
		return fmt.Errorf("unsupported log version %d", v)
	}
	epoch := domain.Epoch(binary.BigEndian.Uint64(hdr[12:20]))
	if epoch == 0 {
		epoch = 1
	}

	off := int64(hdrSize)
	rec := make([]byte, recHdrSize)
	for off < fileSize {
		if _, err := l.f.ReadAt(rec, off); err != nil {
			break // torn header
		}
		num := binary.BigEndian.Uint64(rec[0:8])
		dataLen := binary.BigEndian.Uint32(rec[8:12])
		crc := binary.BigEndian.Uint32(rec[12:16])

		if num != uint64(len(l.offsets))+1 || dataLen > maxFrameSize {
			break
		}
		if off+recHdrSize+int64(dataLen) > fileSize {
			break // torn payload
		}
		data := make([]byte, dataLen)
		if _, err := l.f.ReadAt(data, off+recHdrSize); err != nil {
			break
		}
		if crc32.ChecksumIEEE(data) != crc {
			break
		}
		l.offsets = append(l.offsets, off)
		off += recHdrSize + int64(dataLen)
	}

	if off < fileSize {
		if err := l.f.Truncate(off); err != nil {
			return fmt.Errorf("drop torn tail: %w", err)
		}
	}
	l.size = off
	l.idx.restore(epoch, domain.FrameNum(len(l.offsets)))
	return nil
}

// append writes one frame record, makes it durable, and publishes the new
// committed count. Called via Writer only.
func (l *LogStore) append(ctx context.Context, data []byte) (domain.FrameNum, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(data) > maxFrameSize {
		return 0, fmt.Errorf("frame payload %d bytes: %w", len(data), domain.ErrFrameTooLarge)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, domain.ErrClosed
	}

	num := domain.FrameNum(len(l.offsets) + 1)
	rec := make([]byte, recHdrSize+len(data))
	binary.BigEndian.PutUint64(rec[0:8], uint64(num))
	binary.BigEndian.PutUint32(rec[8:12], uint32(len(data)))
	binary.BigEndian.PutUint32(rec[12:16], crc32.ChecksumIEEE(data))
	copy(rec[recHdrSize:], data)

	off := l.size
	if _, err := l.f.WriteAt(rec, off); err != nil {
		return 0, fmt.Errorf("append frame %d: %w", num, err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, fmt.Errorf("sync frame %d: %w", num, err)
	}
	l.offsets = append(l.offsets, off)
	l.size += int64(len(rec))

	if err := l.idx.Commit(num); err != nil {
		return 0, fmt.Errorf("commit frame %d: %w", num, err)
	}
	return num, nil
}

// truncate drops every frame and starts a new generation. It waits for
// all read pins to drain, honoring ctx.
func (l *LogStore) truncate(ctx context.Context) (domain.Epoch, error) {
	if err := l.lockExclusive(ctx); err != nil {
		return 0, err
	}
	defer l.truncMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, domain.ErrClosed
	}

	epoch, err := l.idx.Reset(0)
	if err != nil {
		return 0, err
	}
	if err := l.writeHeader(epoch); err != nil {
		return 0, err
	}
	if err := l.f.Truncate(hdrSize); err != nil {
		return 0, fmt.Errorf("truncate log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, fmt.Errorf("sync truncated log: %w", err)
	}
	l.offsets = l.offsets[:0]
	l.size = hdrSize
	return epoch, nil
}

func (l *LogStore) lockExclusive(ctx context.Context) error {
	if l.truncMu.TryLock() {
		return nil
	}
	ticker := time.NewTicker(pinRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.truncMu.TryLock() {
				return nil
			}
		}
	}
}

// pinRead takes a shared pin on the log so frames cannot be truncated out
// from under an open read scope. Bounded by ctx; truncations hold the pin
// exclusively only for the duration of the file rewrite.
func (l *LogStore) pinRead(ctx context.Context) error {
	if l.truncMu.TryRLock() {
		return nil
	}
	ticker := time.NewTicker(pinRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.truncMu.TryRLock() {
				return nil
			}
		}
	}
}

func (l *LogStore) unpinRead() { l.truncMu.RUnlock() }

// ReadFrames returns exactly to-from+1 frames, verifying each record's
// sequence number and checksum. Any gap, truncation, or corruption fails
// with ErrRangeRead; partial results are never returned.
func (l *LogStore) ReadFrames(ctx context.Context, from, to domain.FrameNum) ([]domain.Frame, error) {
	if from == 0 || to < from {
		return nil, fmt.Errorf("invalid frame range [%d,%d]: %w", from, to, domain.ErrRangeRead)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, domain.ErrClosed
	}
	committed := domain.FrameNum(len(l.offsets))
	if to > committed {
		l.mu.Unlock()
		return nil, fmt.Errorf("frame range [%d,%d] beyond committed frame %d: %w", from, to, committed, domain.ErrRangeRead)
	}
	offs := make([]int64, to-from+1)
	copy(offs, l.offsets[from-1:to])
	l.mu.Unlock()

	frames := make([]domain.Frame, 0, len(offs))
	rec := make([]byte, recHdrSize)
	for i, off := range offs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		want := from + domain.FrameNum(i)

		if _, err := l.f.ReadAt(rec, off); err != nil {
			return nil, fmt.Errorf("read frame %d header: %w", want, errors.Join(err, domain.ErrRangeRead))
		}
		num := binary.BigEndian.Uint64(rec[0:8])
		dataLen := binary.BigEndian.Uint32(rec[8:12])
		crc := binary.BigEndian.Uint32(rec[12:16])
		if num != uint64(want) || dataLen > maxFrameSize {
			return nil, fmt.Errorf("frame %d: found record %d: %w", want, num, domain.ErrRangeRead)
		}

		data := make([]byte, dataLen)
		if _, err := io.ReadFull(io.NewSectionReader(l.f, off+recHdrSize, int64(dataLen)), data); err != nil {
			return nil, fmt.Errorf("read frame %d payload: %w", want, errors.Join(err, domain.ErrRangeRead))
		}
		if crc32.ChecksumIEEE(data) != crc {
			return nil, fmt.Errorf("frame %d checksum mismatch: %w", want, domain.ErrRangeRead)
		}
		frames = append(frames, domain.Frame{Num: want, Data: data, CRC32: crc})
	}
	return frames, nil
}

// Close closes the underlying file. Outstanding handles fail afterwards.
func (l *LogStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.f.Close()
}
