package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bft-labs/walsync/internal/domain"
	"github.com/bft-labs/walsync/internal/ports"
	"github.com/bft-labs/walsync/internal/wal"
)

type fakeSender struct {
	err    error
	epochs []domain.Epoch
	sent   [][]domain.Frame
}

func (s *fakeSender) Send(ctx context.Context, epoch domain.Epoch, frames []domain.Frame, _ ports.SendMetadata) error {
	if s.err != nil {
		return s.err
	}
	s.epochs = append(s.epochs, epoch)
	s.sent = append(s.sent, frames)
	return nil
}

type memStates struct {
	saved []domain.State
}

func (m *memStates) Load(ctx context.Context) (domain.State, error) {
	if len(m.saved) == 0 {
		return domain.State{}, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memStates) Save(ctx context.Context, st domain.State) error {
	m.saved = append(m.saved, st)
	return nil
}

func newTestLog(t *testing.T) (*wal.LogStore, *wal.Writer) {
	t.Helper()
	l, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	w, err := l.Writer()
	if err != nil {
		t.Fatalf("acquire writer: %v", err)
	}
	return l, w
}

func appendFrames(t *testing.T, w *wal.Writer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := w.Append(context.Background(), []byte(fmt.Sprintf("frame-%d", i+1))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

// A sync engine whose handle never ran a query must still see frames
// committed by the writer: Decide refreshes unconditionally.
func TestDecideFreshHandleSeesCommittedFrames(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 4)

	eng := New(store, Options{})
	d, err := eng.Decide(context.Background(), domain.Watermark{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	want := domain.PushRange(1, 4)
	if d != want {
		t.Fatalf("decision = %v, want %v", d, want)
	}
}

func TestDecideUpToDateIsIdempotent(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 4)

	eng := New(store, Options{})
	remote := domain.Watermark{Epoch: 1, DurableFrameNum: 4}

	for i := 0; i < 2; i++ {
		d, err := eng.Decide(context.Background(), remote)
		if err != nil {
			t.Fatalf("decide #%d: %v", i+1, err)
		}
		if d.Kind != domain.DecisionUpToDate {
			t.Fatalf("decision #%d = %v, want up-to-date", i+1, d)
		}
	}
}

func TestDecideClampsWhenRemoteAhead(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 4)

	eng := New(store, Options{})
	d, err := eng.Decide(context.Background(), domain.Watermark{Epoch: 1, DurableFrameNum: 6})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Kind != domain.DecisionUpToDate {
		t.Fatalf("decision = %v, want up-to-date (clamped)", d)
	}
}

func TestDecideEpochMismatch(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 4)

	// Remote still acks generation 1 while the log moves to generation 2.
	remote := domain.Watermark{Epoch: 1, DurableFrameNum: 2}
	if _, err := w.Checkpoint(context.Background()); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	appendFrames(t, w, 1)

	eng := New(store, Options{})
	d, err := eng.Decide(context.Background(), remote)
	if !errors.Is(err, domain.ErrEpochMismatch) {
		t.Fatalf("decide error = %v, want ErrEpochMismatch", err)
	}
	if d.Kind != domain.DecisionUpToDate {
		t.Fatalf("decision = %v on epoch mismatch, want up-to-date", d)
	}
}

func TestRunSyncCyclePushesAndRecordsState(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 3)

	sender := &fakeSender{}
	states := &memStates{}
	watermarks := NewWatermarkCache()

	eng := New(store, Options{Sender: sender, Watermarks: watermarks, States: states})
	d, err := eng.RunSyncCycle(context.Background())
	if err != nil {
		t.Fatalf("run sync cycle: %v", err)
	}
	if want := domain.PushRange(1, 3); d != want {
		t.Fatalf("decision = %v, want %v", d, want)
	}

	if len(sender.sent) != 1 || len(sender.sent[0]) != 3 {
		t.Fatalf("sender got %d batches, want 1 batch of 3 frames", len(sender.sent))
	}
	if got := sender.sent[0][0]; got.Num != 1 || !bytes.Equal(got.Data, []byte("frame-1")) {
		t.Fatalf("first pushed frame = %+v", got)
	}
	if sender.epochs[0] != 1 {
		t.Fatalf("pushed epoch = %d, want 1", sender.epochs[0])
	}

	if len(states.saved) != 1 {
		t.Fatalf("saved %d states, want 1", len(states.saved))
	}
	if got, want := states.saved[0].LastPushed, (domain.Position{Epoch: 1, FrameNum: 3}); got != want {
		t.Fatalf("last pushed = %+v, want %+v", got, want)
	}

	stats := eng.Stats()
	if stats.FramesPushed != 3 || stats.PushRangesComputed != 1 {
		t.Fatalf("stats = %+v, want 3 frames pushed over 1 range", stats)
	}
	if stats.ScopesBegun == 0 {
		t.Fatalf("stats = %+v, want scopes begun > 0", stats)
	}
}

func TestRunSyncCycleSenderFailureAdvancesNothing(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 3)

	sender := &fakeSender{err: errors.New("remote unavailable")}
	states := &memStates{}
	eng := New(store, Options{Sender: sender, Watermarks: NewWatermarkCache(), States: states})

	if _, err := eng.RunSyncCycle(context.Background()); err == nil {
		t.Fatal("expected error from failing sender")
	}
	if len(states.saved) != 0 {
		t.Fatalf("state saved on failed push: %+v", states.saved)
	}
	if got := eng.Stats().FramesPushed; got != 0 {
		t.Fatalf("frames pushed = %d after failure, want 0", got)
	}
}

func TestRunSyncCycleUpToDateSendsNothing(t *testing.T) {
	store, w := newTestLog(t)
	appendFrames(t, w, 2)

	sender := &fakeSender{}
	watermarks := NewWatermarkCache()
	watermarks.Update(domain.Watermark{Epoch: 1, DurableFrameNum: 2})

	eng := New(store, Options{Sender: sender, Watermarks: watermarks})
	d, err := eng.RunSyncCycle(context.Background())
	if err != nil {
		t.Fatalf("run sync cycle: %v", err)
	}
	if d.Kind != domain.DecisionUpToDate {
		t.Fatalf("decision = %v, want up-to-date", d)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sender called on up-to-date cycle")
	}
}

// Successive push ranges against an advancing watermark must tile the
// log: no overlap, no gap.
func TestPushRangesAreContiguous(t *testing.T) {
	store, w := newTestLog(t)

	sender := &fakeSender{}
	watermarks := NewWatermarkCache()
	eng := New(store, Options{Sender: sender, Watermarks: watermarks})

	var prevTo domain.FrameNum
	for cycle := 0; cycle < 5; cycle++ {
		appendFrames(t, w, cycle+1)

		d, err := eng.RunSyncCycle(context.Background())
		if err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		if d.Kind != domain.DecisionPushRange {
			t.Fatalf("cycle %d decision = %v, want push range", cycle, d)
		}
		if d.From != prevTo+1 {
			t.Fatalf("cycle %d range starts at %d, want %d", cycle, d.From, prevTo+1)
		}
		prevTo = d.To

		// Remote acknowledges the pushed range before the next cycle.
		watermarks.Update(domain.Watermark{Epoch: 1, DurableFrameNum: d.To})
	}
}
