package fs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bft-labs/walsync/internal/domain"
)

func TestStateFileLoadMissing(t *testing.T) {
	repo := NewStateFileRepository(t.TempDir())

	st, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load missing state: %v", err)
	}
	if !st.LastPushed.IsZero() {
		t.Fatalf("missing state file yielded %+v, want zero state", st)
	}
}

func TestStateFileRoundTrip(t *testing.T) {
	repo := NewStateFileRepository(t.TempDir())

	want := domain.State{
		LastPushed:  domain.Position{Epoch: 2, FrameNum: 17},
		LastPushAt:  time.Now().UTC().Truncate(time.Second),
		LastCycleAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := repo.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("state = %+v, want %+v", got, want)
	}

	// No stray tmp file after the rename.
	if _, err := os.Stat(repo.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestStateFileLoadCorrupt(t *testing.T) {
	repo := NewStateFileRepository(t.TempDir())
	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt state: %v", err)
	}

	if _, err := repo.Load(context.Background()); err == nil {
		t.Fatal("expected error loading corrupt state file")
	}
}
