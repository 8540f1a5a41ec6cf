package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

type stubSnapshotter struct {
	snapshots int
	keep      []int
	err       error
}

func (s *stubSnapshotter) Snapshot(context.Context) (domain.BlobInfo, error) {
	if s.err != nil {
		return domain.BlobInfo{}, s.err
	}
	s.snapshots++
	return domain.BlobInfo{Path: "exports/historial-bitacora-2024-06-01.csv"}, nil
}

func (s *stubSnapshotter) Prune(_ context.Context, keep int) (int, error) {
	s.keep = append(s.keep, keep)
	return 0, nil
}

type stubLock struct {
	held     bool
	released int
}

func (l *stubLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.held = true
	return func() {
		l.held = false
		l.released++
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSnapshotsAndPrunes(t *testing.T) {
	s := &stubSnapshotter{}
	lock := &stubLock{}
	job := NewSnapshotJob(s, lock, 7, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.snapshots != 1 || len(s.keep) != 1 || s.keep[0] != 7 {
		t.Fatalf("snapshots=%d keep=%v want 1 [7]", s.snapshots, s.keep)
	}
	if lock.held || lock.released != 1 {
		t.Fatalf("lock held=%v released=%d want false 1", lock.held, lock.released)
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	s := &stubSnapshotter{}
	job := NewSnapshotJob(s, &stubLock{held: true}, 0, testLogger())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.snapshots != 0 {
		t.Fatalf("snapshots=%d want=0", s.snapshots)
	}
}

func TestRunReportsSnapshotFailure(t *testing.T) {
	boom := errors.New("bucket gone")
	job := NewSnapshotJob(&stubSnapshotter{err: boom}, nil, 0, testLogger())
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err=%v want wrapped %v", err, boom)
	}
}

func TestRunCronRejectsBadSpec(t *testing.T) {
	job := NewSnapshotJob(&stubSnapshotter{}, nil, 0, testLogger())
	if err := job.RunCron(context.Background(), "every tuesday"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunCronStopsOnCancel(t *testing.T) {
	job := NewSnapshotJob(&stubSnapshotter{}, nil, 0, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := job.RunCron(ctx, "0 3 * * *"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}
