package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

type memBlob struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memBlob) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.objects[path] = raw
	b.types[path] = contentType
	return nil
}

func (b *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	raw, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, raw := range b.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(raw))})
		}
	}
	return out, nil
}

func (b *memBlob) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b.objects[path]
	return ok, nil
}

func (b *memBlob) Delete(_ context.Context, path string) error {
	delete(b.objects, path)
	delete(b.types, path)
	return nil
}

func TestSnapshotWritesDatedExport(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(newStubStore())
	if _, err := svc.Create(ctx, openCSP()); err != nil {
		t.Fatalf("create: %v", err)
	}
	blob := newMemBlob()
	audit := &stubAudit{}
	snap := NewSnapshotter(svc, blob, blob, audit, "/exports/", testLogger())
	snap.now = func() time.Time { return time.Date(2024, 6, 3, 22, 15, 0, 0, time.UTC) }

	info, err := snap.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if info.Path != "exports/historial-bitacora-2024-06-03.csv" {
		t.Fatalf("path=%q", info.Path)
	}
	raw := blob.objects[info.Path]
	if int64(len(raw)) != info.Size || !bytes.HasPrefix(raw, []byte("fecha_evento,ticker,")) {
		t.Fatalf("object size=%d info=%d head=%q", len(raw), info.Size, raw[:20])
	}
	if len(audit.events) != 1 || audit.events[0] != "snapshot_written" {
		t.Fatalf("audit=%v", audit.events)
	}
}

func TestSnapshotListAndRestore(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(newStubStore())
	if _, err := svc.Create(ctx, openCSP()); err != nil {
		t.Fatalf("create: %v", err)
	}
	blob := newMemBlob()
	snap := NewSnapshotter(svc, blob, blob, nil, "exports", testLogger())
	for _, d := range []int{1, 3, 2} {
		snap.now = func() time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
		if _, err := snap.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	blob.objects["exports/notes.txt"] = []byte("x")

	infos, err := snap.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 || infos[0].Path != "exports/historial-bitacora-2024-06-03.csv" {
		t.Fatalf("infos=%v", infos)
	}

	target := newStubStore()
	fresh, _, _ := newTestService(target)
	restorer := NewSnapshotter(fresh, blob, blob, nil, "exports", testLogger())
	got, err := restorer.Restore(ctx, infos[0].Path)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAPL" {
		t.Fatalf("restored=%v", got)
	}

	if _, err := restorer.Restore(ctx, "exports/missing.csv"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing snapshot err=%v want ErrNotFound", err)
	}
}

func TestSnapshotPruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(newStubStore())
	blob := newMemBlob()
	snap := NewSnapshotter(svc, blob, blob, nil, "exports", testLogger())
	for d := 1; d <= 5; d++ {
		snap.now = func() time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
		if _, err := snap.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}

	if n, err := snap.Prune(ctx, 0); err != nil || n != 0 {
		t.Fatalf("prune keep=0 removed=%d err=%v want 0 nil", n, err)
	}
	removed, err := snap.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 || len(blob.objects) != 2 {
		t.Fatalf("removed=%d left=%d want 3 2", removed, len(blob.objects))
	}
	if _, ok := blob.objects["exports/historial-bitacora-2024-06-05.csv"]; !ok {
		t.Fatal("newest snapshot was pruned")
	}
}
