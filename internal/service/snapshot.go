package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/csvcodec"
	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// HistoryTransfer is the slice of LedgerService the snapshotter needs.
type HistoryTransfer interface {
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
	ImportCSV(ctx context.Context, r io.Reader) ([]ledger.Calculated, error)
}

// Snapshotter copies the ledger history to object storage as a dated CSV
// export and restores it from there.
type Snapshotter struct {
	ledger HistoryTransfer
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewSnapshotter creates a Snapshotter storing exports under prefix
// (e.g. "exports"). audit may be nil.
func NewSnapshotter(
	l HistoryTransfer,
	writer domain.BlobWriter,
	reader domain.BlobReader,
	audit domain.AuditStore,
	prefix string,
	logger *slog.Logger,
) *Snapshotter {
	return &Snapshotter{
		ledger: l,
		writer: writer,
		reader: reader,
		audit:  audit,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With(slog.String("component", "snapshotter")),
		now:    time.Now,
	}
}

// Path returns the object key of the snapshot taken at t. Snapshots taken
// on the same day overwrite each other.
func (s *Snapshotter) Path(t time.Time) string {
	return path.Join(s.prefix, csvcodec.FileName(t))
}

// Snapshot exports the full history and uploads it.
func (s *Snapshotter) Snapshot(ctx context.Context) (domain.BlobInfo, error) {
	var buf bytes.Buffer
	count, err := s.ledger.ExportCSV(ctx, &buf)
	if err != nil {
		return domain.BlobInfo{}, fmt.Errorf("snapshot: export: %w", err)
	}

	now := s.now().UTC()
	key := s.Path(now)
	size := int64(buf.Len())
	if err := s.writer.Put(ctx, key, &buf, "text/csv; charset=utf-8"); err != nil {
		return domain.BlobInfo{}, fmt.Errorf("snapshot: upload %s: %w", key, err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, "snapshot_written", map[string]any{
			"path":  key,
			"count": count,
		}); err != nil {
			s.logger.WarnContext(ctx, "snapshot: audit log failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "snapshot written",
		slog.String("path", key),
		slog.Int("movements", count),
		slog.Int64("bytes", size),
	)
	return domain.BlobInfo{Path: key, Size: size, ContentType: "text/csv", LastModified: now}, nil
}

// List returns the stored snapshots, newest first.
func (s *Snapshotter) List(ctx context.Context) ([]domain.BlobInfo, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	infos, err := s.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Path, ".csv") {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path > out[j].Path })
	return out, nil
}

// Restore imports a stored snapshot into the ledger. The rows are appended,
// so it is meant for an empty ledger.
func (s *Snapshotter) Restore(ctx context.Context, key string) ([]ledger.Calculated, error) {
	ok, err := s.reader.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("snapshot: %s: %w", key, domain.ErrNotFound)
	}
	rc, err := s.reader.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("snapshot: download %s: %w", key, err)
	}
	defer rc.Close()

	out, err := s.ledger.ImportCSV(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: restore %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "snapshot restored", slog.String("path", key), slog.Int("movements", len(out)))
	return out, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed. keep <= 0 keeps everything.
func (s *Snapshotter) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	deleter, ok := s.reader.(domain.BlobDeleter)
	if !ok {
		return 0, errors.New("snapshot: prune: blob store cannot delete")
	}
	infos, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}
	removed := 0
	for _, info := range infos[keep:] {
		if err := deleter.Delete(ctx, info.Path); err != nil {
			return removed, fmt.Errorf("snapshot: delete %s: %w", info.Path, err)
		}
		removed++
	}
	s.logger.InfoContext(ctx, "snapshots pruned", slog.Int("removed", removed), slog.Int("kept", keep))
	return removed, nil
}
