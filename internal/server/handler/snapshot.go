package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// SnapshotService manages CSV snapshots in object storage.
type SnapshotService interface {
	Snapshot(ctx context.Context) (domain.BlobInfo, error)
	List(ctx context.Context) ([]domain.BlobInfo, error)
	Restore(ctx context.Context, key string) ([]ledger.Calculated, error)
}

// SnapshotHandler serves the snapshot endpoints.
type SnapshotHandler struct {
	snapshots SnapshotService
	logger    *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(s SnapshotService, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{snapshots: s, logger: logHandler(logger, "snapshot")}
}

// ListSnapshots returns the stored snapshots, newest first.
// GET /api/snapshots
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.snapshots.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list snapshots", err)
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})
}

// CreateSnapshot writes a snapshot now.
// POST /api/snapshots
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "create snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

type restoreRequest struct {
	Path string `json:"path"`
}

// RestoreSnapshot imports a stored snapshot into the ledger.
// POST /api/snapshots/restore
func (h *SnapshotHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "restore snapshot", err)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeServiceError(w, r, h.logger, "restore snapshot", domain.Invalid("path", "required"))
		return
	}
	rows, err := h.snapshots.Restore(r.Context(), req.Path)
	if err != nil {
		writeServiceError(w, r, h.logger, "restore snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"restored": len(rows)})
}
