package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/csvcodec"
	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// Transfer moves the ledger history in and out as CSV.
type Transfer interface {
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
	ImportCSV(ctx context.Context, r io.Reader) ([]ledger.Calculated, error)
}

// CSVHandler serves the CSV export and import endpoints.
type CSVHandler struct {
	ledger Transfer
	logger *slog.Logger
	now    func() time.Time
}

// NewCSVHandler creates a CSVHandler.
func NewCSVHandler(l Transfer, logger *slog.Logger) *CSVHandler {
	return &CSVHandler{ledger: l, logger: logHandler(logger, "csv"), now: time.Now}
}

// Export downloads the full history as a dated CSV attachment.
// GET /api/export.csv
func (h *CSVHandler) Export(w http.ResponseWriter, r *http.Request) {
	// Buffered so a store failure can still become a JSON error.
	var buf bytes.Buffer
	count, err := h.ledger.ExportCSV(r.Context(), &buf)
	if err != nil {
		writeServiceError(w, r, h.logger, "export", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": csvcodec.FileName(h.now()),
	}))
	w.Header().Set("X-Movement-Count", strconv.Itoa(count))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Import appends the movements of an uploaded CSV. The file may be sent as
// the "file" field of a multipart form or as the raw request body.
// POST /api/import
func (h *CSVHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeServiceError(w, r, h.logger, "import", domain.Invalid("file", "multipart field \"file\" is required"))
			return
		}
		defer file.Close()
		src = file
	}

	rows, err := h.ledger.ImportCSV(r.Context(), src)
	if err != nil {
		writeServiceError(w, r, h.logger, "import", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"imported":  len(rows),
		"movements": nonNil(rows),
	})
}
