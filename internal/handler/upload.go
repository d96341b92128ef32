package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/service"
)

const multipartMemory = 8 << 20

// UploadHandler accepts spreadsheet uploads for ingestion
type UploadHandler struct {
	ingest *service.IngestService
	logger *slog.Logger
}

func NewUploadHandler(ingest *service.IngestService, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{ingest: ingest, logger: logger}
}

// ServeHTTP handles POST /api/data-sources/upload.
// The form carries the file under "file" and an optional display "name".
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	source, err := h.ingest.Upload(r.Context(), r.FormValue("name"), header.Filename, file)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("data source uploaded",
		slog.Int64("data_source_id", source.ID),
		slog.String("type", source.Type),
		slog.Int64("size", header.Size),
	)
	writeJSON(w, http.StatusAccepted, source)
}
