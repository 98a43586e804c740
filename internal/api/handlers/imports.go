package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/gcs"
	"github.com/dvloznov/budget-tracker/internal/gcsuploader"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
)

// ImportsHandler handles bank export uploads.
type ImportsHandler struct {
	importer  *pipeline.Importer
	publisher jobs.Publisher     // nil disables queued imports
	storage   gcs.StorageService // nil disables queued uploads
	bucket    string
	cache     *analytics.Cache
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(importer *pipeline.Importer, publisher jobs.Publisher, storage gcs.StorageService, bucket string, cache *analytics.Cache, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		importer:  importer,
		publisher: publisher,
		storage:   storage,
		bucket:    bucket,
		cache:     cache,
		log:       log,
	}
}

// Import handles POST /api/imports.
//
// A multipart upload (field "file", optional "bank") is imported right away
// unless "async=true" asks for it to be stored in GCS and queued. A JSON body
// {"gcs_uri", "filename", "bank"} queues an export that is already in GCS.
func (h *ImportsHandler) Import(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.upload(w, r)
		return
	}

	var req struct {
		GCSURI   string `json:"gcs_uri"`
		Filename string `json:"filename"`
		Bank     string `json:"bank"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, _, err := gcsuploader.ParseURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must be a gs://bucket/object URI")
		return
	}
	h.enqueue(w, r, &jobs.ImportJob{
		UserID:   userID(r),
		GCSURI:   req.GCSURI,
		Filename: req.Filename,
		Bank:     req.Bank,
	})
}

func (h *ImportsHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(r)

	r.Body = http.MaxBytesReader(w, r.Body, gcsuploader.MaxImportSize+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, gcsuploader.MaxImportSize+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(data) > gcsuploader.MaxImportSize {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	filename := filepath.Base(header.Filename)
	bank := r.FormValue("bank")

	if r.FormValue("async") == "true" {
		if h.storage == nil || h.bucket == "" {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Queued imports are not configured")
			return
		}
		object := gcsuploader.ImportObjectName(user, filename)
		if err := h.storage.UploadBytes(ctx, h.bucket, object, data); err != nil {
			h.log.Error().Err(err).Str("object", object).Msg("Failed to store upload")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store upload")
			return
		}
		h.enqueue(w, r, &jobs.ImportJob{
			UserID:   user,
			GCSURI:   gcsuploader.URI(h.bucket, object),
			Filename: filename,
			Bank:     bank,
		})
		return
	}

	report, err := h.importer.Import(ctx, pipeline.Request{
		UserID:   user,
		Filename: filename,
		Bank:     bank,
		Data:     data,
	})
	if report.Inserted > 0 {
		invalidate(h.cache, user)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUnreadableFile) || errors.Is(err, domain.ErrColumnMappingFailed) {
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  err.Error(),
				"report": report,
			})
			return
		}
		writeStoreError(w, h.log, err, "Import failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

func (h *ImportsHandler) enqueue(w http.ResponseWriter, r *http.Request, job *jobs.ImportJob) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Queued imports are not configured")
		return
	}
	if err := h.publisher.PublishImport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("gcs_uri", job.GCSURI).Msg("Import job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": job.GCSURI,
		"status":  string(job.Status),
	})
}
