package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/service"

	"go.uber.org/zap"
)

// Photo uploads are individual multipart requests outside the sync
// transaction, so one oversized or corrupt photo can never abort a sync.
const maxPhotoUploadBytes = 32 << 20

// PhotosHandler serves the binary half of the boundary:
// POST /assessments/{id}/photos, GET /photos/{id}, DELETE /photos/{id}.
type PhotosHandler struct {
	photos *service.PhotoService
	sync   *service.SyncService
	logger *zap.Logger
}

func NewPhotosHandler(photos *service.PhotoService, sync *service.SyncService, logger *zap.Logger) *PhotosHandler {
	return &PhotosHandler{photos: photos, sync: sync, logger: logger}
}

// Upload handles POST /assessments/{assessmentId}/photos. The multipart
// body carries the binary under "photo" plus the metadata fields. Keyed by
// the photo's own id, so retries overwrite.
func (h *PhotosHandler) Upload(w http.ResponseWriter, req *http.Request, assessmentID string) {
	if err := req.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	id := req.FormValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "photo id is required")
		return
	}

	file, header, err := req.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo binary is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read photo binary")
		return
	}

	photo := domain.Photo{
		ID:           id,
		AssessmentID: assessmentID,
		ZoneKey:      req.FormValue("zone_key"),
		Annotation:   req.FormValue("annotation"),
		ContentType:  header.Header.Get("Content-Type"),
		CapturedAt:   time.Now().UTC(),
	}
	if photo.ContentType == "" {
		photo.ContentType = "image/jpeg"
	}
	if v := req.FormValue("captured_at"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			photo.CapturedAt = t
		}
	}
	if v := req.FormValue("item_score_id"); v != "" {
		photo.ItemScoreID = &v
	}
	photo.Latitude = parseFloatField(req.FormValue("latitude"))
	photo.Longitude = parseFloatField(req.FormValue("longitude"))
	photo.Heading = parseFloatField(req.FormValue("heading"))

	if err := h.photos.Save(req.Context(), photo, data); err != nil {
		h.logger.Error("photo upload failed",
			zap.String("photo_id", id),
			zap.String("assessment_id", assessmentID),
			zap.Error(err),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

// Download handles GET /photos/{id}: the raw binary with its content type.
func (h *PhotosHandler) Download(w http.ResponseWriter, req *http.Request, id string) {
	photo, data, err := h.photos.Load(req.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Delete handles DELETE /photos/{id}: metadata row and binary both go.
func (h *PhotosHandler) Delete(w http.ResponseWriter, req *http.Request, id string) {
	if err := h.photos.Delete(req.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.sync.InvalidateSummaries(req.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func parseFloatField(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
