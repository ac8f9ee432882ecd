package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fitlytics/fitlytics/internal/analytics"
	"github.com/fitlytics/fitlytics/internal/middleware"
	"github.com/fitlytics/fitlytics/internal/telemetry/metrics"
	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"
	"github.com/fitlytics/fitlytics/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=handler_mocks_test.go -package=photos_test

// uploads over ~20MB are rejected by ParseMultipartForm
const maxUploadMemory = 20 << 20

type photosRepo interface {
	Add(ctx context.Context, photo ProgressPhoto) (*ProgressPhoto, error)
	Get(ctx context.Context, id, userID int) (*ProgressPhoto, error)
	List(ctx context.Context, params ListParams) (_ []ProgressPhoto, total int, err error)
	Update(ctx context.Context, photo *ProgressPhoto) error
	Delete(ctx context.Context, id, userID int) error
}

type blobStore interface {
	Save(ctx context.Context, blobName string, src io.Reader) (int64, error)
	Open(ctx context.Context, blobName string) (io.ReadCloser, error)
	Delete(ctx context.Context, blobName string) error
}

type UpdatePhotoRequest struct {
	PhotoType  *string `json:"photoType"`
	Notes      *string `json:"notes"`
	RecordedAt *string `json:"recordedAt"`
}

type ListResponse struct {
	Items    []ProgressPhoto `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

type Handler struct {
	repo           photosRepo
	store          blobStore
	metricsManager *metrics.Manager
}

func NewHandler(repo photosRepo, store blobStore, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		store:          store,
		metricsManager: metricsManager,
	}
}

func validPhotoType(photoType string) bool {
	switch photoType {
	case "front", "side", "back":
		return true
	}
	return false
}

func (handler *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.photos.upload")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		log.Tracef("upload photo, parse multipart form: %s", err)
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "error, file missing", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		http.Error(w, "error, only image files are allowed", http.StatusBadRequest)
		return
	}

	photoType := strings.ToLower(r.FormValue("photo_type"))
	if !validPhotoType(photoType) {
		http.Error(w, "error, photo_type must be one of: front, side, back", http.StatusBadRequest)
		return
	}

	recordedAt, err := analytics.ParseTimestamp(r.FormValue("recorded_at"))
	if err != nil {
		http.Error(w, "error, invalid recorded_at", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	blobName := fmt.Sprintf(
		"%d/%s/%s_%s_%s%s",
		userID, now.Format("2006/01"), now.Format("20060102150405"),
		uuid.NewString()[:8], photoType, filepath.Ext(fileHeader.Filename),
	)

	size, err := handler.store.Save(ctx, blobName, file)
	if err != nil {
		log.Errorf("failed to save photo blob %s: %s", blobName, err)
		http.Error(w, "error, failed to upload photo", http.StatusInternalServerError)
		return
	}

	addedPhoto, err := handler.repo.Add(ctx, ProgressPhoto{
		UserID:           userID,
		FileName:         blobName,
		OriginalFileName: fileHeader.Filename,
		MediaType:        "image",
		FileSize:         size,
		MimeType:         mimeType,
		BlobURL:          "/blobs/" + blobName,
		PhotoType:        photoType,
		Notes:            r.FormValue("notes"),
		RecordedAt:       recordedAt,
		UploadedAt:       now,
		UpdatedAt:        now,
	})
	if err != nil {
		log.Errorf("failed to add progress photo for user %d: %s", userID, err)
		if deleteErr := handler.store.Delete(ctx, blobName); deleteErr != nil {
			log.Warnf("failed to remove orphaned blob %s: %s", blobName, deleteErr)
		}
		http.Error(w, "error, failed to upload photo", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterPhotoUploads.Inc()

	addedPhotoJson, err := json.Marshal(addedPhoto)
	if err != nil {
		log.Errorf("failed to marshal progress photo: %s", err)
		http.Error(w, "error, failed to upload photo", http.StatusInternalServerError)
		return
	}

	log.Debugf("new progress photo added: %d [%s]", addedPhoto.ID, blobName)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedPhotoJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.photos.get")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	photo, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			http.Error(w, "progress photo not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get progress photo %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	photoJson, err := json.Marshal(photo)
	if err != nil {
		log.Errorf("failed to marshal progress photo: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, photoJson, http.StatusOK)
}

// HandleDownload streams the photo bytes from the blob store.
func (handler *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.photos.download")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	photo, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			http.Error(w, "progress photo not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get progress photo %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	blob, err := handler.store.Open(ctx, photo.FileName)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			http.Error(w, "progress photo not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to open photo blob %s: %s", photo.FileName, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", photo.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(photo.FileSize, 10))
	if _, err := io.Copy(w, blob); err != nil {
		log.Errorf("failed to stream photo blob %s: %s", photo.FileName, err)
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.photos.list")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	page, size, err := pagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var photoType *string
	if pt := strings.ToLower(r.URL.Query().Get("photo_type")); pt != "" {
		if !validPhotoType(pt) {
			http.Error(w, "error, photo_type must be one of: front, side, back", http.StatusBadRequest)
			return
		}
		photoType = &pt
	}

	listedPhotos, total, err := handler.repo.List(ctx, ListParams{
		PhotoParams: PhotoParams{
			UserID:    userID,
			PhotoType: photoType,
		},
		Page: page,
		Size: size,
	})
	if err != nil {
		log.Errorf("list progress photos error: %s", err)
		http.Error(w, "failed to get progress photos", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Items:    listedPhotos,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		log.Errorf("marshal progress photos error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.photos.update")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req UpdatePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update progress photo, unmarshal json params: %s", err)
		http.Error(w, "update progress photo failed", http.StatusBadRequest)
		return
	}

	photo, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			http.Error(w, "progress photo not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get progress photo %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if req.PhotoType != nil {
		photoType := strings.ToLower(*req.PhotoType)
		if !validPhotoType(photoType) {
			http.Error(w, "error, photoType must be one of: front, side, back", http.StatusBadRequest)
			return
		}
		photo.PhotoType = photoType
	}
	if req.Notes != nil {
		photo.Notes = *req.Notes
	}
	if req.RecordedAt != nil {
		recordedAt, err := analytics.ParseTimestamp(*req.RecordedAt)
		if err != nil {
			http.Error(w, "error, invalid recordedAt", http.StatusBadRequest)
			return
		}
		photo.RecordedAt = recordedAt
	}
	photo.UpdatedAt = time.Now().UTC()

	if err := handler.repo.Update(ctx, photo); err != nil {
		log.Errorf("failed to update progress photo %d: %s", id, err)
		http.Error(w, "error, failed to update progress photo", http.StatusInternalServerError)
		return
	}

	photoJson, err := json.Marshal(photo)
	if err != nil {
		log.Errorf("failed to marshal progress photo: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, photoJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.photos.delete")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	photo, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			http.Error(w, "progress photo not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get progress photo %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Delete(ctx, id, userID); err != nil {
		log.Errorf("failed to delete progress photo %d: %s", id, err)
		http.Error(w, "progress photo not deleted", http.StatusInternalServerError)
		return
	}

	// metadata row is gone, blob removal is best effort
	if err := handler.store.Delete(ctx, photo.FileName); err != nil {
		log.Warnf("failed to remove blob %s: %s", photo.FileName, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func pagination(r *http.Request) (page, size int, err error) {
	page = 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page (has to be a positive number)")
		}
	}
	size = 20
	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil || size < 1 || size > 100 {
			return 0, 0, errors.New("invalid page_size (has to be between 1 and 100)")
		}
	}
	return page, size, nil
}
