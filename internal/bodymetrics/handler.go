package bodymetrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fitlytics/fitlytics/internal/analytics"
	"github.com/fitlytics/fitlytics/internal/middleware"
	"github.com/fitlytics/fitlytics/internal/telemetry/metrics"
	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"
	"github.com/fitlytics/fitlytics/internal/users"
	"github.com/fitlytics/fitlytics/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=handler_mocks_test.go -package=bodymetrics_test

type metricsRepo interface {
	Add(ctx context.Context, metric Metric) (*Metric, error)
	Get(ctx context.Context, id, userID int) (*Metric, error)
	List(ctx context.Context, params ListParams) (_ []Metric, total int, err error)
	ListAll(ctx context.Context, params MetricParams) ([]Metric, error)
	Update(ctx context.Context, metric *Metric) error
	Delete(ctx context.Context, id, userID int) error
}

type profileProvider interface {
	GetProfile(ctx context.Context, userID int) (users.Profile, error)
}

type CreateMetricRequest struct {
	Weight            *float64 `json:"weight"`
	BodyFatPercentage *float64 `json:"bodyFatPercentage"`
	MuscleMass        *float64 `json:"muscleMass"`
	Notes             string   `json:"notes"`
	RecordedAt        string   `json:"recordedAt"`
}

type UpdateMetricRequest struct {
	Weight            *float64 `json:"weight"`
	BodyFatPercentage *float64 `json:"bodyFatPercentage"`
	MuscleMass        *float64 `json:"muscleMass"`
	Notes             *string  `json:"notes"`
	RecordedAt        *string  `json:"recordedAt"`
}

type ListResponse struct {
	Items    []Metric `json:"items"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

type Handler struct {
	repo           metricsRepo
	profiles       profileProvider
	metricsManager *metrics.Manager
}

func NewHandler(repo metricsRepo, profiles profileProvider, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		profiles:       profiles,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.new")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req CreateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new body metric, unmarshal json params: %s", err)
		http.Error(w, "add body metric failed", http.StatusBadRequest)
		return
	}

	if req.RecordedAt == "" {
		http.Error(w, "error, recordedAt empty", http.StatusBadRequest)
		return
	}
	recordedAt, err := analytics.ParseTimestamp(req.RecordedAt)
	if err != nil {
		http.Error(w, "error, invalid recordedAt", http.StatusBadRequest)
		return
	}
	if req.Weight != nil && *req.Weight <= 0 {
		http.Error(w, "error, weight must be positive", http.StatusBadRequest)
		return
	}

	// compute BMI when both weight and profile height are known
	var bmi *float64
	if req.Weight != nil && *req.Weight > 0 {
		profile, err := handler.profiles.GetProfile(ctx, userID)
		if err != nil {
			// metric can still be stored, just without the BMI
			log.Errorf("failed to get profile for user %d: %s", userID, err)
		} else if profile.Height != nil {
			b := analytics.BMI(*req.Weight, *profile.Height)
			bmi = &b
		}
	}

	now := time.Now().UTC()
	addedMetric, err := handler.repo.Add(ctx, Metric{
		UserID:            userID,
		Weight:            req.Weight,
		BodyFatPercentage: req.BodyFatPercentage,
		MuscleMass:        req.MuscleMass,
		BMI:               bmi,
		Notes:             req.Notes,
		RecordedAt:        recordedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		log.Errorf("failed to add new body metric for user %d: %s", userID, err)
		http.Error(w, "error, failed to add new body metric", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterBodyMetrics.Inc()

	addedMetricJson, err := json.Marshal(addedMetric)
	if err != nil {
		log.Errorf("failed to marshal new body metric: %s", err)
		http.Error(w, "error, failed to add new body metric", http.StatusInternalServerError)
		return
	}

	log.Debugf("new body metric added: %d", addedMetric.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedMetricJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.get")
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

	metric, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrMetricNotFound) {
			http.Error(w, "body metric not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get body metric %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metricJson, err := json.Marshal(metric)
	if err != nil {
		log.Errorf("failed to marshal body metric: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, metricJson, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.list")
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

	from, to, err := dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	listedMetrics, total, err := handler.repo.List(ctx, ListParams{
		MetricParams: MetricParams{
			UserID: userID,
			From:   from,
			To:     to,
		},
		Page: page,
		Size: size,
	})
	if err != nil {
		log.Errorf("list body metrics error: %s", err)
		http.Error(w, "failed to get body metrics", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Items:    listedMetrics,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		log.Errorf("marshal body metrics error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.stats")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	days, err := daysWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, to := analytics.LastNDays(days)
	windowMetrics, err := handler.repo.ListAll(ctx, MetricParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("failed to get body metrics for stats: %s", err)
		http.Error(w, "failed to get body metrics stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(CalculateStats(windowMetrics))
	if err != nil {
		log.Errorf("failed to marshal body metrics stats: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statsJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.update")
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

	var req UpdateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update body metric, unmarshal json params: %s", err)
		http.Error(w, "update body metric failed", http.StatusBadRequest)
		return
	}

	metric, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrMetricNotFound) {
			http.Error(w, "body metric not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get body metric %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if req.Weight != nil {
		if *req.Weight <= 0 {
			http.Error(w, "error, weight must be positive", http.StatusBadRequest)
			return
		}
		metric.Weight = req.Weight

		// recalculate BMI against the profile height
		profile, err := handler.profiles.GetProfile(ctx, userID)
		if err != nil {
			log.Errorf("failed to get profile for user %d: %s", userID, err)
		} else if profile.Height != nil {
			b := analytics.BMI(*req.Weight, *profile.Height)
			metric.BMI = &b
		}
	}
	if req.BodyFatPercentage != nil {
		metric.BodyFatPercentage = req.BodyFatPercentage
	}
	if req.MuscleMass != nil {
		metric.MuscleMass = req.MuscleMass
	}
	if req.Notes != nil {
		metric.Notes = *req.Notes
	}
	if req.RecordedAt != nil {
		recordedAt, err := analytics.ParseTimestamp(*req.RecordedAt)
		if err != nil {
			http.Error(w, "error, invalid recordedAt", http.StatusBadRequest)
			return
		}
		metric.RecordedAt = recordedAt
	}
	metric.UpdatedAt = time.Now().UTC()

	if err := handler.repo.Update(ctx, metric); err != nil {
		log.Errorf("failed to update body metric %d: %s", id, err)
		http.Error(w, "error, failed to update body metric", http.StatusInternalServerError)
		return
	}

	metricJson, err := json.Marshal(metric)
	if err != nil {
		log.Errorf("failed to marshal body metric: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, metricJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.delete")
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

	if err := handler.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, ErrMetricNotFound) {
			http.Error(w, "body metric not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete body metric %d: %s", id, err)
		http.Error(w, "body metric not deleted", http.StatusInternalServerError)
		return
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

func dateRange(r *http.Request) (from, to *time.Time, err error) {
	if startStr := r.URL.Query().Get("start_date"); startStr != "" {
		start, err := analytics.ParseTimestamp(startStr)
		if err != nil {
			return nil, nil, errors.New("invalid start_date")
		}
		from = &start
	}
	if endStr := r.URL.Query().Get("end_date"); endStr != "" {
		end, err := analytics.ParseTimestamp(endStr)
		if err != nil {
			return nil, nil, errors.New("invalid end_date")
		}
		to = &end
	}
	return from, to, nil
}

func daysWindow(r *http.Request) (int, error) {
	days := analytics.DefaultRangeDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		var err error
		days, err = strconv.Atoi(daysStr)
		if err != nil || days < 1 || days > 365 {
			return 0, errors.New("invalid days (has to be between 1 and 365)")
		}
	}
	return days, nil
}
