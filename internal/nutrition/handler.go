package nutrition

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
	"github.com/fitlytics/fitlytics/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=handler_mocks_test.go -package=nutrition_test

type entriesRepo interface {
	Add(ctx context.Context, entry Entry) (*Entry, error)
	Get(ctx context.Context, id, userID int) (*Entry, error)
	List(ctx context.Context, params ListParams) (_ []Entry, total int, err error)
	ListAll(ctx context.Context, params EntryParams) ([]Entry, error)
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, id, userID int) error
}

type CreateEntryRequest struct {
	MealType      string   `json:"mealType"`
	FoodName      string   `json:"foodName"`
	Calories      int      `json:"calories"`
	Protein       *float64 `json:"protein"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Fat           *float64 `json:"fat"`
	Portion       string   `json:"portion"`
	Notes         string   `json:"notes"`
	RecordedAt    string   `json:"recordedAt"`
}

type UpdateEntryRequest struct {
	MealType      *string  `json:"mealType"`
	FoodName      *string  `json:"foodName"`
	Calories      *int     `json:"calories"`
	Protein       *float64 `json:"protein"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Fat           *float64 `json:"fat"`
	Portion       *string  `json:"portion"`
	Notes         *string  `json:"notes"`
	RecordedAt    *string  `json:"recordedAt"`
}

type ListResponse struct {
	Items    []Entry `json:"items"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

type Handler struct {
	repo           entriesRepo
	metricsManager *metrics.Manager
}

func NewHandler(repo entriesRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.new")
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

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new nutrition entry, unmarshal json params: %s", err)
		http.Error(w, "add nutrition entry failed", http.StatusBadRequest)
		return
	}

	if req.MealType == "" {
		http.Error(w, "error, mealType empty", http.StatusBadRequest)
		return
	}
	if req.FoodName == "" {
		http.Error(w, "error, foodName empty", http.StatusBadRequest)
		return
	}
	if req.Calories < 0 {
		http.Error(w, "error, calories must not be negative", http.StatusBadRequest)
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

	now := time.Now().UTC()
	addedEntry, err := handler.repo.Add(ctx, Entry{
		UserID:        userID,
		MealType:      req.MealType,
		FoodName:      req.FoodName,
		Calories:      req.Calories,
		Protein:       req.Protein,
		Carbohydrates: req.Carbohydrates,
		Fat:           req.Fat,
		Portion:       req.Portion,
		Notes:         req.Notes,
		RecordedAt:    recordedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		log.Errorf("failed to add new nutrition entry for user %d: %s", userID, err)
		http.Error(w, "error, failed to add new nutrition entry", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterNutritionEntries.Inc()

	addedEntryJson, err := json.Marshal(addedEntry)
	if err != nil {
		log.Errorf("failed to marshal new nutrition entry: %s", err)
		http.Error(w, "error, failed to add new nutrition entry", http.StatusInternalServerError)
		return
	}

	log.Debugf("new nutrition entry added: %d", addedEntry.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedEntryJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.get")
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

	entry, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "nutrition entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get nutrition entry %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("failed to marshal nutrition entry: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.list")
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

	entries, total, err := handler.repo.List(ctx, ListParams{
		EntryParams: EntryParams{
			UserID: userID,
			From:   from,
			To:     to,
		},
		Page: page,
		Size: size,
	})
	if err != nil {
		log.Errorf("list nutrition entries error: %s", err)
		http.Error(w, "failed to get nutrition entries", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Items:    entries,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		log.Errorf("marshal nutrition entries error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.stats")
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
	entries, err := handler.repo.ListAll(ctx, EntryParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("failed to get nutrition entries for stats: %s", err)
		http.Error(w, "failed to get nutrition stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(CalculateStats(entries))
	if err != nil {
		log.Errorf("failed to marshal nutrition stats: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statsJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.update")
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

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update nutrition entry, unmarshal json params: %s", err)
		http.Error(w, "update nutrition entry failed", http.StatusBadRequest)
		return
	}

	entry, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "nutrition entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get nutrition entry %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if req.MealType != nil {
		if *req.MealType == "" {
			http.Error(w, "error, mealType empty", http.StatusBadRequest)
			return
		}
		entry.MealType = *req.MealType
	}
	if req.FoodName != nil {
		if *req.FoodName == "" {
			http.Error(w, "error, foodName empty", http.StatusBadRequest)
			return
		}
		entry.FoodName = *req.FoodName
	}
	if req.Calories != nil {
		if *req.Calories < 0 {
			http.Error(w, "error, calories must not be negative", http.StatusBadRequest)
			return
		}
		entry.Calories = *req.Calories
	}
	if req.Protein != nil {
		entry.Protein = req.Protein
	}
	if req.Carbohydrates != nil {
		entry.Carbohydrates = req.Carbohydrates
	}
	if req.Fat != nil {
		entry.Fat = req.Fat
	}
	if req.Portion != nil {
		entry.Portion = *req.Portion
	}
	if req.Notes != nil {
		entry.Notes = *req.Notes
	}
	if req.RecordedAt != nil {
		recordedAt, err := analytics.ParseTimestamp(*req.RecordedAt)
		if err != nil {
			http.Error(w, "error, invalid recordedAt", http.StatusBadRequest)
			return
		}
		entry.RecordedAt = recordedAt
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := handler.repo.Update(ctx, entry); err != nil {
		log.Errorf("failed to update nutrition entry %d: %s", id, err)
		http.Error(w, "error, failed to update nutrition entry", http.StatusInternalServerError)
		return
	}

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("failed to marshal nutrition entry: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.delete")
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
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "nutrition entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete nutrition entry %d: %s", id, err)
		http.Error(w, "nutrition entry not deleted", http.StatusInternalServerError)
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
