package workouts

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

//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=handler_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
	Get(ctx context.Context, id, userID int) (*Workout, error)
	List(ctx context.Context, params ListParams) (_ []Workout, total int, err error)
	ListAll(ctx context.Context, params WorkoutParams) ([]Workout, error)
	Update(ctx context.Context, workout *Workout) error
	Delete(ctx context.Context, id, userID int) error
}

type profileProvider interface {
	GetProfile(ctx context.Context, userID int) (users.Profile, error)
}

type CreateWorkoutRequest struct {
	WorkoutType    string   `json:"workoutType"`
	Duration       int      `json:"duration"`
	Distance       *float64 `json:"distance"`
	CaloriesBurned *int     `json:"caloriesBurned"`
	Intensity      string   `json:"intensity"`
	Notes          string   `json:"notes"`
	StartTime      string   `json:"startTime"`
	EndTime        string   `json:"endTime"`
}

type UpdateWorkoutRequest struct {
	WorkoutType    *string  `json:"workoutType"`
	Duration       *int     `json:"duration"`
	Distance       *float64 `json:"distance"`
	CaloriesBurned *int     `json:"caloriesBurned"`
	Intensity      *string  `json:"intensity"`
	Notes          *string  `json:"notes"`
	StartTime      *string  `json:"startTime"`
	EndTime        *string  `json:"endTime"`
}

type ListResponse struct {
	Items    []Workout `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

type Handler struct {
	repo           workoutsRepo
	profiles       profileProvider
	metricsManager *metrics.Manager
}

func NewHandler(repo workoutsRepo, profiles profileProvider, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		profiles:       profiles,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.new")
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

	var req CreateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	if req.WorkoutType == "" {
		http.Error(w, "error, workoutType empty", http.StatusBadRequest)
		return
	}
	if req.Duration <= 0 {
		http.Error(w, "error, duration must be positive", http.StatusBadRequest)
		return
	}
	if req.Distance != nil && *req.Distance <= 0 {
		http.Error(w, "error, distance must be positive", http.StatusBadRequest)
		return
	}
	startTime, err := analytics.ParseTimestamp(req.StartTime)
	if err != nil {
		http.Error(w, "error, invalid startTime", http.StatusBadRequest)
		return
	}
	endTime, err := analytics.ParseTimestamp(req.EndTime)
	if err != nil {
		http.Error(w, "error, invalid endTime", http.StatusBadRequest)
		return
	}

	// estimate the energy expenditure from the MET table when the
	// client did not provide it
	caloriesBurned := req.CaloriesBurned
	if caloriesBurned == nil || *caloriesBurned == 0 {
		weightKG := analytics.DefaultWeightKG
		profile, err := handler.profiles.GetProfile(ctx, userID)
		if err != nil {
			log.Errorf("failed to get profile for user %d: %s", userID, err)
		} else if profile.Weight != nil && *profile.Weight > 0 {
			weightKG = *profile.Weight
		}
		estimated := analytics.EstimateCalories(req.WorkoutType, float64(req.Duration/60), weightKG)
		caloriesBurned = &estimated
	}

	now := time.Now().UTC()
	addedWorkout, err := handler.repo.Add(ctx, Workout{
		UserID:         userID,
		WorkoutType:    req.WorkoutType,
		Duration:       req.Duration,
		Distance:       req.Distance,
		CaloriesBurned: caloriesBurned,
		Intensity:      req.Intensity,
		Notes:          req.Notes,
		StartTime:      startTime,
		EndTime:        endTime,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		log.Errorf("failed to add new workout for user %d: %s", userID, err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterWorkouts.Inc()

	addedWorkoutJson, err := json.Marshal(addedWorkout)
	if err != nil {
		log.Errorf("failed to marshal new workout: %s", err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	log.Debugf("new workout added: %d", addedWorkout.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedWorkoutJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
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

	workout, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("failed to marshal workout: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
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

	listedWorkouts, total, err := handler.repo.List(ctx, ListParams{
		WorkoutParams: WorkoutParams{
			UserID:      userID,
			WorkoutType: workoutTypeFilter(r),
			From:        from,
			To:          to,
		},
		Page: page,
		Size: size,
	})
	if err != nil {
		log.Errorf("list workouts error: %s", err)
		http.Error(w, "failed to get workouts", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Items:    listedWorkouts,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		log.Errorf("marshal workouts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.stats")
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
	windowWorkouts, err := handler.repo.ListAll(ctx, WorkoutParams{
		UserID:      userID,
		WorkoutType: workoutTypeFilter(r),
		From:        &from,
		To:          &to,
	})
	if err != nil {
		log.Errorf("failed to get workouts for stats: %s", err)
		http.Error(w, "failed to get workout stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(CalculateStats(windowWorkouts))
	if err != nil {
		log.Errorf("failed to marshal workout stats: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statsJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.update")
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

	var req UpdateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update workout, unmarshal json params: %s", err)
		http.Error(w, "update workout failed", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if req.WorkoutType != nil {
		if *req.WorkoutType == "" {
			http.Error(w, "error, workoutType empty", http.StatusBadRequest)
			return
		}
		workout.WorkoutType = *req.WorkoutType
	}
	if req.Duration != nil {
		if *req.Duration <= 0 {
			http.Error(w, "error, duration must be positive", http.StatusBadRequest)
			return
		}
		workout.Duration = *req.Duration
	}
	if req.Distance != nil {
		if *req.Distance <= 0 {
			http.Error(w, "error, distance must be positive", http.StatusBadRequest)
			return
		}
		workout.Distance = req.Distance
	}
	if req.CaloriesBurned != nil {
		if *req.CaloriesBurned < 0 {
			http.Error(w, "error, caloriesBurned must not be negative", http.StatusBadRequest)
			return
		}
		workout.CaloriesBurned = req.CaloriesBurned
	}
	if req.Intensity != nil {
		workout.Intensity = *req.Intensity
	}
	if req.Notes != nil {
		workout.Notes = *req.Notes
	}
	if req.StartTime != nil {
		startTime, err := analytics.ParseTimestamp(*req.StartTime)
		if err != nil {
			http.Error(w, "error, invalid startTime", http.StatusBadRequest)
			return
		}
		workout.StartTime = startTime
	}
	if req.EndTime != nil {
		endTime, err := analytics.ParseTimestamp(*req.EndTime)
		if err != nil {
			http.Error(w, "error, invalid endTime", http.StatusBadRequest)
			return
		}
		workout.EndTime = endTime
	}
	workout.UpdatedAt = time.Now().UTC()

	if err := handler.repo.Update(ctx, workout); err != nil {
		log.Errorf("failed to update workout %d: %s", id, err)
		http.Error(w, "error, failed to update workout", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("failed to marshal workout: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
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
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete workout %d: %s", id, err)
		http.Error(w, "workout not deleted", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func workoutTypeFilter(r *http.Request) *string {
	if workoutType := r.URL.Query().Get("workout_type"); workoutType != "" {
		return &workoutType
	}
	return nil
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
