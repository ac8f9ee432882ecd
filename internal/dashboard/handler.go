package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fitlytics/fitlytics/internal/analytics"
	"github.com/fitlytics/fitlytics/internal/bodymetrics"
	"github.com/fitlytics/fitlytics/internal/middleware"
	"github.com/fitlytics/fitlytics/internal/nutrition"
	"github.com/fitlytics/fitlytics/internal/photos"
	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"
	"github.com/fitlytics/fitlytics/internal/workouts"
	"github.com/fitlytics/fitlytics/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate go run go.uber.org/mock/mockgen -source=handler.go -destination=handler_mocks_test.go -package=dashboard_test

type bodyMetricsRepo interface {
	ListAll(ctx context.Context, params bodymetrics.MetricParams) ([]bodymetrics.Metric, error)
}

type workoutsRepo interface {
	ListAll(ctx context.Context, params workouts.WorkoutParams) ([]workouts.Workout, error)
}

type nutritionRepo interface {
	ListAll(ctx context.Context, params nutrition.EntryParams) ([]nutrition.Entry, error)
}

type photosRepo interface {
	Count(ctx context.Context, params photos.PhotoParams) (int, error)
}

// Overview combines the per-module stats over the same lookback window.
// The photo count is the all-time total, not windowed.
type Overview struct {
	BodyMetrics         bodymetrics.Stats `json:"bodyMetrics"`
	WorkoutStats        workouts.Stats    `json:"workoutStats"`
	NutritionStats      nutrition.Stats   `json:"nutritionStats"`
	TotalProgressPhotos int               `json:"totalProgressPhotos"`
}

// Trends are the period-bucketed series the dashboard charts plot.
type Trends struct {
	Period            string                   `json:"period"`
	Weight            []analytics.PeriodBucket `json:"weight"`
	WorkoutCalories   []analytics.PeriodBucket `json:"workoutCalories"`
	NutritionCalories []analytics.PeriodBucket `json:"nutritionCalories"`
}

type Handler struct {
	bodyMetrics bodyMetricsRepo
	workouts    workoutsRepo
	nutrition   nutritionRepo
	photos      photosRepo
}

func NewHandler(
	bodyMetrics bodyMetricsRepo,
	workouts workoutsRepo,
	nutrition nutritionRepo,
	photos photosRepo,
) *Handler {
	return &Handler{
		bodyMetrics: bodyMetrics,
		workouts:    workouts,
		nutrition:   nutrition,
		photos:      photos,
	}
}

func (handler *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.overview")
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

	windowMetrics, err := handler.bodyMetrics.ListAll(ctx, bodymetrics.MetricParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("dashboard overview, get body metrics: %s", err)
		http.Error(w, "failed to get dashboard overview", http.StatusInternalServerError)
		return
	}

	windowWorkouts, err := handler.workouts.ListAll(ctx, workouts.WorkoutParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("dashboard overview, get workouts: %s", err)
		http.Error(w, "failed to get dashboard overview", http.StatusInternalServerError)
		return
	}

	windowEntries, err := handler.nutrition.ListAll(ctx, nutrition.EntryParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("dashboard overview, get nutrition entries: %s", err)
		http.Error(w, "failed to get dashboard overview", http.StatusInternalServerError)
		return
	}

	totalPhotos, err := handler.photos.Count(ctx, photos.PhotoParams{UserID: userID})
	if err != nil {
		log.Errorf("dashboard overview, get photos count: %s", err)
		http.Error(w, "failed to get dashboard overview", http.StatusInternalServerError)
		return
	}

	overviewJson, err := json.Marshal(Overview{
		BodyMetrics:         bodymetrics.CalculateStats(windowMetrics),
		WorkoutStats:        workouts.CalculateStats(windowWorkouts),
		NutritionStats:      nutrition.CalculateStats(windowEntries),
		TotalProgressPhotos: totalPhotos,
	})
	if err != nil {
		log.Errorf("failed to marshal dashboard overview: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, overviewJson, http.StatusOK)
}

func (handler *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.trends")
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

	// unknown period values fall back to day buckets downstream
	period := analytics.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = analytics.PeriodDay
	}

	from, to := analytics.LastNDays(days)

	windowMetrics, err := handler.bodyMetrics.ListAll(ctx, bodymetrics.MetricParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("dashboard trends, get body metrics: %s", err)
		http.Error(w, "failed to get dashboard trends", http.StatusInternalServerError)
		return
	}

	windowWorkouts, err := handler.workouts.ListAll(ctx, workouts.WorkoutParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("dashboard trends, get workouts: %s", err)
		http.Error(w, "failed to get dashboard trends", http.StatusInternalServerError)
		return
	}

	windowEntries, err := handler.nutrition.ListAll(ctx, nutrition.EntryParams{
		UserID: userID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		log.Errorf("dashboard trends, get nutrition entries: %s", err)
		http.Error(w, "failed to get dashboard trends", http.StatusInternalServerError)
		return
	}

	weightPoints := make([]analytics.DataPoint, 0, len(windowMetrics))
	for _, m := range windowMetrics {
		if m.Weight == nil || *m.Weight == 0 {
			continue
		}
		weightPoints = append(weightPoints, analytics.DataPoint{At: m.RecordedAt, Value: *m.Weight})
	}

	workoutCaloriePoints := make([]analytics.DataPoint, 0, len(windowWorkouts))
	for _, workout := range windowWorkouts {
		if workout.CaloriesBurned == nil {
			continue
		}
		workoutCaloriePoints = append(workoutCaloriePoints, analytics.DataPoint{
			At:    workout.StartTime,
			Value: float64(*workout.CaloriesBurned),
		})
	}

	nutritionCaloriePoints := make([]analytics.DataPoint, 0, len(windowEntries))
	for _, entry := range windowEntries {
		nutritionCaloriePoints = append(nutritionCaloriePoints, analytics.DataPoint{
			At:    entry.RecordedAt,
			Value: float64(entry.Calories),
		})
	}

	trendsJson, err := json.Marshal(Trends{
		Period:            string(period),
		Weight:            analytics.AggregateByPeriod(weightPoints, period),
		WorkoutCalories:   analytics.AggregateByPeriod(workoutCaloriePoints, period),
		NutritionCalories: analytics.AggregateByPeriod(nutritionCaloriePoints, period),
	})
	if err != nil {
		log.Errorf("failed to marshal dashboard trends: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, trendsJson, http.StatusOK)
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
