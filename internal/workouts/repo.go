package workouts

import (
	"context"
	"errors"
	"time"

	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

type WorkoutParams struct {
	UserID      int
	WorkoutType *string
	From        *time.Time
	To          *time.Time
}

type ListParams struct {
	WorkoutParams
	Page int
	Size int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO workout
				(user_id, workout_type, duration, distance, calories_burned, intensity, notes, start_time, end_time, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id;`,
		workout.UserID, workout.WorkoutType, workout.Duration, workout.Distance,
		workout.CaloriesBurned, workout.Intensity, workout.Notes,
		workout.StartTime, workout.EndTime, workout.CreatedAt, workout.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workout.id", id))

	workout.ID = id
	return &workout, nil
}

func (r *Repo) Get(ctx context.Context, id, userID int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, workout_type, duration, distance, calories_burned, intensity, notes, start_time, end_time, created_at, updated_at
			FROM workout
			WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	listedWorkouts, err := r.rows2workouts(rows)
	if err != nil {
		return nil, err
	}

	if len(listedWorkouts) != 1 {
		return nil, ErrWorkoutNotFound
	}

	return &listedWorkouts[0], nil
}

// ListAll returns all workouts of a user matching the optional type and
// date filters, newest first. Used by the stats endpoints with a
// bounded window.
func (r *Repo) ListAll(ctx context.Context, params WorkoutParams) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, workout_type, duration, distance, calories_burned, intensity, notes, start_time, end_time, created_at, updated_at
			FROM workout
			WHERE user_id = $1
			AND ($2::text IS NULL OR workout_type = $2)
			AND ($3::timestamptz IS NULL OR start_time >= $3)
			AND ($4::timestamptz IS NULL OR start_time <= $4)
			ORDER BY start_time DESC
			LIMIT 1000;`,
		params.UserID, params.WorkoutType, params.From, params.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2workouts(rows)
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []Workout, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	total, err = r.Count(ctx, params.WorkoutParams)
	if err != nil {
		return nil, -1, err
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, workout_type, duration, distance, calories_burned, intensity, notes, start_time, end_time, created_at, updated_at
			FROM workout
			WHERE user_id = $1
			AND ($2::text IS NULL OR workout_type = $2)
			AND ($3::timestamptz IS NULL OR start_time >= $3)
			AND ($4::timestamptz IS NULL OR start_time <= $4)
			ORDER BY start_time DESC
			LIMIT $5
			OFFSET $6;`,
		params.UserID, params.WorkoutType, params.From, params.To,
		params.Size, (params.Page-1)*params.Size,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	listedWorkouts, err := r.rows2workouts(rows)
	if err != nil {
		return nil, -1, err
	}
	return listedWorkouts, total, nil
}

func (r *Repo) Count(ctx context.Context, params WorkoutParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM workout
			WHERE user_id = $1
			AND ($2::text IS NULL OR workout_type = $2)
			AND ($3::timestamptz IS NULL OR start_time >= $3)
			AND ($4::timestamptz IS NULL OR start_time <= $4);`,
		params.UserID, params.WorkoutType, params.From, params.To,
	)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get workouts count")
}

func (r *Repo) Update(ctx context.Context, workout *Workout) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", workout.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout
			SET workout_type = $1, duration = $2, distance = $3, calories_burned = $4,
				intensity = $5, notes = $6, start_time = $7, end_time = $8, updated_at = $9
			WHERE id = $10 AND user_id = $11;`,
		workout.WorkoutType, workout.Duration, workout.Distance, workout.CaloriesBurned,
		workout.Intensity, workout.Notes, workout.StartTime, workout.EndTime, workout.UpdatedAt,
		workout.ID, workout.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id, userID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func (r *Repo) rows2workouts(rows pgx.Rows) ([]Workout, error) {
	listedWorkouts := make([]Workout, 0)
	for rows.Next() {
		var workout Workout
		var intensity, notes *string
		if err := rows.Scan(
			&workout.ID, &workout.UserID, &workout.WorkoutType, &workout.Duration,
			&workout.Distance, &workout.CaloriesBurned, &intensity, &notes,
			&workout.StartTime, &workout.EndTime, &workout.CreatedAt, &workout.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if intensity != nil {
			workout.Intensity = *intensity
		}
		if notes != nil {
			workout.Notes = *notes
		}
		listedWorkouts = append(listedWorkouts, workout)
	}
	return listedWorkouts, nil
}
