package bodymetrics

import (
	"context"
	"errors"
	"time"

	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrMetricNotFound = errors.New("body metric not found")

type MetricParams struct {
	UserID int
	From   *time.Time
	To     *time.Time
}

type ListParams struct {
	MetricParams
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

func (r *Repo) Add(ctx context.Context, metric Metric) (_ *Metric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO body_metric
				(user_id, weight, body_fat_percentage, muscle_mass, bmi, notes, recorded_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id;`,
		metric.UserID, metric.Weight, metric.BodyFatPercentage, metric.MuscleMass,
		metric.BMI, metric.Notes, metric.RecordedAt, metric.CreatedAt, metric.UpdatedAt,
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

	span.SetAttributes(attribute.Int("metric.id", id))

	metric.ID = id
	return &metric, nil
}

func (r *Repo) Get(ctx context.Context, id, userID int) (_ *Metric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, weight, body_fat_percentage, muscle_mass, bmi, notes, recorded_at, created_at, updated_at
			FROM body_metric
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

	metrics, err := r.rows2metrics(rows)
	if err != nil {
		return nil, err
	}

	if len(metrics) != 1 {
		return nil, ErrMetricNotFound
	}

	return &metrics[0], nil
}

// ListAll returns all metrics of a user within the optional date window,
// newest first. Used by the stats endpoints with a bounded window.
func (r *Repo) ListAll(ctx context.Context, params MetricParams) (_ []Metric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, weight, body_fat_percentage, muscle_mass, bmi, notes, recorded_at, created_at, updated_at
			FROM body_metric
			WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR recorded_at >= $2)
			AND ($3::timestamptz IS NULL OR recorded_at <= $3)
			ORDER BY recorded_at DESC
			LIMIT 1000;`,
		params.UserID, params.From, params.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2metrics(rows)
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []Metric, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.list")
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

	total, err = r.Count(ctx, params.MetricParams)
	if err != nil {
		return nil, -1, err
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, weight, body_fat_percentage, muscle_mass, bmi, notes, recorded_at, created_at, updated_at
			FROM body_metric
			WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR recorded_at >= $2)
			AND ($3::timestamptz IS NULL OR recorded_at <= $3)
			ORDER BY recorded_at DESC
			LIMIT $4
			OFFSET $5;`,
		params.UserID, params.From, params.To,
		params.Size, (params.Page-1)*params.Size,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	metrics, err := r.rows2metrics(rows)
	if err != nil {
		return nil, -1, err
	}
	return metrics, total, nil
}

func (r *Repo) Count(ctx context.Context, params MetricParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM body_metric
			WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR recorded_at >= $2)
			AND ($3::timestamptz IS NULL OR recorded_at <= $3);`,
		params.UserID, params.From, params.To,
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

	return -1, errors.New("unexpected error, failed to get body metrics count")
}

func (r *Repo) Update(ctx context.Context, metric *Metric) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", metric.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE body_metric
			SET weight = $1, body_fat_percentage = $2, muscle_mass = $3, bmi = $4,
				notes = $5, recorded_at = $6, updated_at = $7
			WHERE id = $8 AND user_id = $9;`,
		metric.Weight, metric.BodyFatPercentage, metric.MuscleMass, metric.BMI,
		metric.Notes, metric.RecordedAt, metric.UpdatedAt,
		metric.ID, metric.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrMetricNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id, userID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodymetrics.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM body_metric WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMetricNotFound
	}
	return nil
}

func (r *Repo) rows2metrics(rows pgx.Rows) ([]Metric, error) {
	var metrics []Metric
	for rows.Next() {
		var m Metric
		var notes *string
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Weight, &m.BodyFatPercentage, &m.MuscleMass,
			&m.BMI, &notes, &m.RecordedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if notes != nil {
			m.Notes = *notes
		}
		metrics = append(metrics, m)
	}

	if metrics == nil {
		metrics = make([]Metric, 0)
	}

	return metrics, nil
}
