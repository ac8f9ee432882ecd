package nutrition

import (
	"context"
	"errors"
	"time"

	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrEntryNotFound = errors.New("nutrition entry not found")

type EntryParams struct {
	UserID int
	From   *time.Time
	To     *time.Time
}

type ListParams struct {
	EntryParams
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

func (r *Repo) Add(ctx context.Context, entry Entry) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO nutrition_entry
				(user_id, meal_type, food_name, calories, protein, carbohydrates, fat, portion, notes, recorded_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id;`,
		entry.UserID, entry.MealType, entry.FoodName, entry.Calories,
		entry.Protein, entry.Carbohydrates, entry.Fat, entry.Portion, entry.Notes,
		entry.RecordedAt, entry.CreatedAt, entry.UpdatedAt,
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

	span.SetAttributes(attribute.Int("entry.id", id))

	entry.ID = id
	return &entry, nil
}

func (r *Repo) Get(ctx context.Context, id, userID int) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, meal_type, food_name, calories, protein, carbohydrates, fat, portion, notes, recorded_at, created_at, updated_at
			FROM nutrition_entry
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

	entries, err := r.rows2entries(rows)
	if err != nil {
		return nil, err
	}

	if len(entries) != 1 {
		return nil, ErrEntryNotFound
	}

	return &entries[0], nil
}

// ListAll returns all nutrition entries of a user within the optional
// date window, newest first. Used by the stats endpoints with a bounded
// window.
func (r *Repo) ListAll(ctx context.Context, params EntryParams) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, meal_type, food_name, calories, protein, carbohydrates, fat, portion, notes, recorded_at, created_at, updated_at
			FROM nutrition_entry
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

	return r.rows2entries(rows)
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []Entry, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.list")
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

	total, err = r.Count(ctx, params.EntryParams)
	if err != nil {
		return nil, -1, err
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, meal_type, food_name, calories, protein, carbohydrates, fat, portion, notes, recorded_at, created_at, updated_at
			FROM nutrition_entry
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

	entries, err := r.rows2entries(rows)
	if err != nil {
		return nil, -1, err
	}
	return entries, total, nil
}

func (r *Repo) Count(ctx context.Context, params EntryParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM nutrition_entry
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

	return -1, errors.New("unexpected error, failed to get nutrition entries count")
}

func (r *Repo) Update(ctx context.Context, entry *Entry) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", entry.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE nutrition_entry
			SET meal_type = $1, food_name = $2, calories = $3, protein = $4,
				carbohydrates = $5, fat = $6, portion = $7, notes = $8,
				recorded_at = $9, updated_at = $10
			WHERE id = $11 AND user_id = $12;`,
		entry.MealType, entry.FoodName, entry.Calories, entry.Protein,
		entry.Carbohydrates, entry.Fat, entry.Portion, entry.Notes,
		entry.RecordedAt, entry.UpdatedAt,
		entry.ID, entry.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id, userID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM nutrition_entry WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}

	return nil
}

func (r *Repo) rows2entries(rows pgx.Rows) ([]Entry, error) {
	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var portion, notes *string
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.MealType, &entry.FoodName, &entry.Calories,
			&entry.Protein, &entry.Carbohydrates, &entry.Fat, &portion, &notes,
			&entry.RecordedAt, &entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if portion != nil {
			entry.Portion = *portion
		}
		if notes != nil {
			entry.Notes = *notes
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
