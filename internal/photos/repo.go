package photos

import (
	"context"
	"errors"

	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrPhotoNotFound = errors.New("progress photo not found")

type PhotoParams struct {
	UserID    int
	PhotoType *string
}

type ListParams struct {
	PhotoParams
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

func (r *Repo) Add(ctx context.Context, photo ProgressPhoto) (_ *ProgressPhoto, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.photos.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO progress_photo
				(user_id, file_name, original_file_name, media_type, file_size, mime_type,
				blob_url, thumbnail_url, photo_type, notes, recorded_at, uploaded_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id;`,
		photo.UserID, photo.FileName, photo.OriginalFileName, photo.MediaType,
		photo.FileSize, photo.MimeType, photo.BlobURL, photo.ThumbnailURL,
		photo.PhotoType, photo.Notes, photo.RecordedAt, photo.UploadedAt, photo.UpdatedAt,
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

	span.SetAttributes(attribute.Int("photo.id", id))

	photo.ID = id
	return &photo, nil
}

func (r *Repo) Get(ctx context.Context, id, userID int) (_ *ProgressPhoto, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.photos.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, file_name, original_file_name, media_type, file_size, mime_type,
				blob_url, thumbnail_url, photo_type, notes, recorded_at, uploaded_at, updated_at
			FROM progress_photo
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

	listedPhotos, err := r.rows2photos(rows)
	if err != nil {
		return nil, err
	}

	if len(listedPhotos) != 1 {
		return nil, ErrPhotoNotFound
	}

	return &listedPhotos[0], nil
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []ProgressPhoto, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.photos.list")
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

	total, err = r.Count(ctx, params.PhotoParams)
	if err != nil {
		return nil, -1, err
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, file_name, original_file_name, media_type, file_size, mime_type,
				blob_url, thumbnail_url, photo_type, notes, recorded_at, uploaded_at, updated_at
			FROM progress_photo
			WHERE user_id = $1
			AND ($2::text IS NULL OR photo_type = $2)
			ORDER BY recorded_at DESC
			LIMIT $3
			OFFSET $4;`,
		params.UserID, params.PhotoType,
		params.Size, (params.Page-1)*params.Size,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	listedPhotos, err := r.rows2photos(rows)
	if err != nil {
		return nil, -1, err
	}
	return listedPhotos, total, nil
}

func (r *Repo) Count(ctx context.Context, params PhotoParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.photos.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM progress_photo
			WHERE user_id = $1
			AND ($2::text IS NULL OR photo_type = $2);`,
		params.UserID, params.PhotoType,
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

	return -1, errors.New("unexpected error, failed to get progress photos count")
}

func (r *Repo) Update(ctx context.Context, photo *ProgressPhoto) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.photos.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", photo.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE progress_photo
			SET photo_type = $1, notes = $2, recorded_at = $3, updated_at = $4
			WHERE id = $5 AND user_id = $6;`,
		photo.PhotoType, photo.Notes, photo.RecordedAt, photo.UpdatedAt,
		photo.ID, photo.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id, userID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.photos.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM progress_photo WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}

	return nil
}

func (r *Repo) rows2photos(rows pgx.Rows) ([]ProgressPhoto, error) {
	listedPhotos := make([]ProgressPhoto, 0)
	for rows.Next() {
		var photo ProgressPhoto
		var notes *string
		if err := rows.Scan(
			&photo.ID, &photo.UserID, &photo.FileName, &photo.OriginalFileName,
			&photo.MediaType, &photo.FileSize, &photo.MimeType,
			&photo.BlobURL, &photo.ThumbnailURL, &photo.PhotoType, &notes,
			&photo.RecordedAt, &photo.UploadedAt, &photo.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if notes != nil {
			photo.Notes = *notes
		}
		listedPhotos = append(listedPhotos, photo)
	}
	return listedPhotos, nil
}
