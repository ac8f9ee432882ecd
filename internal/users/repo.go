package users

import (
	"context"
	"errors"
	"time"

	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrUserNotFound = errors.New("user not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO users
				(username, email, password_hash, height_cm, weight_kg, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		user.Username, user.Email, user.PasswordHash,
		user.Profile.Height, user.Profile.Weight, user.CreatedAt,
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

	span.SetAttributes(attribute.Int("user.id", id))

	user.ID = id
	return &user, nil
}

func (r *Repo) GetByID(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByID")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, username, email, password_hash, height_cm, weight_kg, created_at
			FROM users WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	users, err := r.rows2users(rows)
	if err != nil {
		return nil, err
	}

	if len(users) != 1 {
		return nil, ErrUserNotFound
	}

	return &users[0], nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByEmail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, username, email, password_hash, height_cm, weight_kg, created_at
			FROM users WHERE email = $1;`,
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	users, err := r.rows2users(rows)
	if err != nil {
		return nil, err
	}

	if len(users) != 1 {
		return nil, ErrUserNotFound
	}

	return &users[0], nil
}

func (r *Repo) UpdateProfile(ctx context.Context, userID int, profile Profile) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE users SET height_cm = $1, weight_kg = $2 WHERE id = $3;`,
		profile.Height, profile.Weight, userID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repo) rows2users(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var id int
		var username string
		var email string
		var passwordHash string
		var heightCM *float64
		var weightKG *float64
		var createdAt time.Time
		if err := rows.Scan(&id, &username, &email, &passwordHash, &heightCM, &weightKG, &createdAt); err != nil {
			return nil, err
		}

		users = append(users, User{
			ID:           id,
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			Profile: Profile{
				Height: heightCM,
				Weight: weightKG,
			},
			CreatedAt: createdAt,
		})
	}

	if users == nil {
		users = make([]User, 0)
	}

	return users, nil
}
