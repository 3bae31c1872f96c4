package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

const (
	httpStatusBadRequest   = 400
	httpStatusUnauthorized = 401
	httpStatusConflict     = 409

	minPasswordLength = 8
)

// Profile is the account data users may read and edit about themselves.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the fields of a partial profile update. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Store abstracts profile persistence.
type Store interface {
	GetByID(ctx context.Context, id string) (Profile, string, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Profile, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	DeleteSessionsByUser(ctx context.Context, id string) error
}

// Service orchestrates profile operations.
type Service struct {
	store Store
}

// NewService constructs a profile service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the profile of the given user.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	profile, _, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, common.NewNotFound("user not found")
		}
		return Profile{}, err
	}
	return profile, nil
}

// Update applies a partial profile update. A taken email is reported as a
// conflict rather than an internal error.
func (s *Service) Update(ctx context.Context, userID string, update ProfileUpdate) (Profile, error) {
	if update.Email == nil && update.FirstName == nil && update.LastName == nil {
		return Profile{}, common.NewValidationError("nothing to update")
	}
	if update.Email != nil {
		normalized := strings.TrimSpace(strings.ToLower(*update.Email))
		if normalized == "" {
			return Profile{}, common.NewValidationError("email must not be empty")
		}
		update.Email = &normalized
	}

	profile, err := s.store.UpdateProfile(ctx, userID, update)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", httpStatusConflict, err)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, common.NewNotFound("user not found")
		}
		return Profile{}, err
	}
	return profile, nil
}

// ChangePassword verifies the current password and replaces it. All refresh
// sessions of the user are revoked afterwards.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return common.NewAppError("VALIDATION_ERROR", fmt.Sprintf("password must be at least %d characters", minPasswordLength), httpStatusBadRequest, nil)
	}

	_, hash, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return common.NewAppError("UNAUTHORIZED", "unauthorized", httpStatusUnauthorized, err)
	}
	ok, err := argon2id.ComparePasswordAndHash(oldPassword, hash)
	if err != nil || !ok {
		return common.NewAppError("INVALID_CREDENTIALS", "current password is incorrect", httpStatusUnauthorized, err)
	}

	newHash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.store.DeleteSessionsByUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id::text, email, COALESCE(first_name, ''), COALESCE(last_name, ''), created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id string) (Profile, string, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`, password_hash FROM users WHERE id = $1`, id)
	var p Profile
	var hash string
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt, &hash)
	if err != nil {
		return Profile{}, "", err
	}
	return p, hash, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Profile, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE($2, email),
			first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		id, update.Email, update.FirstName, update.LastName)
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	return err
}

func (r *Repository) DeleteSessionsByUser(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, id)
	return err
}
