package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord is the persisted user row including credential material.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a persisted refresh session. RefreshTokenHash stores the sha256
// of the opaque token; the plaintext never touches the database.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	UserAgent        string
	IP               string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// Store abstracts user and session persistence for the auth service.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id string) (UserRecord, error)
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSessionByToken(ctx context.Context, tokenHash string) (Session, error)
	RotateSessionToken(ctx context.Context, sessionID, tokenHash string, expiresAt time.Time) error
	DeleteSessionByToken(ctx context.Context, tokenHash string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id::text, email, password_hash, COALESCE(first_name, ''), COALESCE(last_name, ''), is_active, created_at, updated_at`

func (r *Repository) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (UserRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING `+userColumns,
		email, passwordHash, firstName, lastName)
	return scanUser(row)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (UserRecord, error) {
	var uid pgtype.UUID
	if err := uid.Scan(id); err != nil {
		return UserRecord{}, pgx.ErrNoRows
	}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
	return scanUser(row)
}

func (r *Repository) CreateSession(ctx context.Context, session Session) (Session, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING id::text, created_at`,
		session.UserID, session.RefreshTokenHash, session.UserAgent, session.IP, session.ExpiresAt)
	if err := row.Scan(&session.ID, &session.CreatedAt); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (r *Repository) GetSessionByToken(ctx context.Context, tokenHash string) (Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, refresh_token, COALESCE(user_agent, ''), COALESCE(ip, ''), expires_at, created_at
		FROM sessions WHERE refresh_token = $1`, tokenHash)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *Repository) RotateSessionToken(ctx context.Context, sessionID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`,
		sessionID, tokenHash, expiresAt)
	return err
}

func (r *Repository) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, tokenHash)
	return err
}

func (r *Repository) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// DeleteExpiredSessions removes sessions whose expiry has passed and returns
// the number of rows deleted. Used by the maintenance worker.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return UserRecord{}, err
	}
	return u, nil
}
