package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

type fakeStore struct {
	usersByEmail map[string]UserRecord
	usersByID    map[string]UserRecord
	sessions     map[string]Session
	nextUserID   string
	nextSessID   string
	createErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail: map[string]UserRecord{},
		usersByID:    map[string]UserRecord{},
		sessions:     map[string]Session{},
		nextUserID:   "44444444-4444-4444-4444-444444444444",
		nextSessID:   "55555555-5555-5555-5555-555555555555",
	}
}

func (f *fakeStore) CreateUser(_ context.Context, email, passwordHash, firstName, lastName string) (UserRecord, error) {
	if f.createErr != nil {
		return UserRecord{}, f.createErr
	}
	if _, exists := f.usersByEmail[email]; exists {
		return UserRecord{}, &pgconn.PgError{Code: "23505"}
	}
	u := UserRecord{
		ID:           f.nextUserID,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.usersByEmail[email] = u
	f.usersByID[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	u, ok := f.usersByEmail[email]
	if !ok {
		return UserRecord{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return UserRecord{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) CreateSession(_ context.Context, session Session) (Session, error) {
	session.ID = f.nextSessID
	session.CreatedAt = time.Now()
	f.sessions[session.RefreshTokenHash] = session
	return session, nil
}

func (f *fakeStore) GetSessionByToken(_ context.Context, tokenHash string) (Session, error) {
	s, ok := f.sessions[tokenHash]
	if !ok {
		return Session{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) RotateSessionToken(_ context.Context, sessionID, tokenHash string, expiresAt time.Time) error {
	for hash, s := range f.sessions {
		if s.ID == sessionID {
			delete(f.sessions, hash)
			s.RefreshTokenHash = tokenHash
			s.ExpiresAt = expiresAt
			f.sessions[tokenHash] = s
			return nil
		}
	}
	return errors.New("session not found")
}

func (f *fakeStore) DeleteSessionByToken(_ context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeStore) DeleteSessionsByUser(_ context.Context, userID string) error {
	for hash, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(Config{Store: store, Secret: "test-secret-at-least-32-characters"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func registerTestUser(t *testing.T, svc *Service) User {
	t.Helper()
	user, err := svc.Register(context.Background(), "boris@example.com", "sup3r-secret", "Борис", "Джонсонюк")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	user := registerTestUser(t, svc)
	if user.Email != "boris@example.com" || user.ID == "" {
		t.Fatalf("unexpected user: %+v", user)
	}

	stored := store.usersByEmail[user.Email]
	if stored.PasswordHash == "sup3r-secret" {
		t.Fatalf("password stored in plaintext")
	}
	if ok, _ := argon2id.ComparePasswordAndHash("sup3r-secret", stored.PasswordHash); !ok {
		t.Fatalf("stored hash does not verify")
	}

	result, err := svc.Login(context.Background(), "Boris@Example.com", "sup3r-secret", "ua", "127.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("missing tokens: %+v", result)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(store.sessions))
	}
	for hash := range store.sessions {
		if hash == result.RefreshToken {
			t.Fatalf("refresh token stored unhashed")
		}
	}

	subject, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if subject != user.ID {
		t.Fatalf("token subject = %q, want %q", subject, user.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), "boris@example.com", "another-pass", "", "")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "EMAIL_ALREADY_USED" || appErr.HTTPStatus != 409 {
		t.Fatalf("expected EMAIL_ALREADY_USED 409, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	if _, err := svc.Register(context.Background(), "a@b.c", "short", "", ""); !common.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	registerTestUser(t, svc)

	_, err := svc.Login(context.Background(), "boris@example.com", "wrong", "", "")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}

	_, err = svc.Login(context.Background(), "ghost@example.com", "whatever", "", "")
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS for unknown email, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	registerTestUser(t, svc)

	login, err := svc.Login(context.Background(), "boris@example.com", "sup3r-secret", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// the old token must be dead after rotation
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatalf("stale refresh token accepted")
	}
	if _, err := svc.Refresh(context.Background(), refreshed.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestRefreshExpiredSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	registerTestUser(t, svc)

	login, err := svc.Login(context.Background(), "boris@example.com", "sup3r-secret", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.WithNow(func() time.Time { return time.Now().Add(31 * 24 * time.Hour) })
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatalf("expired session accepted")
	}
	if len(store.sessions) != 0 {
		t.Fatalf("expired session not purged")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	registerTestUser(t, svc)

	login, err := svc.Login(context.Background(), "boris@example.com", "sup3r-secret", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatalf("refresh after logout should fail")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	user := registerTestUser(t, svc)

	token, _, err := svc.signAccessToken(user.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	svc.WithNow(func() time.Time { return time.Now().Add(time.Hour) })
	if _, err := svc.ParseAccessToken(token); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	user := registerTestUser(t, svc)

	token, _, err := svc.signAccessToken(user.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other, err := NewService(Config{Store: store, Secret: "a-completely-different-signing-key"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := other.ParseAccessToken(token); err == nil {
		t.Fatalf("token with wrong signature accepted")
	}
}
