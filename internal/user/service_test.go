package user

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
	profile      Profile
	passwordHash string
	takenEmails  map[string]bool
	sessionsGone bool
	missing      bool
}

func (f *fakeStore) GetByID(_ context.Context, id string) (Profile, string, error) {
	if f.missing || id != f.profile.ID {
		return Profile{}, "", pgx.ErrNoRows
	}
	return f.profile, f.passwordHash, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (Profile, error) {
	if f.missing || id != f.profile.ID {
		return Profile{}, pgx.ErrNoRows
	}
	if update.Email != nil {
		if f.takenEmails[*update.Email] {
			return Profile{}, &pgconn.PgError{Code: "23505"}
		}
		f.profile.Email = *update.Email
	}
	if update.FirstName != nil {
		f.profile.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		f.profile.LastName = *update.LastName
	}
	f.profile.UpdatedAt = time.Now()
	return f.profile, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.passwordHash = passwordHash
	return nil
}

func (f *fakeStore) DeleteSessionsByUser(_ context.Context, _ string) error {
	f.sessionsGone = true
	return nil
}

func newStoreWithUser(t *testing.T) *fakeStore {
	t.Helper()
	hash, err := argon2id.CreateHash("old-password-1", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &fakeStore{
		profile: Profile{
			ID:        "77777777-7777-7777-7777-777777777777",
			Email:     "boris@example.com",
			FirstName: "Борис",
		},
		passwordHash: hash,
		takenEmails:  map[string]bool{"taken@example.com": true},
	}
}

func TestUpdateProfile(t *testing.T) {
	store := newStoreWithUser(t)
	svc := NewService(store)

	newLast := "Джонсонюк"
	profile, err := svc.Update(context.Background(), store.profile.ID, ProfileUpdate{LastName: &newLast})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if profile.LastName != newLast {
		t.Fatalf("last name = %q, want %q", profile.LastName, newLast)
	}
	if profile.Email != "boris@example.com" {
		t.Fatalf("email changed unexpectedly: %q", profile.Email)
	}
}

func TestUpdateProfileNormalizesEmail(t *testing.T) {
	store := newStoreWithUser(t)
	svc := NewService(store)

	email := "  New@Example.COM "
	profile, err := svc.Update(context.Background(), store.profile.ID, ProfileUpdate{Email: &email})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if profile.Email != "new@example.com" {
		t.Fatalf("email = %q, want normalized", profile.Email)
	}
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	store := newStoreWithUser(t)
	svc := NewService(store)

	email := "taken@example.com"
	_, err := svc.Update(context.Background(), store.profile.ID, ProfileUpdate{Email: &email})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "EMAIL_ALREADY_USED" || appErr.HTTPStatus != 409 {
		t.Fatalf("expected EMAIL_ALREADY_USED 409, got %v", err)
	}
}

func TestUpdateProfileEmptyPayload(t *testing.T) {
	svc := NewService(newStoreWithUser(t))
	if _, err := svc.Update(context.Background(), "any", ProfileUpdate{}); !common.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := newStoreWithUser(t)
	svc := NewService(store)

	err := svc.ChangePassword(context.Background(), store.profile.ID, "old-password-1", "new-password-1")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if ok, _ := argon2id.ComparePasswordAndHash("new-password-1", store.passwordHash); !ok {
		t.Fatalf("new password not persisted")
	}
	if !store.sessionsGone {
		t.Fatalf("sessions should be revoked after password change")
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	store := newStoreWithUser(t)
	svc := NewService(store)

	err := svc.ChangePassword(context.Background(), store.profile.ID, "not-the-password", "new-password-1")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if store.sessionsGone {
		t.Fatalf("sessions must survive a failed change")
	}
}

func TestChangePasswordTooShort(t *testing.T) {
	svc := NewService(newStoreWithUser(t))
	if err := svc.ChangePassword(context.Background(), "any", "old", "short"); !common.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
