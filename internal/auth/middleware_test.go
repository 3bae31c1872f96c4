package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

func TestRequireAuth(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	user := registerTestUser(t, svc)
	token, _, err := svc.signAccessToken(user.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	mw := Middleware{Service: svc}
	var seenUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if seenUserID != user.ID {
		t.Fatalf("context user = %q, want %q", seenUserID, user.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	rr = httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rr.Code)
	}
}

func TestAuthenticatePassesThroughWithoutToken(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	mw := Middleware{Service: svc}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := common.UserID(r.Context()); ok {
			t.Fatalf("unexpected user in context")
		}
	})
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	mw.Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatalf("next handler not invoked")
	}
}

func TestMeUnknownUser(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	if _, err := svc.Me(context.Background(), "66666666-6666-6666-6666-666666666666"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}
