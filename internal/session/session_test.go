package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scheduler-client/internal/kvstore"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestLoad_GuestWithoutToken(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	sess, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sess.Authenticated() {
		t.Fatalf("expected guest session")
	}
	if !strings.HasPrefix(sess.GuestID, "guest-") {
		t.Fatalf("expected minted guest id, got %q", sess.GuestID)
	}

	again, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.GuestID != sess.GuestID {
		t.Fatalf("expected guest id to be stable, got %q then %q", sess.GuestID, again.GuestID)
	}
}

func TestLoad_AuthenticatedDecodesClaims(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	token := signedToken(t, jwt.MapClaims{"sub": "user-42", "exp": exp.Unix()})
	if err := SaveToken(ctx, store, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sess.Authenticated() {
		t.Fatalf("expected authenticated session")
	}
	if sess.UserID != "user-42" {
		t.Fatalf("expected user id from sub claim, got %q", sess.UserID)
	}
	if sess.ExpiresAt == nil || !sess.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, sess.ExpiresAt)
	}
}

func TestLoad_OpaqueTokenStillAuthenticates(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Set(ctx, kvstore.KeyAccessToken, "opaque-token")

	sess, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sess.Authenticated() || sess.UserID != "" {
		t.Fatalf("expected authenticated session without user id, got %+v", sess)
	}
}

func TestClearToken(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	SaveToken(ctx, store, "abc")

	if err := ClearToken(ctx, store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := Load(ctx, store)
	if sess.Authenticated() {
		t.Fatalf("expected guest session after logout")
	}
}

func TestSaveToken_RejectsEmpty(t *testing.T) {
	if err := SaveToken(context.Background(), kvstore.NewMemoryStore(), ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
