// Package session resolves who the client is acting as: an authenticated
// user holding a bearer token, or the device's guest identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"scheduler-client/internal/kvstore"
)

type Session struct {
	Token     string
	UserID    string
	GuestID   string
	ExpiresAt *time.Time
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Load reads the stored token and guest identity. A guest identity is minted
// and persisted on first use.
func Load(ctx context.Context, store kvstore.Store) (Session, error) {
	guestID, err := store.Get(ctx, kvstore.KeyGuestSessionID)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && guestID == "") {
		guestID = "guest-" + uuid.NewString()
		if err := store.Set(ctx, kvstore.KeyGuestSessionID, guestID); err != nil {
			return Session{}, fmt.Errorf("failed to persist guest id: %w", err)
		}
	} else if err != nil {
		return Session{}, fmt.Errorf("failed to read guest id: %w", err)
	}

	sess := Session{GuestID: guestID}

	token, err := store.Get(ctx, kvstore.KeyAccessToken)
	if errors.Is(err, kvstore.ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read access token: %w", err)
	}

	sess.Token = token
	sess.UserID, sess.ExpiresAt = decodeClaims(token)
	return sess, nil
}

func SaveToken(ctx context.Context, store kvstore.Store, token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	return store.Set(ctx, kvstore.KeyAccessToken, token)
}

func ClearToken(ctx context.Context, store kvstore.Store) error {
	return store.Remove(ctx, kvstore.KeyAccessToken)
}

// decodeClaims reads user id and expiry without verifying the signature; the
// backend is the one that verifies. Opaque tokens yield empty values.
func decodeClaims(token string) (string, *time.Time) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", nil
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}

	var expiresAt *time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		expiresAt = &t
	}

	return userID, expiresAt
}
