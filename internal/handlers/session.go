package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/services"
	"scheduler-client/internal/session"
)

type planPuller interface {
	Pull(ctx context.Context) (services.PullResult, error)
}

type SessionHandler struct {
	store  kvstore.Store
	puller planPuller
	log    *slog.Logger
}

func NewSessionHandler(store kvstore.Store, puller planPuller, log *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, puller: puller, log: log}
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"user_id,omitempty"`
	GuestID       string     `json:"guest_id"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) (sessionResponse, bool) {
	sess, err := session.Load(r.Context(), h.store)
	if err != nil {
		handleServiceError(w, r, err)
		return sessionResponse{}, false
	}
	return sessionResponse{
		Authenticated: sess.Authenticated(),
		UserID:        sess.UserID,
		GuestID:       sess.GuestID,
		ExpiresAt:     sess.ExpiresAt,
	}, true
}

// GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/session/token
// Storing a token switches tasks to the remote backend and pulls the cloud
// plan. A failed pull is reported but keeps the token.
func (h *SessionHandler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.Token), "Bearer "))
	if token == "" {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"token": "Token is required"}})
		return
	}

	if err := session.SaveToken(r.Context(), h.store, token); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.puller.Pull(r.Context())
	if err != nil {
		h.log.Warn("pull after sign-in failed", slog.Any("error", err))
	}

	resp, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": resp,
		"pull":    result,
	})
}

// DELETE /api/v1/session/token
func (h *SessionHandler) ClearToken(w http.ResponseWriter, r *http.Request) {
	if err := session.ClearToken(r.Context(), h.store); err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
