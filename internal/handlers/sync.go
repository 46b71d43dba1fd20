package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
	"scheduler-client/internal/services"
	"scheduler-client/internal/session"
)

type syncRunner interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) (services.PullResult, error)
	Stats(authenticated bool) models.SyncStats
}

type statusSource interface {
	Current() models.StatusMessage
}

type SyncHandler struct {
	sync   syncRunner
	status statusSource
	store  kvstore.Store
	log    *slog.Logger
}

func NewSyncHandler(sync syncRunner, status statusSource, store kvstore.Store, log *slog.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, status: status, store: store, log: log}
}

func (h *SyncHandler) requireSession(w http.ResponseWriter, r *http.Request) bool {
	sess, err := session.Load(r.Context(), h.store)
	if err != nil {
		handleServiceError(w, r, err)
		return false
	}
	if !sess.Authenticated() {
		handleServiceError(w, r, &services.UnauthorizedError{Message: "Sign in to sync your study plan"})
		return false
	}
	return true
}

// POST /api/v1/sync/push
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	if err := h.sync.Push(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Study plan pushed"})
}

// POST /api/v1/sync/pull
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	result, err := h.sync.Pull(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

// GET /api/v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Load(r.Context(), h.store)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  h.sync.Stats(sess.Authenticated()),
		"status": h.status.Current(),
	})
}
