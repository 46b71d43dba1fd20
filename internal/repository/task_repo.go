package repository

import (
	"context"
	"errors"
	"log/slog"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
	"scheduler-client/internal/session"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepo is the single task capability the rest of the client sees.
type TaskRepo interface {
	FetchAll(ctx context.Context) ([]models.Task, error)
	Add(ctx context.Context, in models.NewTask) (*models.Task, error)
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

// NewTaskRepo picks the backend for the session: the remote API when a token
// is present, the device store otherwise.
func NewTaskRepo(sess session.Session, api *apiclient.Client, store kvstore.Store, log *slog.Logger) TaskRepo {
	if sess.Authenticated() {
		return NewRemoteTaskRepo(api.WithToken(sess.Token))
	}
	return NewGuestTaskRepo(store, sess.GuestID, log)
}
