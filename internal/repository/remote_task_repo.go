package repository

import (
	"context"
	"errors"
	"net/http"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/models"
)

// TaskAPI is the part of the backend client the remote repo uses.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error)
	CompleteTask(ctx context.Context, id string) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type RemoteTaskRepo struct {
	api TaskAPI
}

func NewRemoteTaskRepo(api TaskAPI) *RemoteTaskRepo {
	return &RemoteTaskRepo{api: api}
}

func (r *RemoteTaskRepo) FetchAll(ctx context.Context) ([]models.Task, error) {
	return r.api.ListTasks(ctx)
}

func (r *RemoteTaskRepo) Add(ctx context.Context, in models.NewTask) (*models.Task, error) {
	return r.api.CreateTask(ctx, in)
}

func (r *RemoteTaskRepo) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	var (
		task *models.Task
		err  error
	)
	if status == models.TaskStatusCompleted {
		task, err = r.api.CompleteTask(ctx, id)
	} else {
		task, err = r.api.UpdateTask(ctx, id, status)
	}
	return task, notFound(err)
}

func (r *RemoteTaskRepo) Delete(ctx context.Context, id string) error {
	return notFound(r.api.DeleteTask(ctx, id))
}

func notFound(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrTaskNotFound
	}
	return err
}
