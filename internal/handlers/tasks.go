package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scheduler-client/internal/models"
)

type taskService interface {
	FetchAll(ctx context.Context) ([]models.Task, error)
	Add(ctx context.Context, in models.NewTask) (*models.Task, error)
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error)
	Delete(ctx context.Context, id string) error
	Prioritize(ctx context.Context) (*models.PrioritizeResult, error)
	ImportDocument(ctx context.Context, filename string, data []byte, courseID string) ([]models.Task, error)
}

type TaskHandler struct {
	tasks       taskService
	uploadLimit int64
	log         *slog.Logger
}

func NewTaskHandler(tasks taskService, uploadMaxMB int64, log *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:       tasks,
		uploadLimit: uploadMaxMB << 20,
		log:         log,
	}
}

// GET /api/v1/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.FetchAll(r.Context())
	if err != nil {
		h.log.Error("failed to fetch tasks", slog.Any("error", err))
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TaskList{Tasks: tasks, Total: len(tasks)})
}

// POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.NewTask
	if !decodeJSON(w, r, &in) {
		return
	}

	task, err := h.tasks.Add(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// PUT /api/v1/tasks/{id}/status
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.TaskStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

// POST /api/v1/tasks/prioritize
func (h *TaskHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	result, err := h.tasks.Prioritize(r.Context())
	if err != nil {
		h.log.Error("prioritization failed", slog.Any("error", err))
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/tasks/import (multipart: file, course_id)
func (h *TaskHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit)
	if err := r.ParseMultipartForm(h.uploadLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File exceeds the upload limit", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_FORM", "Expected a multipart form with a file field", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"file": "File is required"}, r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_FORM", "Could not read uploaded file", r))
		return
	}

	tasks, err := h.tasks.ImportDocument(r.Context(), header.Filename, data, r.FormValue("course_id"))
	if err != nil {
		h.log.Warn("syllabus import failed", slog.String("file", header.Filename), slog.Any("error", err))
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.TaskList{Tasks: tasks, Total: len(tasks)})
}
