package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"scheduler-client/internal/models"
)

// wireTask mirrors the backend task record. Timestamps come back without a
// zone, which encoding/json refuses for time.Time.
type wireTask struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	CourseID        string            `json:"course_id"`
	Title           string            `json:"title"`
	Description     *string           `json:"description"`
	TaskType        models.TaskType   `json:"task_type"`
	DueDate         string            `json:"due_date"`
	PredictedHours  float64           `json:"predicted_hours"`
	WeightScore     float64           `json:"weight_score"`
	PriorityScore   float64           `json:"priority_score"`
	GradePercentage *float64          `json:"grade_percentage"`
	CourseCode      *string           `json:"course_code"`
	Status          models.TaskStatus `json:"status"`
	CreatedAt       string            `json:"created_at"`
}

func (w wireTask) toModel() models.Task {
	t := models.Task{
		ID:             w.ID,
		UserID:         w.UserID,
		CourseID:       w.CourseID,
		Title:          w.Title,
		TaskType:       w.TaskType,
		PredictedHours: w.PredictedHours,
		WeightScore:    w.WeightScore,
		PriorityScore:  w.PriorityScore,
		Status:         w.Status,
	}
	if w.Description != nil {
		t.Description = *w.Description
	}
	if w.GradePercentage != nil {
		t.GradePercentage = *w.GradePercentage
	}
	if w.CourseCode != nil {
		t.CourseCode = *w.CourseCode
	}
	if due, err := models.ParseTimestamp(w.DueDate); err == nil {
		t.DueDate = due
	}
	if created, err := models.ParseTimestamp(w.CreatedAt); err == nil {
		t.CreatedAt = created
	}
	return t
}

type createTaskBody struct {
	CourseID        string          `json:"course_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	TaskType        models.TaskType `json:"task_type"`
	DueDate         string          `json:"due_date"`
	GradePercentage float64         `json:"grade_percentage"`
}

func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	q := url.Values{}
	q.Set("skip", "0")
	q.Set("limit", "1000")

	var resp struct {
		Tasks []wireTask `json:"tasks"`
		Total int        `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks/?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(resp.Tasks))
	for _, w := range resp.Tasks {
		tasks = append(tasks, w.toModel())
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error) {
	body := createTaskBody{
		CourseID:    in.CourseID,
		Title:       in.Title,
		Description: in.Description,
		TaskType:    in.TaskType,
	}
	if in.DueDate != nil {
		body.DueDate = in.DueDate.UTC().Format(time.RFC3339)
	}
	if in.GradePercentage != nil {
		body.GradePercentage = *in.GradePercentage
	}

	var w wireTask
	if err := c.do(ctx, http.MethodPost, "/api/tasks/", body, &w); err != nil {
		return nil, err
	}
	t := w.toModel()
	return &t, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	body := map[string]any{"status": status}

	var w wireTask
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), body, &w); err != nil {
		return nil, err
	}
	t := w.toModel()
	return &t, nil
}

func (c *Client) CompleteTask(ctx context.Context, id string) (*models.Task, error) {
	var w wireTask
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/complete", nil, &w); err != nil {
		return nil, err
	}
	t := w.toModel()
	return &t, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}
