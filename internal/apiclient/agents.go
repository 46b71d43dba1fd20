package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"scheduler-client/internal/models"
)

func (c *Client) GenerateStudyPlan(ctx context.Context, req models.GenerateStudyPlanRequest) (*models.GenerateStudyPlanResponse, error) {
	var resp models.GenerateStudyPlanResponse
	if err := c.do(ctx, http.MethodPost, "/api/study-plan/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// The agent endpoints below are opaque: their responses are returned as-is
// for the caller to pick apart.

type ScheduleRequest struct {
	Tasks     []models.Task `json:"tasks"`
	StartDate string        `json:"start_date,omitempty"`
	Days      int           `json:"days"`
	UserID    string        `json:"user_id,omitempty"`
}

func (c *Client) GenerateSchedule(ctx context.Context, req ScheduleRequest) (json.RawMessage, error) {
	return c.doRaw(ctx, http.MethodPost, "/api/agents/schedule", req)
}

type PrioritizeRequest struct {
	Tasks    []models.Task  `json:"tasks"`
	Criteria map[string]any `json:"criteria,omitempty"`
	UserID   string         `json:"user_id,omitempty"`
}

func (c *Client) PrioritizeTasks(ctx context.Context, req PrioritizeRequest) (json.RawMessage, error) {
	return c.doRaw(ctx, http.MethodPost, "/api/agents/prioritize", req)
}

type ParseDocumentRequest struct {
	Text       string `json:"text"`
	SourceType string `json:"source_type"`
	UserID     string `json:"user_id,omitempty"`
	CourseID   string `json:"course_id,omitempty"`
}

func (c *Client) ParseDocument(ctx context.Context, req ParseDocumentRequest) (json.RawMessage, error) {
	return c.doRaw(ctx, http.MethodPost, "/api/agents/parse", req)
}
