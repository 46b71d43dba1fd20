package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"scheduler-client/internal/models"
)

type SavePlanRequest struct {
	PlanData *models.StudyPlan    `json:"plan_data"`
	Sessions []models.StudySession `json:"sessions"`
}

// LoadPlanResponse is the cloud copy. PlanData is left raw so the caller can
// reject a malformed document without failing the whole request.
type LoadPlanResponse struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message,omitempty"`
	PlanData  json.RawMessage       `json:"plan_data"`
	Sessions  []models.StudySession `json:"sessions"`
	UpdatedAt string                `json:"updated_at"`
}

func (c *Client) SaveStudyPlan(ctx context.Context, req SavePlanRequest) error {
	return c.do(ctx, http.MethodPost, "/api/study-sessions/save", req, nil)
}

func (c *Client) LoadStudyPlan(ctx context.Context) (*LoadPlanResponse, error) {
	var resp LoadPlanResponse
	if err := c.do(ctx, http.MethodGet, "/api/study-sessions/load", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ClearStudyPlan(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/study-sessions/clear", nil, nil)
}
