package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"scheduler-client/internal/models"
	"scheduler-client/internal/services"
)

type studyPlanStore interface {
	Load(ctx context.Context) (*models.PlanState, error)
	Save(ctx context.Context, plan *models.StudyPlan) error
	AddSession(ctx context.Context, req models.NewSessionRequest) (*models.StudySession, error)
	RemoveSession(ctx context.Context, id string) error
	ToggleCompletion(ctx context.Context, id string) (bool, error)
	ClearSessions(ctx context.Context) error
}

type planBuilder interface {
	Generate(ctx context.Context, req services.GeneratePlanRequest) (*models.StudyPlan, error)
	AgentSchedule(ctx context.Context, req services.AgentScheduleRequest) (json.RawMessage, error)
	ImportText(ctx context.Context, text string, save bool) (*models.StudyPlan, error)
}

type researchTips interface {
	AttachResearchTips(ctx context.Context, sessionID string) (*models.StudySession, error)
}

type cloudClearer interface {
	Clear(ctx context.Context) error
}

type StudyPlanHandler struct {
	plans    studyPlanStore
	planner  planBuilder
	insights researchTips
	cloud    cloudClearer
	log      *slog.Logger
}

func NewStudyPlanHandler(plans studyPlanStore, planner planBuilder, insights researchTips, cloud cloudClearer, log *slog.Logger) *StudyPlanHandler {
	return &StudyPlanHandler{
		plans:    plans,
		planner:  planner,
		insights: insights,
		cloud:    cloud,
		log:      log,
	}
}

type planResponse struct {
	Plan              *models.StudyPlan `json:"plan"`
	CompletedSessions []string          `json:"completed_sessions"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`
}

func newPlanResponse(state *models.PlanState) planResponse {
	ids := state.CompletedIDs()
	sort.Strings(ids)

	resp := planResponse{Plan: state.Plan, CompletedSessions: ids}
	if !state.UpdatedAt.IsZero() {
		at := state.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

func (h *StudyPlanHandler) writeState(w http.ResponseWriter, r *http.Request, status int) {
	state, err := h.plans.Load(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, status, newPlanResponse(state))
}

// GET /api/v1/study-plan
func (h *StudyPlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, r, http.StatusOK)
}

// PUT /api/v1/study-plan
func (h *StudyPlanHandler) Put(w http.ResponseWriter, r *http.Request) {
	var plan models.StudyPlan
	if !decodeJSON(w, r, &plan) {
		return
	}

	if err := h.plans.Save(r.Context(), &plan); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeState(w, r, http.StatusOK)
}

// DELETE /api/v1/study-plan
// The local copy is cleared first; a failed cloud clear is reported on the
// status stream and does not fail the request.
func (h *StudyPlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.ClearSessions(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.cloud.Clear(r.Context()); err != nil {
		h.log.Warn("cloud plan not cleared", slog.Any("error", err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Study plan cleared"})
}

// POST /api/v1/study-plan/sessions
func (h *StudyPlanHandler) AddSession(w http.ResponseWriter, r *http.Request) {
	var req models.NewSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.plans.AddSession(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// DELETE /api/v1/study-plan/sessions/{id}
func (h *StudyPlanHandler) RemoveSession(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.RemoveSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeState(w, r, http.StatusOK)
}

// POST /api/v1/study-plan/sessions/{id}/toggle
func (h *StudyPlanHandler) ToggleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	completed, err := h.plans.ToggleCompletion(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"completed": completed,
	})
}

// POST /api/v1/study-plan/sessions/{id}/research-tips
func (h *StudyPlanHandler) ResearchTips(w http.ResponseWriter, r *http.Request) {
	session, err := h.insights.AttachResearchTips(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// POST /api/v1/study-plan/generate
func (h *StudyPlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req services.GeneratePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plan, err := h.planner.Generate(r.Context(), req)
	if err != nil {
		h.log.Error("study plan generation failed", slog.Any("error", err))
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// POST /api/v1/study-plan/schedule
func (h *StudyPlanHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req services.AgentScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	raw, err := h.planner.AgentSchedule(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, raw)
}

// POST /api/v1/study-plan/parse
func (h *StudyPlanHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Save bool   `json:"save"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"text": "Schedule text is required"}, r))
		return
	}

	plan, err := h.planner.ImportText(r.Context(), req.Text, req.Save)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}
