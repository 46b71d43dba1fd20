package services

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
	"scheduler-client/internal/session"
)

// PlanGenerator is the backend side of plan generation.
type PlanGenerator interface {
	GenerateStudyPlan(ctx context.Context, req models.GenerateStudyPlanRequest) (*models.GenerateStudyPlanResponse, error)
	GenerateSchedule(ctx context.Context, req apiclient.ScheduleRequest) (json.RawMessage, error)
}

type GeneratePlanRequest struct {
	StudyHoursPerDay int      `json:"study_hours_per_day"`
	StartDate        string   `json:"start_date,omitempty"`
	TaskIDs          []string `json:"task_ids,omitempty"`
}

type AgentScheduleRequest struct {
	StartDate string `json:"start_date,omitempty"`
	Days      int    `json:"days"`
}

type PlannerService struct {
	tasks     *TaskService
	plans     *StudyPlanService
	store     kvstore.Store
	generator func(sess session.Session) PlanGenerator
}

func NewPlannerService(tasks *TaskService, plans *StudyPlanService, store kvstore.Store, api *apiclient.Client) *PlannerService {
	return &PlannerService{
		tasks: tasks,
		plans: plans,
		store: store,
		generator: func(sess session.Session) PlanGenerator {
			return api.WithToken(sess.Token)
		},
	}
}

// Generate asks the backend for a plan over the open tasks and stores it as
// the current plan.
func (p *PlannerService) Generate(ctx context.Context, req GeneratePlanRequest) (*models.StudyPlan, error) {
	if req.StudyHoursPerDay == 0 {
		req.StudyHoursPerDay = 2
	}
	fields := make(map[string]string)
	if req.StudyHoursPerDay < 1 || req.StudyHoursPerDay > 16 {
		fields["study_hours_per_day"] = "Study hours per day must be between 1 and 16"
	}
	if req.StartDate != "" {
		if _, err := time.Parse(time.DateOnly, req.StartDate); err != nil {
			fields["start_date"] = "Start date must be YYYY-MM-DD"
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	tasks, err := p.openTasks(ctx, req.TaskIDs)
	if err != nil {
		return nil, err
	}

	sess, err := session.Load(ctx, p.store)
	if err != nil {
		return nil, err
	}

	resp, err := p.generator(sess).GenerateStudyPlan(ctx, models.GenerateStudyPlanRequest{
		Tasks:            tasks,
		StudyHoursPerDay: req.StudyHoursPerDay,
		StartDate:        req.StartDate,
	})
	if err != nil {
		return nil, err
	}

	plan := PlanFromGenerateResponse(resp)
	if err := p.plans.Replace(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// AgentSchedule runs the scheduling agent over the open tasks and returns its
// answer untouched.
func (p *PlannerService) AgentSchedule(ctx context.Context, req AgentScheduleRequest) (json.RawMessage, error) {
	if req.Days == 0 {
		req.Days = 7
	}
	if req.Days < 1 || req.Days > 30 {
		return nil, &ValidationError{Fields: map[string]string{"days": "Days must be between 1 and 30"}}
	}

	tasks, err := p.openTasks(ctx, nil)
	if err != nil {
		return nil, err
	}

	sess, err := session.Load(ctx, p.store)
	if err != nil {
		return nil, err
	}

	return p.generator(sess).GenerateSchedule(ctx, apiclient.ScheduleRequest{
		Tasks:     tasks,
		StartDate: req.StartDate,
		Days:      req.Days,
		UserID:    sess.UserID,
	})
}

// ImportText parses a markdown schedule and, when save is set, stores it as
// the current plan.
func (p *PlannerService) ImportText(ctx context.Context, text string, save bool) (*models.StudyPlan, error) {
	plan := ParseSchedule(text)
	if !save {
		return plan, nil
	}
	if len(plan.Sessions) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"text": "No sessions found in schedule text"}}
	}
	if err := p.plans.Replace(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *PlannerService) openTasks(ctx context.Context, ids []string) ([]models.Task, error) {
	all, err := p.tasks.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	open := make([]models.Task, 0, len(all))
	for _, t := range all {
		if t.Status == models.TaskStatusCompleted {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, t.ID) {
			continue
		}
		open = append(open, t)
	}

	if len(open) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"tasks": "No open tasks to plan"}}
	}
	return open, nil
}
