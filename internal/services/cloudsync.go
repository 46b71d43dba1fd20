package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
	"scheduler-client/internal/session"
)

type PullResult string

const (
	PullSkipped      PullResult = "skipped"
	PullNoRemote     PullResult = "no_remote"
	PullReplaced     PullResult = "replaced"
	PullLocalCurrent PullResult = "local_current"
)

// PlanAPI is the cloud study-plan endpoint set.
type PlanAPI interface {
	SaveStudyPlan(ctx context.Context, req apiclient.SavePlanRequest) error
	LoadStudyPlan(ctx context.Context) (*apiclient.LoadPlanResponse, error)
	ClearStudyPlan(ctx context.Context) error
}

// CloudSync mirrors the local plan to the backend for signed-in users. The
// local copy stays authoritative: failures are reported, never rolled back.
type CloudSync struct {
	plans  *StudyPlanService
	store  kvstore.Store
	status *StatusBoard
	log    *slog.Logger
	newAPI func(token string) PlanAPI
}

func NewCloudSync(plans *StudyPlanService, store kvstore.Store, api *apiclient.Client, status *StatusBoard, log *slog.Logger) *CloudSync {
	return &CloudSync{
		plans:  plans,
		store:  store,
		status: status,
		log:    log,
		newAPI: func(token string) PlanAPI { return api.WithToken(token) },
	}
}

func (c *CloudSync) client(ctx context.Context) (PlanAPI, bool, error) {
	sess, err := session.Load(ctx, c.store)
	if err != nil {
		return nil, false, err
	}
	if !sess.Authenticated() {
		return nil, false, nil
	}
	return c.newAPI(sess.Token), true, nil
}

// Push sends the whole plan with each session's completed flag taken from
// the local completed set. Without a session or a plan it does nothing.
func (c *CloudSync) Push(ctx context.Context) error {
	api, ok, err := c.client(ctx)
	if err != nil || !ok {
		return err
	}

	state, err := c.plans.Load(ctx)
	if errors.Is(err, ErrNoPlan) {
		return nil
	}
	if err != nil {
		return err
	}

	sessions := make([]models.StudySession, len(state.Plan.Sessions))
	for i, s := range state.Plan.Sessions {
		s.Completed = state.Completed[s.ID]
		sessions[i] = s
	}

	if err := api.SaveStudyPlan(ctx, apiclient.SavePlanRequest{PlanData: state.Plan, Sessions: sessions}); err != nil {
		return c.fail("push", "Cloud sync failed. Your changes are saved on this device.", err)
	}

	c.log.Debug("study plan pushed", slog.Int("sessions", len(sessions)))
	return nil
}

// Pull replaces local state with the cloud copy only when the cloud copy is
// strictly newer than the local timestamp, or there is no local timestamp.
func (c *CloudSync) Pull(ctx context.Context) (PullResult, error) {
	api, ok, err := c.client(ctx)
	if err != nil {
		return PullSkipped, err
	}
	if !ok {
		return PullSkipped, nil
	}

	resp, err := api.LoadStudyPlan(ctx)
	if err != nil {
		return PullSkipped, c.fail("pull", "Could not load your study plan from the cloud.", err)
	}
	if !resp.Success {
		return PullNoRemote, nil
	}

	remoteAt, err := models.ParseTimestamp(resp.UpdatedAt)
	if err != nil {
		return PullSkipped, c.fail("pull", "Cloud study plan has an unreadable timestamp.", fmt.Errorf("parse updated_at %q: %w", resp.UpdatedAt, err))
	}

	local, hasLocal, err := c.plans.LocalTimestamp(ctx)
	if err != nil {
		return PullSkipped, err
	}
	// A naive remote updated_at is read as UTC; a backend stamping local time skews this by its offset.
	if hasLocal && remoteAt.UnixMilli() <= local {
		return PullLocalCurrent, nil
	}

	var plan models.StudyPlan
	if len(resp.PlanData) > 0 && string(resp.PlanData) != "null" {
		if err := json.Unmarshal(resp.PlanData, &plan); err != nil {
			return PullSkipped, c.fail("pull", "Cloud study plan is unreadable.", fmt.Errorf("decode plan_data: %w", err))
		}
	}

	completedFrom := resp.Sessions
	if len(plan.Sessions) == 0 {
		plan.Sessions = resp.Sessions
	}
	if len(completedFrom) == 0 {
		completedFrom = plan.Sessions
	}

	completed := make([]string, 0)
	for _, s := range completedFrom {
		if s.Completed {
			completed = append(completed, s.ID)
		}
	}

	if err := c.plans.ReplaceFromRemote(ctx, &plan, completed, remoteAt); err != nil {
		return PullSkipped, err
	}

	c.status.Post(models.StatusSuccess, "Study plan updated from the cloud.")
	return PullReplaced, nil
}

// Clear removes the cloud copy for signed-in users.
func (c *CloudSync) Clear(ctx context.Context) error {
	api, ok, err := c.client(ctx)
	if err != nil || !ok {
		return err
	}

	if err := api.ClearStudyPlan(ctx); err != nil {
		return c.fail("clear", "Could not clear your cloud study plan.", err)
	}
	return nil
}

func (c *CloudSync) fail(op, userText string, err error) error {
	c.log.Error("cloud sync failed", slog.String("op", op), slog.Any("error", err))
	c.status.Post(models.StatusError, userText)
	return fmt.Errorf("cloud %s: %w", op, err)
}
