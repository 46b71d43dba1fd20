package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
	"scheduler-client/internal/session"
)

// PushScheduler queues a delayed cloud push.
type PushScheduler interface {
	Schedule()
}

// StudyPlanService owns the current plan, its completed-session set and the
// last-updated timestamp in the device store.
type StudyPlanService struct {
	store kvstore.Store
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	pusher PushScheduler
}

func NewStudyPlanService(store kvstore.Store, log *slog.Logger) *StudyPlanService {
	return &StudyPlanService{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// SetPushScheduler wires the cloud push. Until it is set mutations stay local.
func (s *StudyPlanService) SetPushScheduler(p PushScheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pusher = p
}

// Load returns the stored plan with its completed set, or ErrNoPlan.
func (s *StudyPlanService) Load(ctx context.Context) (*models.PlanState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *StudyPlanService) Save(ctx context.Context, plan *models.StudyPlan) error {
	if plan == nil {
		return &ValidationError{Fields: map[string]string{"plan": "Plan is required"}}
	}

	return s.mutate(ctx, true, func(state *models.PlanState) error {
		state.Plan = plan
		return nil
	})
}

// Replace stores a freshly generated or imported plan. Unlike Save, no
// completion marks carry over from the previous plan.
func (s *StudyPlanService) Replace(ctx context.Context, plan *models.StudyPlan) error {
	if plan == nil {
		return &ValidationError{Fields: map[string]string{"plan": "Plan is required"}}
	}

	return s.mutate(ctx, true, func(state *models.PlanState) error {
		state.Plan = plan
		state.Completed = make(map[string]bool)
		return nil
	})
}

func (s *StudyPlanService) AddSession(ctx context.Context, req models.NewSessionRequest) (*models.StudySession, error) {
	fields := make(map[string]string)
	title := strings.TrimSpace(req.TaskTitle)
	if title == "" {
		fields["task_title"] = "Task title is required"
	}
	if req.EstimatedHours <= 0 {
		fields["estimated_hours"] = "Estimated hours must be positive"
	}
	if req.Priority < 0 || req.Priority > 10 {
		fields["priority"] = "Priority must be between 1 and 10"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	var added models.StudySession
	err := s.mutate(ctx, true, func(state *models.PlanState) error {
		if state.Plan == nil {
			state.Plan = &models.StudyPlan{}
		}

		now := s.now()
		id := now.UnixMilli()
		for state.Plan.FindSession(sessionID(id)) >= 0 {
			id++
		}

		added = models.StudySession{
			ID:             sessionID(id),
			TaskID:         req.TaskID,
			TaskTitle:      title,
			CourseCode:     req.CourseCode,
			Day:            req.Day,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Priority:       models.Priority(req.Priority),
			EstimatedHours: req.EstimatedHours,
			ResearchTips:   req.ResearchTips,
		}
		if added.Priority == 0 {
			added.Priority = 5
		}
		if added.Day == "" {
			added.Day = now.Format(time.DateOnly)
		}

		state.Plan.Sessions = append(state.Plan.Sessions, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *StudyPlanService) RemoveSession(ctx context.Context, id string) error {
	return s.mutate(ctx, false, func(state *models.PlanState) error {
		idx := state.Plan.FindSession(id)
		if idx < 0 {
			return ErrSessionNotFound
		}
		state.Plan.Sessions = append(state.Plan.Sessions[:idx], state.Plan.Sessions[idx+1:]...)
		delete(state.Completed, id)
		return nil
	})
}

// ToggleCompletion flips id in the completed set and reports the new value.
func (s *StudyPlanService) ToggleCompletion(ctx context.Context, id string) (bool, error) {
	var completed bool
	err := s.mutate(ctx, false, func(state *models.PlanState) error {
		if state.Plan.FindSession(id) < 0 {
			return ErrSessionNotFound
		}
		completed = !state.Completed[id]
		if completed {
			state.Completed[id] = true
		} else {
			delete(state.Completed, id)
		}
		return nil
	})
	return completed, err
}

// SetResearchTips replaces the tips attached to a session.
func (s *StudyPlanService) SetResearchTips(ctx context.Context, id string, tips []string) (*models.StudySession, error) {
	var updated models.StudySession
	err := s.mutate(ctx, false, func(state *models.PlanState) error {
		idx := state.Plan.FindSession(id)
		if idx < 0 {
			return ErrSessionNotFound
		}
		state.Plan.Sessions[idx].ResearchTips = tips
		updated = state.Plan.Sessions[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ResetSessionsForTask clears completion artifacts on every session of the
// task and drops them from the completed set. It returns how many sessions
// were touched; a missing plan counts as zero.
func (s *StudyPlanService) ResetSessionsForTask(ctx context.Context, taskID string) (int, error) {
	if taskID == "" {
		return 0, nil
	}

	touched := 0
	err := s.mutate(ctx, false, func(state *models.PlanState) error {
		for i := range state.Plan.Sessions {
			sess := &state.Plan.Sessions[i]
			if sess.TaskID != taskID {
				continue
			}
			sess.ResetCompletion()
			delete(state.Completed, sess.ID)
			touched++
		}
		if touched == 0 {
			return errNothingChanged
		}
		return nil
	})
	if errors.Is(err, ErrNoPlan) || errors.Is(err, errNothingChanged) {
		return 0, nil
	}
	return touched, err
}

// ClearSessions drops the local plan, its completed set and timestamp.
func (s *StudyPlanService) ClearSessions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{kvstore.KeyStudyPlan, kvstore.KeyCompletedSessions, kvstore.KeyStudyPlanTimestamp} {
		if err := s.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

// ReplaceFromRemote overwrites local state with the cloud copy, stamping it
// with the remote update time. It never schedules a push.
func (s *StudyPlanService) ReplaceFromRemote(ctx context.Context, plan *models.StudyPlan, completedIDs []string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan.Recompute()
	completed := make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		if plan.FindSession(id) >= 0 {
			completed[id] = true
		}
	}

	return s.persist(ctx, &models.PlanState{Plan: plan, Completed: completed}, updatedAt.UnixMilli())
}

// LocalTimestamp returns the stored last-updated time in unix milliseconds.
func (s *StudyPlanService) LocalTimestamp(ctx context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamp(ctx)
}

var errNothingChanged = errors.New("nothing changed")

// mutate runs fn against the stored state under the lock, persists the result
// with a fresh timestamp and queues a push for authenticated sessions. With
// allowEmpty false a missing plan fails with ErrNoPlan before fn runs.
func (s *StudyPlanService) mutate(ctx context.Context, allowEmpty bool, fn func(*models.PlanState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(ctx)
	switch {
	case errors.Is(err, ErrNoPlan) && allowEmpty:
		state = &models.PlanState{Completed: make(map[string]bool)}
	case err != nil:
		return err
	}

	if err := fn(state); err != nil {
		return err
	}

	prev, _, err := s.timestamp(ctx)
	if err != nil {
		return err
	}
	ts := max(s.now().UnixMilli(), prev+1)

	state.Plan.Recompute()
	for id := range state.Completed {
		if state.Plan.FindSession(id) < 0 {
			delete(state.Completed, id)
		}
	}
	if err := s.persist(ctx, state, ts); err != nil {
		return err
	}

	s.schedulePush(ctx)
	return nil
}

func (s *StudyPlanService) schedulePush(ctx context.Context) {
	if s.pusher == nil {
		return
	}
	sess, err := session.Load(ctx, s.store)
	if err != nil {
		s.log.Warn("cannot read session, skipping cloud push", slog.Any("error", err))
		return
	}
	if sess.Authenticated() {
		s.pusher.Schedule()
	}
}

func (s *StudyPlanService) load(ctx context.Context) (*models.PlanState, error) {
	raw, err := s.store.Get(ctx, kvstore.KeyStudyPlan)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNoPlan
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan models.StudyPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		s.log.Warn("ignoring malformed stored study plan", slog.Any("error", err))
		return nil, ErrNoPlan
	}
	plan.Recompute()

	state := &models.PlanState{Plan: &plan, Completed: make(map[string]bool)}

	var ids []string
	err = kvstore.GetJSON(ctx, s.store, kvstore.KeyCompletedSessions, &ids)
	switch {
	case err == nil:
		for _, id := range ids {
			state.Completed[id] = true
		}
	case errors.Is(err, kvstore.ErrNotFound):
	default:
		s.log.Warn("ignoring malformed completed-session set", slog.Any("error", err))
	}

	ts, ok, err := s.timestamp(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		state.UpdatedAt = time.UnixMilli(ts).UTC()
	}

	return state, nil
}

func (s *StudyPlanService) persist(ctx context.Context, state *models.PlanState, ts int64) error {
	if err := kvstore.SetJSON(ctx, s.store, kvstore.KeyStudyPlan, state.Plan); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	if err := kvstore.SetJSON(ctx, s.store, kvstore.KeyCompletedSessions, state.CompletedIDs()); err != nil {
		return fmt.Errorf("save completed sessions: %w", err)
	}
	if err := s.store.Set(ctx, kvstore.KeyStudyPlanTimestamp, strconv.FormatInt(ts, 10)); err != nil {
		return fmt.Errorf("save plan timestamp: %w", err)
	}
	state.UpdatedAt = time.UnixMilli(ts).UTC()
	return nil
}

// timestamp reads studyPlanTimestamp. Older records hold an ISO date instead
// of milliseconds; anything unreadable counts as absent.
func (s *StudyPlanService) timestamp(ctx context.Context) (int64, bool, error) {
	raw, err := s.store.Get(ctx, kvstore.KeyStudyPlanTimestamp)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read plan timestamp: %w", err)
	}

	if ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
		return ms, true, nil
	}
	if t, err := models.ParseTimestamp(raw); err == nil {
		return t.UnixMilli(), true, nil
	}

	s.log.Warn("ignoring malformed plan timestamp", slog.String("value", raw))
	return 0, false, nil
}

func sessionID(ms int64) string {
	return "session-" + strconv.FormatInt(ms, 10)
}
