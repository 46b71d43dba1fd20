package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
)

type stubPlanAPI struct {
	saved    []apiclient.SavePlanRequest
	saveErr  error
	loadResp *apiclient.LoadPlanResponse
	loadErr  error
	cleared  int
	token    string
}

func (s *stubPlanAPI) SaveStudyPlan(_ context.Context, req apiclient.SavePlanRequest) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, req)
	return nil
}

func (s *stubPlanAPI) LoadStudyPlan(context.Context) (*apiclient.LoadPlanResponse, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.loadResp, nil
}

func (s *stubPlanAPI) ClearStudyPlan(context.Context) error {
	s.cleared++
	return nil
}

func newCloudSync(t *testing.T) (*CloudSync, *StudyPlanService, kvstore.Store, *stubPlanAPI, *recordingHub) {
	t.Helper()
	plans, store, _ := newPlanService(t)
	hub := &recordingHub{}
	api := &stubPlanAPI{}
	c := &CloudSync{
		plans:  plans,
		store:  store,
		status: NewStatusBoard(hub, time.Hour),
		log:    discardLogger(),
		newAPI: func(token string) PlanAPI {
			api.token = token
			return api
		},
	}
	return c, plans, store, api, hub
}

func remotePlan(t *testing.T, updatedAt string, sessions ...models.StudySession) *apiclient.LoadPlanResponse {
	t.Helper()
	data, err := json.Marshal(models.StudyPlan{Sessions: sessions})
	require.NoError(t, err)
	return &apiclient.LoadPlanResponse{
		Success:   true,
		PlanData:  data,
		Sessions:  sessions,
		UpdatedAt: updatedAt,
	}
}

func TestCloudPush_GuestDoesNothing(t *testing.T) {
	c, plans, _, api, _ := newCloudSync(t)
	seedPlan(t, plans, models.StudySession{ID: "a", EstimatedHours: 1})

	require.NoError(t, c.Push(context.Background()))
	assert.Empty(t, api.saved)
}

func TestCloudPush_AnnotatesCompletedSessions(t *testing.T) {
	ctx := context.Background()
	c, plans, store, api, _ := newCloudSync(t)
	seedPlan(t, plans,
		models.StudySession{ID: "a", EstimatedHours: 1},
		models.StudySession{ID: "b", EstimatedHours: 2},
	)
	_, err := plans.ToggleCompletion(ctx, "b")
	require.NoError(t, err)
	signIn(t, store)

	require.NoError(t, c.Push(ctx))

	require.Len(t, api.saved, 1)
	assert.Equal(t, "opaque-token", api.token)
	req := api.saved[0]
	require.Len(t, req.Sessions, 2)
	assert.False(t, req.Sessions[0].Completed)
	assert.True(t, req.Sessions[1].Completed)
	assert.Equal(t, 3.0, req.PlanData.TotalHours)
}

func TestCloudPush_NoPlanIsNoop(t *testing.T) {
	c, _, store, api, _ := newCloudSync(t)
	signIn(t, store)

	require.NoError(t, c.Push(context.Background()))
	assert.Empty(t, api.saved)
}

func TestCloudPush_FailurePostsErrorAndKeepsLocal(t *testing.T) {
	ctx := context.Background()
	c, plans, store, api, hub := newCloudSync(t)
	seedPlan(t, plans, models.StudySession{ID: "a", EstimatedHours: 1})
	signIn(t, store)
	api.saveErr = &apiclient.APIError{StatusCode: 500, Detail: "boom"}

	err := c.Push(ctx)
	require.Error(t, err)

	statuses := hub.Statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusError, statuses[len(statuses)-1].Level)

	state, err := plans.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Plan.Sessions, 1)
}

func TestCloudPull_Guest(t *testing.T) {
	c, _, _, _, _ := newCloudSync(t)

	result, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullSkipped, result)
}

func TestCloudPull_NoRemotePlan(t *testing.T) {
	c, _, store, api, _ := newCloudSync(t)
	signIn(t, store)
	api.loadResp = &apiclient.LoadPlanResponse{Success: false, Message: "No study plan found"}

	result, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullNoRemote, result)
}

func TestCloudPull_ReplacesWhenNoLocalTimestamp(t *testing.T) {
	ctx := context.Background()
	c, plans, store, api, hub := newCloudSync(t)
	signIn(t, store)
	api.loadResp = remotePlan(t, "2024-01-05T10:00:00",
		models.StudySession{ID: "r1", EstimatedHours: 2, Completed: true},
		models.StudySession{ID: "r2", EstimatedHours: 1},
	)

	result, err := c.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, PullReplaced, result)

	state, err := plans.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Plan.Sessions, 2)
	assert.Equal(t, []string{"r1"}, state.CompletedIDs())
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), state.UpdatedAt)

	statuses := hub.Statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusSuccess, statuses[0].Level)
}

func TestCloudPull_LastWriterWins(t *testing.T) {
	tests := []struct {
		name     string
		remoteAt time.Time
		want     PullResult
	}{
		{"remote newer", time.Date(2024, 1, 10, 9, 0, 0, 1e6, time.UTC), PullReplaced},
		{"same instant", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), PullLocalCurrent},
		{"remote older", time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC), PullLocalCurrent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			c, plans, store, api, _ := newCloudSync(t)
			// Local write happens at 2024-01-10T09:00:00Z.
			seedPlan(t, plans, models.StudySession{ID: "local", EstimatedHours: 1})
			signIn(t, store)
			api.loadResp = remotePlan(t, tc.remoteAt.Format(time.RFC3339Nano),
				models.StudySession{ID: "remote", EstimatedHours: 3})

			result, err := c.Pull(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result)

			state, err := plans.Load(ctx)
			require.NoError(t, err)
			wantID := "local"
			if tc.want == PullReplaced {
				wantID = "remote"
			}
			require.Len(t, state.Plan.Sessions, 1)
			assert.Equal(t, wantID, state.Plan.Sessions[0].ID)
		})
	}
}

func TestCloudPull_FallsBackToResponseSessions(t *testing.T) {
	ctx := context.Background()
	c, plans, store, api, _ := newCloudSync(t)
	signIn(t, store)
	api.loadResp = &apiclient.LoadPlanResponse{
		Success:   true,
		PlanData:  json.RawMessage(`null`),
		Sessions:  []models.StudySession{{ID: "s1", EstimatedHours: 1.5, Completed: true}},
		UpdatedAt: "2024-03-01T08:00:00Z",
	}

	result, err := c.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, PullReplaced, result)

	state, err := plans.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.5, state.Plan.TotalHours)
	assert.Equal(t, []string{"s1"}, state.CompletedIDs())
}

func TestCloudPull_BadTimestampFails(t *testing.T) {
	c, _, store, api, hub := newCloudSync(t)
	signIn(t, store)
	api.loadResp = &apiclient.LoadPlanResponse{Success: true, UpdatedAt: "yesterday"}

	_, err := c.Pull(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, hub.Statuses())
	assert.Equal(t, models.StatusError, hub.Statuses()[0].Level)
}

func TestCloudPull_TransportFailure(t *testing.T) {
	c, _, store, api, _ := newCloudSync(t)
	signIn(t, store)
	api.loadErr = errors.New("connection refused")

	result, err := c.Pull(context.Background())
	require.Error(t, err)
	assert.Equal(t, PullSkipped, result)
}

func TestCloudClear(t *testing.T) {
	ctx := context.Background()
	c, _, store, api, _ := newCloudSync(t)

	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, api.cleared)

	signIn(t, store)
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 1, api.cleared)
}
