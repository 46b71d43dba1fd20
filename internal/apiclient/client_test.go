package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-client/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestListTasks_SendsBearerAndParsesNaiveDates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("skip"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"tasks":[{"id":"t1","title":"Essay","task_type":"Assignment",
			"due_date":"2024-01-10T23:59:00","predicted_hours":3.5,"priority_score":0.8,
			"status":"pending","course_code":null,"created_at":"2024-01-01T10:00:00.5"}],"total":1}`)
	}).WithToken("tok")

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC), tasks[0].DueDate)
	assert.Equal(t, 3.5, tasks[0].PredictedHours)
	assert.Empty(t, tasks[0].CourseCode)
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"tasks":[],"total":0}`)
	})

	assert.False(t, c.Authenticated())
	_, err := c.ListTasks(context.Background())
	require.NoError(t, err)
}

func TestClient_NonSuccessBecomesAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"fastapi detail", http.StatusNotFound, `{"detail":"Task not found"}`, "Task not found"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"bad date"}]}`, "field required; bad date"},
		{"plain text", http.StatusBadGateway, `upstream down`, "upstream down"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			err := c.DeleteTask(context.Background(), "t1")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.detail, apiErr.Detail)
		})
	}
}

func TestUpdateAndCompleteTask_Routes(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "overdue", body["status"])
		}
		io.WriteString(w, `{"id":"t1","title":"Essay","status":"completed","due_date":"2024-01-10"}`)
	})

	_, err := c.UpdateTask(context.Background(), "t1", models.TaskStatusOverdue)
	require.NoError(t, err)
	task, err := c.CompleteTask(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, []string{"PUT /api/tasks/t1", "POST /api/tasks/t1/complete"}, calls)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
}

func TestCreateTask_Body(t *testing.T) {
	due := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	grade := 25.0

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["course_id"])
		assert.Equal(t, "2024-03-01T17:00:00Z", body["due_date"])
		assert.Equal(t, 25.0, body["grade_percentage"])
		io.WriteString(w, `{"id":"new","title":"Lab report","task_type":"Lab","status":"pending","due_date":"2024-03-01T17:00:00"}`)
	})

	task, err := c.CreateTask(context.Background(), models.NewTask{
		CourseID:        "c1",
		Title:           "Lab report",
		TaskType:        models.TaskTypeLab,
		DueDate:         &due,
		GradePercentage: &grade,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", task.ID)
}

func TestStudyPlanEndpoints(t *testing.T) {
	var saved SavePlanRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/study-sessions/save":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			io.WriteString(w, `{"success":true}`)
		case "GET /api/study-sessions/load":
			io.WriteString(w, `{"success":true,"plan_data":{"total_hours":2},"sessions":[{"id":"s1","priority":6.5,"completed":true}],"updated_at":"2024-01-10T10:00:00"}`)
		case "DELETE /api/study-sessions/clear":
			io.WriteString(w, `{"success":true}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}).WithToken("tok")

	ctx := context.Background()
	plan := &models.StudyPlan{Sessions: []models.StudySession{{ID: "s1", EstimatedHours: 2}}}
	require.NoError(t, c.SaveStudyPlan(ctx, SavePlanRequest{PlanData: plan, Sessions: plan.Sessions}))
	assert.Len(t, saved.Sessions, 1)

	loaded, err := c.LoadStudyPlan(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Success)
	assert.Equal(t, "2024-01-10T10:00:00", loaded.UpdatedAt)
	require.Len(t, loaded.Sessions, 1)
	assert.Equal(t, models.Priority(7), loaded.Sessions[0].Priority)
	assert.JSONEq(t, `{"total_hours":2}`, string(loaded.PlanData))

	require.NoError(t, c.ClearStudyPlan(ctx))
}

func TestAgentEndpointsReturnRawJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agents/prioritize", r.URL.Path)
		io.WriteString(w, `{"success":true,"priorities":[{"task_id":"a","priority_score":0.9}]}`)
	})

	raw, err := c.PrioritizeTasks(context.Background(), PrioritizeRequest{Tasks: []models.Task{{ID: "a"}}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"priorities"`)
}
