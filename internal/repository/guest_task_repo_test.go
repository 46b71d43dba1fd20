package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
)

const guestID = "guest-1"

func newGuestRepo(t *testing.T) (*GuestTaskRepo, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	repo := NewGuestTaskRepo(store, guestID, slog.New(slog.NewTextHandler(io.Discard, nil)))
	repo.now = func() time.Time { return time.UnixMilli(1704880800000) }
	return repo, store
}

func put(t *testing.T, store kvstore.Store, key, raw string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), key, raw))
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func TestGuestFetchAll_CoercesUnknownStatus(t *testing.T) {
	repo, store := newGuestRepo(t)
	put(t, store, "task_a", `{"id":"a","title":"A","status":"in_progress","user_id":"guest-1"}`)
	put(t, store, "task_b", `{"id":"b","title":"B","status":42}`)

	tasks, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, models.TaskStatusPending, task.Status, task.ID)
	}
}

func TestGuestFetchAll_DefaultsMissingFields(t *testing.T) {
	repo, store := newGuestRepo(t)
	put(t, store, "task_a", `{"id":"a","title":"A","task_type":"Essay","predicted_hours":-2,"priority_score":"high"}`)

	tasks, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, models.TaskTypeAssignment, task.TaskType)
	assert.Equal(t, models.DefaultPredictedHours, task.PredictedHours)
	assert.Equal(t, models.DefaultPriorityScore, task.PriorityScore)
	assert.Equal(t, models.DefaultWeightScore, task.WeightScore)
	assert.True(t, task.DueDate.IsZero())
}

func TestGuestFetchAll_SkipsMalformedAndForeignRecords(t *testing.T) {
	repo, store := newGuestRepo(t)
	put(t, store, "task_ok", `{"id":"ok","title":"Mine"}`)
	put(t, store, "task_broken", `{"id":`)
	put(t, store, "task_scalar", `"just a string"`)
	put(t, store, "task_other", `{"id":"other","user_id":"guest-2"}`)
	put(t, store, "course_c1", `{"id":"c1","code":"CS101"}`)
	put(t, store, "course_c1_tasks", `["ok"]`)

	tasks, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids(tasks))
}

func TestGuestFetchAll_Ordering(t *testing.T) {
	repo, store := newGuestRepo(t)
	put(t, store, "task_done", `{"id":"done","status":"completed","due_date":"2024-01-01T00:00:00Z","priority_score":0.9}`)
	put(t, store, "task_late", `{"id":"late","status":"overdue","due_date":"2024-01-01T00:00:00Z"}`)
	put(t, store, "task_nodate", `{"id":"nodate","status":"pending","priority_score":0.99}`)
	put(t, store, "task_soon_low", `{"id":"soon_low","status":"pending","due_date":"2024-01-05T00:00:00Z","priority_score":0.2}`)
	put(t, store, "task_soon_high", `{"id":"soon_high","status":"pending","due_date":"2024-01-05T00:00:00Z","priority_score":0.8}`)
	put(t, store, "task_first", `{"id":"first","status":"pending","due_date":"2024-01-02"}`)

	tasks, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "soon_high", "soon_low", "nodate", "late", "done"}, ids(tasks))
}

func TestGuestAdd_DefaultsAndCourseIndex(t *testing.T) {
	repo, store := newGuestRepo(t)
	ctx := context.Background()
	put(t, store, "course_c1", `{"id":"c1","code":"CS101","name":"Intro"}`)

	task, err := repo.Add(ctx, models.NewTask{CourseID: "c1", Title: "Problem set", TaskType: models.TaskTypeQuiz})
	require.NoError(t, err)

	assert.Regexp(t, `^1704880800000-[0-9a-f]{9}$`, task.ID)
	assert.Equal(t, guestID, task.UserID)
	assert.Equal(t, "CS101", task.CourseCode)
	assert.Equal(t, 4.0, task.PredictedHours)
	assert.Equal(t, 0.5, task.WeightScore)
	assert.Equal(t, 0.5, task.PriorityScore)
	assert.Equal(t, 0.0, task.GradePercentage)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	var index []string
	require.NoError(t, kvstore.GetJSON(ctx, store, "course_c1_tasks", &index))
	assert.Equal(t, []string{task.ID}, index)

	tasks, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, ids(tasks))
}

func TestGuestAdd_KeepsProvidedValues(t *testing.T) {
	repo, _ := newGuestRepo(t)
	hours, grade := 7.5, 30.0
	due := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	task, err := repo.Add(context.Background(), models.NewTask{
		Title:           "Exam prep",
		TaskType:        models.TaskTypeExam,
		DueDate:         &due,
		PredictedHours:  &hours,
		GradePercentage: &grade,
	})
	require.NoError(t, err)

	assert.Equal(t, 7.5, task.PredictedHours)
	assert.Equal(t, 30.0, task.GradePercentage)
	assert.Equal(t, due, task.DueDate)
	assert.Empty(t, task.CourseCode)
}

func TestGuestUpdateStatus(t *testing.T) {
	repo, _ := newGuestRepo(t)
	ctx := context.Background()

	task, err := repo.Add(ctx, models.NewTask{ID: "t1", Title: "Read ch. 3"})
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(ctx, task.ID, models.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, updated.Status)

	_, err = repo.UpdateStatus(ctx, "missing", models.TaskStatusCompleted)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGuestDelete_RemovesFromCourseIndex(t *testing.T) {
	repo, store := newGuestRepo(t)
	ctx := context.Background()

	a, err := repo.Add(ctx, models.NewTask{ID: "a", CourseID: "c1", Title: "A"})
	require.NoError(t, err)
	_, err = repo.Add(ctx, models.NewTask{ID: "b", CourseID: "c1", Title: "B"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, a.ID))

	_, err = store.Get(ctx, "task_a")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	var index []string
	require.NoError(t, kvstore.GetJSON(ctx, store, "course_c1_tasks", &index))
	assert.Equal(t, []string{"b"}, index)

	assert.ErrorIs(t, repo.Delete(ctx, "a"), ErrTaskNotFound)
}

func TestGuestUpdatePriority(t *testing.T) {
	repo, _ := newGuestRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, models.NewTask{ID: "t1", Title: "Essay"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePriority(ctx, "t1", 8.25))

	tasks, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 8.25, tasks[0].PriorityScore)
}
