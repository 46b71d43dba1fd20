package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
)

// GuestTaskRepo keeps tasks as task_<id> JSON records in the device store,
// with a course_<id>_tasks index per course.
type GuestTaskRepo struct {
	store   kvstore.Store
	guestID string
	log     *slog.Logger
	now     func() time.Time
}

func NewGuestTaskRepo(store kvstore.Store, guestID string, log *slog.Logger) *GuestTaskRepo {
	return &GuestTaskRepo{
		store:   store,
		guestID: guestID,
		log:     log,
		now:     time.Now,
	}
}

func (r *GuestTaskRepo) FetchAll(ctx context.Context) ([]models.Task, error) {
	keys, err := r.store.Keys(ctx, kvstore.TaskKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list task keys: %w", err)
	}

	tasks := make([]models.Task, 0, len(keys))
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}

		task, ok := sanitizeTask(raw)
		if !ok {
			r.log.Warn("skipping malformed task record", slog.String("key", key))
			continue
		}
		if task.ID == "" {
			task.ID = strings.TrimPrefix(key, kvstore.TaskKeyPrefix)
		}
		if task.UserID != "" && task.UserID != r.guestID {
			continue
		}
		tasks = append(tasks, task)
	}

	sortTasks(tasks)
	return tasks, nil
}

func (r *GuestTaskRepo) Add(ctx context.Context, in models.NewTask) (*models.Task, error) {
	now := r.now()

	task := models.Task{
		ID:              in.ID,
		UserID:          r.guestID,
		CourseID:        in.CourseID,
		Title:           in.Title,
		Description:     in.Description,
		TaskType:        in.TaskType,
		PredictedHours:  models.DefaultPredictedHours,
		WeightScore:     models.DefaultWeightScore,
		PriorityScore:   models.DefaultPriorityScore,
		GradePercentage: 0,
		Status:          models.TaskStatusPending,
		CreatedAt:       now.UTC(),
	}
	if task.ID == "" {
		task.ID = fmt.Sprintf("%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	}
	if !task.TaskType.Valid() {
		task.TaskType = models.TaskTypeAssignment
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate.UTC()
	}
	if in.PredictedHours != nil && *in.PredictedHours >= 0 {
		task.PredictedHours = *in.PredictedHours
	}
	if in.WeightScore != nil {
		task.WeightScore = *in.WeightScore
	}
	if in.PriorityScore != nil {
		task.PriorityScore = *in.PriorityScore
	}
	if in.GradePercentage != nil {
		task.GradePercentage = *in.GradePercentage
	}
	if in.Status.Valid() {
		task.Status = in.Status
	}

	if task.CourseID != "" {
		var course models.Course
		err := kvstore.GetJSON(ctx, r.store, kvstore.CourseKey(task.CourseID), &course)
		switch {
		case err == nil:
			task.CourseCode = course.Code
		case errors.Is(err, kvstore.ErrNotFound):
		default:
			r.log.Warn("unreadable course record", slog.String("course_id", task.CourseID), slog.Any("error", err))
		}
	}

	if err := kvstore.SetJSON(ctx, r.store, kvstore.TaskKey(task.ID), task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	if task.CourseID != "" {
		if err := r.updateCourseIndex(ctx, task.CourseID, func(ids []string) []string {
			if slices.Contains(ids, task.ID) {
				return ids
			}
			return append(ids, task.ID)
		}); err != nil {
			return nil, err
		}
	}

	return &task, nil
}

func (r *GuestTaskRepo) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	task, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Status = status
	if err := kvstore.SetJSON(ctx, r.store, kvstore.TaskKey(id), task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// UpdatePriority stores a recomputed priority score on the task.
func (r *GuestTaskRepo) UpdatePriority(ctx context.Context, id string, score float64) error {
	task, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	task.PriorityScore = score
	if err := kvstore.SetJSON(ctx, r.store, kvstore.TaskKey(id), task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (r *GuestTaskRepo) Delete(ctx context.Context, id string) error {
	task, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.Remove(ctx, kvstore.TaskKey(id)); err != nil {
		return fmt.Errorf("remove task: %w", err)
	}

	if task.CourseID != "" {
		return r.updateCourseIndex(ctx, task.CourseID, func(ids []string) []string {
			return slices.DeleteFunc(ids, func(v string) bool { return v == id })
		})
	}
	return nil
}

func (r *GuestTaskRepo) get(ctx context.Context, id string) (*models.Task, error) {
	raw, err := r.store.Get(ctx, kvstore.TaskKey(id))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read task %s: %w", id, err)
	}

	task, ok := sanitizeTask(raw)
	if !ok {
		return nil, fmt.Errorf("task %s is malformed", id)
	}
	if task.ID == "" {
		task.ID = id
	}
	if task.UserID != "" && task.UserID != r.guestID {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (r *GuestTaskRepo) updateCourseIndex(ctx context.Context, courseID string, fn func([]string) []string) error {
	key := kvstore.CourseTasksKey(courseID)

	var ids []string
	err := kvstore.GetJSON(ctx, r.store, key, &ids)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		r.log.Warn("resetting unreadable course index", slog.String("key", key), slog.Any("error", err))
		ids = nil
	}

	ids = fn(ids)
	if ids == nil {
		ids = []string{}
	}
	if err := kvstore.SetJSON(ctx, r.store, key, ids); err != nil {
		return fmt.Errorf("save course index: %w", err)
	}
	return nil
}

// sanitizeTask reads a stored record field by field, defaulting anything
// missing or of the wrong shape. It only fails when the record is not a JSON
// object at all.
func sanitizeTask(raw string) (models.Task, bool) {
	if !gjson.Valid(raw) {
		return models.Task{}, false
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return models.Task{}, false
	}

	task := models.Task{
		ID:              stringField(doc, "id"),
		UserID:          stringField(doc, "user_id"),
		CourseID:        stringField(doc, "course_id"),
		Title:           stringField(doc, "title"),
		Description:     stringField(doc, "description"),
		TaskType:        models.TaskType(stringField(doc, "task_type")),
		PredictedHours:  numberField(doc, "predicted_hours", models.DefaultPredictedHours),
		WeightScore:     numberField(doc, "weight_score", models.DefaultWeightScore),
		PriorityScore:   numberField(doc, "priority_score", models.DefaultPriorityScore),
		GradePercentage: numberField(doc, "grade_percentage", 0),
		CourseCode:      stringField(doc, "course_code"),
		Status:          models.TaskStatus(stringField(doc, "status")),
	}

	if !task.TaskType.Valid() {
		task.TaskType = models.TaskTypeAssignment
	}
	if !task.Status.Valid() {
		task.Status = models.TaskStatusPending
	}
	if task.PredictedHours < 0 {
		task.PredictedHours = models.DefaultPredictedHours
	}
	if due, err := models.ParseTimestamp(stringField(doc, "due_date")); err == nil {
		task.DueDate = due
	}
	if created, err := models.ParseTimestamp(stringField(doc, "created_at")); err == nil {
		task.CreatedAt = created
	}

	return task, true
}

func stringField(doc gjson.Result, path string) string {
	v := doc.Get(path)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

func numberField(doc gjson.Result, path string, def float64) float64 {
	v := doc.Get(path)
	if v.Type != gjson.Number {
		return def
	}
	return v.Num
}

// sortTasks orders pending before overdue before completed, then by due date
// with undated tasks last, then by priority score descending.
func sortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
			return ra < rb
		}
		if !a.DueDate.Equal(b.DueDate) {
			switch {
			case a.DueDate.IsZero():
				return false
			case b.DueDate.IsZero():
				return true
			}
			return a.DueDate.Before(b.DueDate)
		}
		return a.PriorityScore > b.PriorityScore
	})
}
