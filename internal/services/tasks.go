package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/models"
	"scheduler-client/internal/repository"
	"scheduler-client/internal/session"
)

// AgentAPI is the opaque AI endpoint set the task service calls.
type AgentAPI interface {
	PrioritizeTasks(ctx context.Context, req apiclient.PrioritizeRequest) (json.RawMessage, error)
	ParseDocument(ctx context.Context, req apiclient.ParseDocumentRequest) (json.RawMessage, error)
}

// priorityUpdater is implemented by repos that keep scores locally.
type priorityUpdater interface {
	UpdatePriority(ctx context.Context, id string, score float64) error
}

// TaskService resolves the task backend from the stored session on every
// call, so signing in or out takes effect immediately.
type TaskService struct {
	store  kvstore.Store
	plans  *StudyPlanService
	files  *FileExtractService
	log    *slog.Logger
	now    func() time.Time
	repoFn func(sess session.Session) repository.TaskRepo
	agents func(sess session.Session) AgentAPI
}

func NewTaskService(store kvstore.Store, api *apiclient.Client, plans *StudyPlanService, files *FileExtractService, log *slog.Logger) *TaskService {
	return &TaskService{
		store: store,
		plans: plans,
		files: files,
		log:   log,
		now:   time.Now,
		repoFn: func(sess session.Session) repository.TaskRepo {
			return repository.NewTaskRepo(sess, api, store, log)
		},
		agents: func(sess session.Session) AgentAPI {
			return api.WithToken(sess.Token)
		},
	}
}

func (s *TaskService) repo(ctx context.Context) (session.Session, repository.TaskRepo, error) {
	sess, err := session.Load(ctx, s.store)
	if err != nil {
		return session.Session{}, nil, err
	}
	return sess, s.repoFn(sess), nil
}

func (s *TaskService) FetchAll(ctx context.Context) ([]models.Task, error) {
	_, repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FetchAll(ctx)
}

func (s *TaskService) Add(ctx context.Context, in models.NewTask) (*models.Task, error) {
	fields := make(map[string]string)
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		fields["title"] = "Title is required"
	}
	if in.TaskType != "" && !in.TaskType.Valid() {
		fields["task_type"] = "Unknown task type"
	}
	if in.Status != "" && !in.Status.Valid() {
		fields["status"] = "Status must be pending, completed or overdue"
	}
	if in.PredictedHours != nil && *in.PredictedHours < 0 {
		fields["predicted_hours"] = "Predicted hours cannot be negative"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	_, repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Add(ctx, in)
}

// UpdateStatus changes a task's status. Moving a task back to pending also
// scrubs completion from its study sessions.
func (s *TaskService) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "Status must be pending, completed or overdue"}}
	}

	_, repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}

	task, err := repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if status == models.TaskStatusPending {
		n, err := s.plans.ResetSessionsForTask(ctx, id)
		if err != nil {
			s.log.Error("failed to reset study sessions for task", slog.String("task_id", id), slog.Any("error", err))
		} else if n > 0 {
			s.log.Info("reset study sessions for reopened task", slog.String("task_id", id), slog.Int("sessions", n))
		}
	}

	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	_, repo, err := s.repo(ctx)
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

// Prioritize scores every open task. The backend agent is asked first; when
// it fails or returns nothing usable the local rule-based score is used.
func (s *TaskService) Prioritize(ctx context.Context) (*models.PrioritizeResult, error) {
	sess, repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}

	all, err := repo.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	open := make([]models.Task, 0, len(all))
	for _, t := range all {
		if t.Status != models.TaskStatusCompleted {
			open = append(open, t)
		}
	}

	result := &models.PrioritizeResult{Source: "backend", Priorities: []models.TaskPriority{}}
	if len(open) == 0 {
		return result, nil
	}

	raw, err := s.agents(sess).PrioritizeTasks(ctx, apiclient.PrioritizeRequest{Tasks: open, UserID: sess.UserID})
	if err == nil {
		result.Priorities = extractPriorities(raw, open)
	} else {
		s.log.Warn("prioritize agent failed, using local scores", slog.Any("error", err))
	}

	if len(result.Priorities) == 0 {
		result.Source = "local"
		result.Priorities = localPriorities(open, s.now())
	}

	if updater, ok := repo.(priorityUpdater); ok {
		for _, p := range result.Priorities {
			if err := updater.UpdatePriority(ctx, p.TaskID, p.PriorityScore); err != nil {
				s.log.Warn("failed to store priority score", slog.String("task_id", p.TaskID), slog.Any("error", err))
			}
		}
	}

	return result, nil
}

// extractPriorities reads {task_id, priority_score} pairs from the agent
// response, keeping only ids of the submitted tasks.
func extractPriorities(raw json.RawMessage, tasks []models.Task) []models.TaskPriority {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	out := make([]models.TaskPriority, 0)
	gjson.GetBytes(raw, "priorities").ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		id := item.Get("task_id").String()
		score := item.Get("priority_score")
		if !known[id] || score.Type != gjson.Number {
			return true
		}
		out = append(out, models.TaskPriority{
			TaskID:        id,
			PriorityScore: score.Num,
			Rank:          int(item.Get("rank").Int()),
			Explanation:   item.Get("explanation").String(),
		})
		return true
	})

	rankPriorities(out)
	return out
}

// Rule weights of the backend scorer; local scores are reported on 0-10.
const (
	urgencyWeight = 0.4
	gradeWeight   = 0.3
	stressWeight  = 0.2
	effortWeight  = 0.1
	defaultStress = 0.5
)

func localPriorities(tasks []models.Task, now time.Time) []models.TaskPriority {
	out := make([]models.TaskPriority, 0, len(tasks))
	for _, t := range tasks {
		urgency := urgencyFor(t.DueDate, now)
		effort := math.Min(t.PredictedHours/20, 1)
		score := urgency*urgencyWeight + t.GradePercentage/100*gradeWeight + defaultStress*stressWeight + effort*effortWeight
		score = math.Round(math.Min(score, 1)*1000) / 100

		out = append(out, models.TaskPriority{
			TaskID:        t.ID,
			PriorityScore: score,
			Explanation:   fmt.Sprintf("urgency %.2f, grade %.0f%%, effort %.1fh", urgency, t.GradePercentage, t.PredictedHours),
		})
	}
	rankPriorities(out)
	return out
}

func urgencyFor(due, now time.Time) float64 {
	if due.IsZero() {
		return 0.3
	}
	days := math.Floor(due.Sub(now).Hours() / 24)
	switch {
	case days < 0:
		return 1.0
	case days <= 1:
		return 0.95
	case days <= 3:
		return 0.85
	case days <= 7:
		return 0.7
	case days <= 14:
		return 0.5
	default:
		return 0.3
	}
}

func rankPriorities(ps []models.TaskPriority) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].PriorityScore > ps[j].PriorityScore })
	for i := range ps {
		ps[i].Rank = i + 1
	}
}

// ImportDocument extracts text from a syllabus upload, has the backend find
// the tasks in it and adds each one. Tasks the backend returns without a
// title are skipped.
func (s *TaskService) ImportDocument(ctx context.Context, filename string, data []byte, courseID string) ([]models.Task, error) {
	if !s.files.SupportedExtension(filename) {
		return nil, &ValidationError{Fields: map[string]string{"file": "Only .pdf, .docx, .txt and .md files can be imported"}}
	}

	text, err := s.files.Extract(filename, data)
	if err != nil {
		return nil, err
	}

	sess, repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.agents(sess).ParseDocument(ctx, apiclient.ParseDocumentRequest{
		Text:       text,
		SourceType: sourceType(filename),
		UserID:     sess.UserID,
		CourseID:   courseID,
	})
	if err != nil {
		return nil, err
	}
	if ok := gjson.GetBytes(raw, "success"); ok.Exists() && !ok.Bool() {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = "Document could not be parsed"
		}
		return nil, &ValidationError{Fields: map[string]string{"file": msg}}
	}

	created := make([]models.Task, 0)
	var errs []error
	gjson.GetBytes(raw, "tasks").ForEach(func(_, item gjson.Result) bool {
		in, ok := importedTask(item, courseID)
		if !ok {
			return true
		}
		task, err := repo.Add(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("add %q: %w", in.Title, err))
			return true
		}
		created = append(created, *task)
		return true
	})

	if len(created) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		s.log.Warn("skipped imported task", slog.Any("error", err))
	}
	return created, nil
}

func importedTask(item gjson.Result, courseID string) (models.NewTask, bool) {
	title := strings.TrimSpace(item.Get("title").String())
	if title == "" {
		return models.NewTask{}, false
	}

	in := models.NewTask{
		CourseID:    courseID,
		Title:       title,
		Description: item.Get("description").String(),
		TaskType:    models.TaskType(item.Get("task_type").String()),
	}
	if !in.TaskType.Valid() {
		in.TaskType = models.TaskTypeAssignment
	}
	if due, err := models.ParseTimestamp(item.Get("due_date").String()); err == nil {
		in.DueDate = &due
	}
	if g := item.Get("grade_percentage"); g.Type == gjson.Number {
		v := g.Num
		in.GradePercentage = &v
	}
	for _, key := range []string{"predicted_hours", "estimated_hours"} {
		if h := item.Get(key); h.Type == gjson.Number && h.Num >= 0 {
			v := h.Num
			in.PredictedHours = &v
			break
		}
	}
	return in, true
}

func sourceType(filename string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return "pdf"
	case strings.HasSuffix(name, ".docx"):
		return "docx"
	default:
		return "document"
	}
}
