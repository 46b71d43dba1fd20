package models

import (
	"strings"
	"time"
)

type TaskType string

const (
	TaskTypeAssignment TaskType = "Assignment"
	TaskTypeExam       TaskType = "Exam"
	TaskTypeQuiz       TaskType = "Quiz"
	TaskTypeProject    TaskType = "Project"
	TaskTypeReading    TaskType = "Reading"
	TaskTypeLab        TaskType = "Lab"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeAssignment, TaskTypeExam, TaskTypeQuiz, TaskTypeProject, TaskTypeReading, TaskTypeLab:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusOverdue   TaskStatus = "overdue"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusOverdue:
		return true
	}
	return false
}

// Rank orders statuses for task lists: pending first, completed last.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusOverdue:
		return 1
	case TaskStatusCompleted:
		return 2
	}
	return 0
}

const (
	DefaultPredictedHours = 4.0
	DefaultWeightScore    = 0.5
	DefaultPriorityScore  = 0.5
)

type Task struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id,omitempty"`
	CourseID        string     `json:"course_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	TaskType        TaskType   `json:"task_type"`
	DueDate         time.Time  `json:"due_date"`
	PredictedHours  float64    `json:"predicted_hours"`
	WeightScore     float64    `json:"weight_score"`
	PriorityScore   float64    `json:"priority_score"` // 0-1 from the backend model, 0-10 from the local fallback
	GradePercentage float64    `json:"grade_percentage"`
	CourseCode      string     `json:"course_code,omitempty"`
	Status          TaskStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewTask is the partial input accepted by addTask. Nil fields are defaulted.
type NewTask struct {
	ID              string     `json:"id,omitempty"`
	CourseID        string     `json:"course_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	TaskType        TaskType   `json:"task_type"`
	DueDate         *time.Time `json:"due_date"`
	PredictedHours  *float64   `json:"predicted_hours,omitempty"`
	WeightScore     *float64   `json:"weight_score,omitempty"`
	PriorityScore   *float64   `json:"priority_score,omitempty"`
	GradePercentage *float64   `json:"grade_percentage,omitempty"`
	Status          TaskStatus `json:"status,omitempty"`
}

type TaskList struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

type Course struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// TaskPriority is one entry of a prioritization result.
type TaskPriority struct {
	TaskID        string  `json:"task_id"`
	PriorityScore float64 `json:"priority_score"`
	Rank          int     `json:"rank"`
	Explanation   string  `json:"explanation,omitempty"`
}

type PrioritizeResult struct {
	Source     string         `json:"source"` // "backend" | "local"
	Priorities []TaskPriority `json:"priorities"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 as well as the naive ISO-8601 forms the
// backend emits. Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
