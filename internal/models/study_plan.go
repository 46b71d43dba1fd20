package models

import (
	"encoding/json"
	"math"
	"time"
)

type StressLevel string

const (
	StressLow    StressLevel = "low"
	StressMedium StressLevel = "medium"
	StressHigh   StressLevel = "high"
)

// StressLevelFor derives the plan stress level from its total hours.
func StressLevelFor(totalHours float64) StressLevel {
	switch {
	case totalHours > 21:
		return StressHigh
	case totalHours > 14:
		return StressMedium
	default:
		return StressLow
	}
}

// Priority is a session priority on the 1-10 scale. Generated plans carry the
// task's float priority score, so fractional values are accepted too and
// values strictly between 0 and 1 are scaled to the 1-10 range.
type Priority int

func (p *Priority) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f > 0 && f < 1 {
		f *= 10
	}
	*p = Priority(min(max(math.Round(f), 1), 10))
	return nil
}

type StudySession struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	TaskTitle      string     `json:"task_title"`
	CourseCode     string     `json:"course_code,omitempty"`
	Day            string     `json:"day"`
	StartTime      string     `json:"start_time,omitempty"`
	EndTime        string     `json:"end_time,omitempty"`
	Priority       Priority   `json:"priority"`
	EstimatedHours float64    `json:"estimated_hours"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Reflection     string     `json:"reflection,omitempty"`
	PomodoroCount  int        `json:"pomodoro_count,omitempty"`
	ResearchTips   []string   `json:"research_tips,omitempty"`
}

// ResetCompletion scrubs every completion artifact from the session.
func (s *StudySession) ResetCompletion() {
	s.Completed = false
	s.CompletedAt = nil
	s.ActualHours = nil
	s.Reflection = ""
	s.PomodoroCount = 0
}

type StudyPlan struct {
	Sessions        []StudySession `json:"sessions"`
	TotalHours      float64        `json:"total_hours"`
	DaysPlanned     int            `json:"days_planned"`
	StressLevel     StressLevel    `json:"stress_level"`
	Recommendations []string       `json:"recommendations"`
	Warning         string         `json:"warning,omitempty"`
	NeedsMoreHours  bool           `json:"needs_more_hours,omitempty"`
	Plan            string         `json:"plan,omitempty"`
}

// Recompute rebuilds the aggregate fields from the session list.
func (p *StudyPlan) Recompute() {
	total := 0.0
	days := make(map[string]struct{})
	for _, s := range p.Sessions {
		total += s.EstimatedHours
		if s.Day != "" {
			days[s.Day] = struct{}{}
		}
	}
	// Round away float noise so add-then-remove restores the previous total.
	p.TotalHours = math.Round(total*1e6) / 1e6
	if len(days) > 0 || len(p.Sessions) == 0 {
		p.DaysPlanned = len(days)
	}
	p.StressLevel = StressLevelFor(p.TotalHours)
	if p.Recommendations == nil {
		p.Recommendations = []string{}
	}
	if p.Sessions == nil {
		p.Sessions = []StudySession{}
	}
}

// FindSession returns the index of the session with the given id, or -1.
func (p *StudyPlan) FindSession(id string) int {
	for i := range p.Sessions {
		if p.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// PlanState is the persisted plan together with its completion set.
type PlanState struct {
	Plan      *StudyPlan      `json:"plan"`
	Completed map[string]bool `json:"completed"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CompletedIDs returns the completion set as a slice.
func (s *PlanState) CompletedIDs() []string {
	ids := make([]string, 0, len(s.Completed))
	for id, done := range s.Completed {
		if done {
			ids = append(ids, id)
		}
	}
	return ids
}

type NewSessionRequest struct {
	TaskID         string   `json:"task_id"`
	TaskTitle      string   `json:"task_title"`
	CourseCode     string   `json:"course_code,omitempty"`
	Day            string   `json:"day"`
	StartTime      string   `json:"start_time,omitempty"`
	EndTime        string   `json:"end_time,omitempty"`
	Priority       int      `json:"priority"`
	EstimatedHours float64  `json:"estimated_hours"`
	ResearchTips   []string `json:"research_tips,omitempty"`
}

type GenerateStudyPlanRequest struct {
	Tasks            []Task `json:"tasks"`
	StudyHoursPerDay int    `json:"study_hours_per_day"`
	StartDate        string `json:"start_date,omitempty"`
}

// GenerateStudyPlanResponse is the backend response; Sessions is empty for the
// legacy shape that only carries the markdown Plan.
type GenerateStudyPlanResponse struct {
	Plan           string         `json:"plan"`
	TotalHours     float64        `json:"total_hours"`
	DaysPlanned    int            `json:"days_planned"`
	Warning        *string        `json:"warning"`
	NeedsMoreHours bool           `json:"needs_more_hours"`
	Sessions       []StudySession `json:"sessions"`
}
