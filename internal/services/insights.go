package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"scheduler-client/internal/models"
)

const maxResearchTips = 5

// InsightsService produces research tips for study sessions, from Gemini
// when an API key is configured and from a built-in list otherwise.
type InsightsService struct {
	client   *genai.Client
	generate func(ctx context.Context, prompt string) (string, error)
	plans    *StudyPlanService
	rateChan chan struct{}
	log      *slog.Logger
}

func NewInsightsService(ctx context.Context, apiKey, modelName string, concurrentReqs int, plans *StudyPlanService, log *slog.Logger) (*InsightsService, error) {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	s := &InsightsService{
		plans:    plans,
		rateChan: make(chan struct{}, concurrentReqs),
		log:      log,
	}
	for i := 0; i < concurrentReqs; i++ {
		s.rateChan <- struct{}{}
	}

	if apiKey == "" {
		log.Info("GEMINI_API_KEY not set, research tips use the built-in list")
		return s, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)

	s.client = client
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("Gemini API error: %w", err)
		}
		return extractText(resp), nil
	}
	return s, nil
}

func (s *InsightsService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// AttachResearchTips generates tips for the session and stores them on it.
func (s *InsightsService) AttachResearchTips(ctx context.Context, sessionID string) (*models.StudySession, error) {
	state, err := s.plans.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := state.Plan.FindSession(sessionID)
	if idx < 0 {
		return nil, ErrSessionNotFound
	}

	tips := s.Tips(ctx, state.Plan.Sessions[idx])
	return s.plans.SetResearchTips(ctx, sessionID, tips)
}

// Tips never fails: model errors fall back to the built-in list.
func (s *InsightsService) Tips(ctx context.Context, session models.StudySession) []string {
	if s.generate != nil {
		tips, err := s.modelTips(ctx, session)
		if err == nil && len(tips) > 0 {
			return tips
		}
		s.log.Warn("research tips from Gemini unavailable, using built-in tips",
			slog.String("session_id", session.ID), slog.Any("error", err))
	}
	return builtinTips(inferTaskType(session.TaskTitle))
}

func (s *InsightsService) modelTips(ctx context.Context, session models.StudySession) ([]string, error) {
	select {
	case <-s.rateChan:
		defer func() { s.rateChan <- struct{}{} }()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timeout waiting for Gemini rate slot")
	}

	raw, err := s.generate(ctx, buildTipsPrompt(session))
	if err != nil {
		return nil, err
	}
	return parseTips(raw), nil
}

func buildTipsPrompt(session models.StudySession) string {
	var b strings.Builder
	b.WriteString("You are an academic study coach. Suggest up to 3 concise, evidence-based study techniques ")
	b.WriteString("for the following study session. Each tip must be one sentence.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", session.TaskTitle)
	if session.CourseCode != "" {
		fmt.Fprintf(&b, "Course: %s\n", session.CourseCode)
	}
	fmt.Fprintf(&b, "Planned duration: %.1f hours\n", session.EstimatedHours)
	fmt.Fprintf(&b, "Priority: %d/10\n\n", session.Priority)
	b.WriteString(`Respond with a JSON array of strings only, for example ["tip one", "tip two"].`)
	return b.String()
}

func parseTips(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var tips []string
	if err := json.Unmarshal([]byte(raw), &tips); err != nil {
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start < 0 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &tips); err != nil {
			return nil
		}
	}

	out := make([]string, 0, len(tips))
	for _, tip := range tips {
		if tip = strings.TrimSpace(tip); tip != "" {
			out = append(out, tip)
		}
		if len(out) == maxResearchTips {
			break
		}
	}
	return out
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}

func inferTaskType(title string) models.TaskType {
	lower := strings.ToLower(title)
	for _, c := range []struct {
		word string
		typ  models.TaskType
	}{
		{"exam", models.TaskTypeExam},
		{"midterm", models.TaskTypeExam},
		{"final", models.TaskTypeExam},
		{"quiz", models.TaskTypeQuiz},
		{"project", models.TaskTypeProject},
		{"read", models.TaskTypeReading},
		{"chapter", models.TaskTypeReading},
		{"lab", models.TaskTypeLab},
	} {
		if strings.Contains(lower, c.word) {
			return c.typ
		}
	}
	return models.TaskTypeAssignment
}

func builtinTips(t models.TaskType) []string {
	switch t {
	case models.TaskTypeExam, models.TaskTypeQuiz:
		return []string{
			"Use active recall: close your notes and write down everything you remember before checking.",
			"Space your reviews over several days instead of cramming in one sitting.",
			"Do timed practice questions under exam conditions.",
		}
	case models.TaskTypeReading:
		return []string{
			"Skim headings and summaries first, then read with specific questions in mind.",
			"After each section, summarise the main idea in one sentence without looking.",
			"Connect new concepts to examples you already know.",
		}
	case models.TaskTypeProject, models.TaskTypeLab:
		return []string{
			"Break the work into milestones and finish the riskiest part first.",
			"Keep a running log of decisions and results as you go.",
			"Review the rubric or lab handout before starting each session.",
		}
	default:
		return []string{
			"Outline your answer before writing to keep the structure clear.",
			"Work in focused 25-minute blocks with short breaks.",
			"Leave time at the end of the session to review against the requirements.",
		}
	}
}
