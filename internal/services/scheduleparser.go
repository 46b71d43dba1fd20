package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"scheduler-client/internal/models"
)

var (
	dayHeaderPattern  = regexp.MustCompile(`^##\s*Day\s+(\d+):\s*(.+)$`)
	summaryPattern    = regexp.MustCompile(`(?i)^##\s*Summary\b`)
	timeRangePattern  = regexp.MustCompile(`(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})`)
	priorityMarker    = regexp.MustCompile(`(?i)\(Priority:`)
	priorityPattern   = regexp.MustCompile(`(?i)\(Priority:\s*(\d+)`)
	durationPattern   = regexp.MustCompile(`-\s*(\d+(?:\.\d+)?)\s*h(?:ours?|rs?)?\s*$`)
	summaryStatFilter = []func(string) bool{
		func(l string) bool { return strings.Contains(l, "total") && strings.Contains(l, "hour") },
		func(l string) bool { return strings.Contains(l, "tasks covered") },
		func(l string) bool { return strings.Contains(l, "task count") },
		func(l string) bool { return strings.HasPrefix(l, "study sessions:") },
	}
)

var dayLayouts = []string{
	time.DateOnly,
	"Monday, January 2, 2006",
	"Monday, Jan 2, 2006",
	"Mon, January 2, 2006",
	"Mon, Jan 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

const (
	defaultSessionPriority = 5
	defaultSessionHours    = 1.0
)

// ParseSchedule turns the markdown schedule of the older generate response
// into a plan. Bullets without a time range or without a "(Priority:" marker
// are dropped.
func ParseSchedule(text string) *models.StudyPlan {
	plan := &models.StudyPlan{Plan: text}

	currentDay := ""
	inSummary := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "##") {
			if m := dayHeaderPattern.FindStringSubmatch(line); m != nil {
				currentDay = normalizeDay(m[2])
				inSummary = false
				continue
			}
			inSummary = summaryPattern.MatchString(line)
			continue
		}

		content, ok := bulletContent(line)
		if !ok {
			continue
		}

		if inSummary {
			if rec := summaryRecommendation(content); rec != "" {
				plan.Recommendations = append(plan.Recommendations, rec)
			}
			continue
		}

		session, ok := parseSessionLine(content)
		if !ok {
			continue
		}
		session.ID = fmt.Sprintf("session-%d", len(plan.Sessions))
		session.Day = currentDay
		plan.Sessions = append(plan.Sessions, session)
	}

	plan.Recompute()
	return plan
}

// PlanFromGenerateResponse prefers the structured sessions of the newer
// response shape and falls back to parsing the markdown.
func PlanFromGenerateResponse(resp *models.GenerateStudyPlanResponse) *models.StudyPlan {
	var plan *models.StudyPlan
	if len(resp.Sessions) == 0 {
		plan = ParseSchedule(resp.Plan)
	} else {
		parsed := ParseSchedule(resp.Plan)
		plan = &models.StudyPlan{
			Sessions:        make([]models.StudySession, len(resp.Sessions)),
			Recommendations: parsed.Recommendations,
			Plan:            resp.Plan,
		}
		for i, s := range resp.Sessions {
			if s.ID == "" {
				s.ID = fmt.Sprintf("session-%d", i)
			}
			if s.Priority == 0 {
				s.Priority = defaultSessionPriority
			}
			plan.Sessions[i] = s
		}
		plan.Recompute()
	}

	if resp.Warning != nil {
		plan.Warning = *resp.Warning
	}
	plan.NeedsMoreHours = resp.NeedsMoreHours
	if plan.DaysPlanned == 0 {
		plan.DaysPlanned = resp.DaysPlanned
	}
	return plan
}

func bulletContent(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return "", false
}

func parseSessionLine(content string) (models.StudySession, bool) {
	tr := timeRangePattern.FindStringSubmatchIndex(content)
	if tr == nil {
		return models.StudySession{}, false
	}
	rest := content[tr[1]:]

	marker := priorityMarker.FindStringIndex(rest)
	if marker == nil {
		return models.StudySession{}, false
	}
	title := strings.ReplaceAll(rest[:marker[0]], "**", "")
	title = strings.Trim(title, " \t-:–—")
	if title == "" {
		return models.StudySession{}, false
	}

	session := models.StudySession{
		TaskTitle:      title,
		StartTime:      content[tr[2]:tr[3]],
		EndTime:        content[tr[4]:tr[5]],
		Priority:       defaultSessionPriority,
		EstimatedHours: defaultSessionHours,
	}

	if m := priorityPattern.FindStringSubmatch(rest); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			session.Priority = models.Priority(min(max(p, 1), 10))
		}
	}
	if m := durationPattern.FindStringSubmatch(rest); m != nil {
		if h, err := strconv.ParseFloat(m[1], 64); err == nil && h > 0 {
			session.EstimatedHours = h
		}
	}

	return session, true
}

func summaryRecommendation(content string) string {
	rec := strings.TrimSpace(strings.ReplaceAll(content, "**", ""))
	if rec == "" {
		return ""
	}
	lower := strings.ToLower(rec)
	for _, isStat := range summaryStatFilter {
		if isStat(lower) {
			return ""
		}
	}
	return rec
}

// normalizeDay rewrites recognised dates as YYYY-MM-DD and keeps anything else
// as written.
func normalizeDay(raw string) string {
	day := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, day); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return day
}
