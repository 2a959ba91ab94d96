package assistant

import (
	"strings"

	"taskboard/internal/domain"
)

// PhaseLabel returns the user-facing board label for a canonical status under
// a methodology. Unknown methodologies render as kanban.
func PhaseLabel(m domain.Methodology, s domain.Status) string {
	switch m {
	case domain.MethodologyScrum:
		switch s {
		case domain.StatusTodo:
			return "Backlog"
		case domain.StatusInProgress:
			return "In Progress"
		case domain.StatusReview:
			return "Testing"
		case domain.StatusDone:
			return "Done"
		}
	case domain.MethodologyAgile:
		switch s {
		case domain.StatusTodo:
			return "To Do"
		case domain.StatusInProgress:
			return "Doing"
		case domain.StatusReview:
			return "Review"
		case domain.StatusDone:
			return "Done"
		}
	case domain.MethodologyWaterfall:
		switch s {
		case domain.StatusTodo:
			return "Requirements"
		case domain.StatusInProgress:
			return "Implementation"
		case domain.StatusReview:
			return "Verification"
		case domain.StatusDone:
			return "Delivered"
		}
	case domain.MethodologyLean:
		switch s {
		case domain.StatusTodo:
			return "Backlog"
		case domain.StatusInProgress:
			return "In Progress"
		case domain.StatusReview:
			return "Validation"
		case domain.StatusDone:
			return "Done"
		}
	}
	// kanban and anything unrecognized
	switch s {
	case domain.StatusTodo:
		return "To Do"
	case domain.StatusInProgress:
		return "In Progress"
	case domain.StatusReview:
		return "Review"
	case domain.StatusDone:
		return "Done"
	}
	return string(s)
}

// statusSynonyms are label aliases shared across methodologies. The mapping is
// lossy on purpose: several labels collapse into one canonical status.
var statusSynonyms = map[string]domain.Status{
	"pending":   domain.StatusTodo,
	"open":      domain.StatusTodo,
	"new":       domain.StatusTodo,
	"backlog":   domain.StatusTodo,
	"planned":   domain.StatusTodo,
	"wip":       domain.StatusInProgress,
	"doing":     domain.StatusInProgress,
	"started":   domain.StatusInProgress,
	"working":   domain.StatusInProgress,
	"active":    domain.StatusInProgress,
	"ongoing":   domain.StatusInProgress,
	"testing":   domain.StatusReview,
	"qa":        domain.StatusReview,
	"reviewing": domain.StatusReview,
	"verify":    domain.StatusReview,
	"complete":  domain.StatusDone,
	"completed": domain.StatusDone,
	"finished":  domain.StatusDone,
	"closed":    domain.StatusDone,
	"resolved":  domain.StatusDone,
}

// StatusForLabel maps a board label back to its canonical status under a
// methodology. Comparison runs against the methodology's own labels first so
// the round trip PhaseLabel -> StatusForLabel is identity, then against the
// shared synonym table.
func StatusForLabel(m domain.Methodology, label string) (domain.Status, bool) {
	norm := normalizeStatusToken(label)
	if norm == "" {
		return "", false
	}
	for _, s := range domain.Statuses() {
		if norm == normalizeStatusToken(PhaseLabel(m, s)) {
			return s, true
		}
	}
	if s, ok := statusSynonyms[norm]; ok {
		return s, true
	}
	return "", false
}

// normalizeStatusToken lowercases and strips separators and filler
// status-words, so "In Progress", "in-progress" and "inprogress status" all
// normalize to "inprogress".
func normalizeStatusToken(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	for _, filler := range []string{"status", "column", "phase", "state"} {
		t = strings.TrimSuffix(strings.TrimSpace(t), filler)
	}
	t = strings.TrimSpace(t)
	var b strings.Builder
	for _, r := range t {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
