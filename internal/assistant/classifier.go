package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"taskboard/internal/domain"
)

const (
	KindQuestion = "question"
	KindCommand  = "command"
)

// Classification is the intent decision for one message. For questions the
// Question field carries the possibly-rephrased standalone form; for commands
// Plan carries the backend-proposed plan, which the planner still validates.
type Classification struct {
	Kind     string       `json:"intent"`
	Question string       `json:"question,omitempty"`
	Plan     *CommandPlan `json:"command,omitempty"`
}

const classifySystemPrompt = `You are the assistant for a project management tool. Decide whether the user's message is a question about the project or a command that mutates it.

Respond with a single JSON object:
{"intent":"question","question":"<the question rephrased as a standalone question, resolving pronouns from the conversation>"}
or
{"intent":"command","command":{"type":"<create_task|task_update|task_delete|bulk_update|bulk_assign|bulk_delete|bulk_delete_overdue|bulk_delete_all|update_project>","selector":<task id or 0>,"filters":{"status":"...","assignee":"...","creator":"...","milestone":"...","period":"...","keywords":[...]},"payload":{...},"changes":{...},"updates":{...},"assignee_hint":"..."}}

payload is for create_task (title, description, status, priority, start_date, end_date, milestone). changes is for task_update and bulk_update. updates is for update_project (name, description, start_date, end_date). Dates are YYYY-MM-DD. Omit fields you are not sure about; never invent task ids.`

// Classify decides the intent of a message. The completion backend is asked
// first when configured; on any backend failure the deterministic local rules
// take over, so classification never fails outright.
func (s *Service) Classify(ctx context.Context, project domain.Project, message string, history []domain.ConversationTurn) Classification {
	if s.LLM != nil {
		c, err := s.classifyLLM(ctx, project, message, history)
		if err == nil {
			return c
		}
		s.logger().Warn("assistant classify fallback", zap.Int64("project", project.ID), zap.Error(err))
	}
	return classifyLocal(message, history)
}

func (s *Service) classifyLLM(ctx context.Context, project domain.Project, message string, history []domain.ConversationTurn) (Classification, error) {
	msgs := []Message{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "system", Content: s.projectSnapshot(ctx, project)},
	}
	for _, t := range history {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, Message{Role: "user", Content: message})

	raw, err := s.LLM.Complete(ctx, CompletionRequest{
		Messages:    msgs,
		Temperature: s.temperature(),
		JSONMode:    true,
	})
	if err != nil {
		return Classification{}, UpstreamError{Err: err}
	}
	var c Classification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &c); err != nil {
		return Classification{}, upstreamf("decode classification: %v", err)
	}
	switch c.Kind {
	case KindQuestion:
		if c.Question == "" {
			c.Question = message
		}
		c.Plan = nil
		return c, nil
	case KindCommand:
		if c.Plan == nil {
			return Classification{}, upstreamf("command intent without a plan")
		}
		return c, nil
	}
	return Classification{}, upstreamf("unknown intent %q", c.Kind)
}

// projectSnapshot gives the backend enough context to resolve names and
// labels without leaking other projects.
func (s *Service) projectSnapshot(ctx context.Context, project domain.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s (id %d), methodology %s.", project.Name, project.ID, project.Methodology)
	if users, err := s.projectUsers(ctx, project); err == nil && len(users) > 0 {
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, fmt.Sprintf("%s (id %d)", u.Name, u.ID))
		}
		fmt.Fprintf(&b, " People: %s.", strings.Join(names, ", "))
	}
	if counts, err := s.Repo.CountTasksByStatus(ctx, project.ID); err == nil && len(counts) > 0 {
		parts := make([]string, 0, 4)
		for _, st := range domain.Statuses() {
			if counts[st] > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", counts[st], PhaseLabel(project.Methodology, st)))
			}
		}
		fmt.Fprintf(&b, " Tasks: %s.", strings.Join(parts, ", "))
	}
	return b.String()
}

// extractJSON trims prose or code fences around the first top-level JSON
// object. Backends in JSON mode should not need this but cheaper models wrap
// anyway.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

var (
	strongVerbRe = regexp.MustCompile(`(?i)\b(create|add|make|new|delete|remove|drop|clear|update|change|move|set|mark|rename|assign|reassign|complete|finish|close|reopen)\b`)
	questionRe   = regexp.MustCompile(`(?i)^(what|what's|whats|who|who's|whos|whom|whose|when|where|which|how|why|is|are|am|was|were|do|does|did|can|could|would|should|show|list|find|display|tell|give|get|any|count)\b`)
	followUpRe   = regexp.MustCompile(`(?i)^(and|also|what about|how about|their|its|it|that one|those)\b`)
	taskRefRe    = regexp.MustCompile(`(?i)(?:#|task\s+#?)(\d+)`)
)

// classifyLocal is the deterministic fallback: a small rule cascade that
// never errors. Question-shaped openers win unless a mutating verb is
// present; short pronoun-heavy fragments are treated as follow-ups to the
// recent turns.
func classifyLocal(message string, history []domain.ConversationTurn) Classification {
	msg := strings.TrimSpace(message)
	lower := strings.ToLower(msg)

	questionShaped := questionRe.MatchString(lower) || strings.HasSuffix(lower, "?") ||
		strings.Contains(lower, "how many") || strings.Contains(lower, "status of")
	hasVerb := strongVerbRe.MatchString(lower)

	if questionShaped && !hasVerb {
		return Classification{Kind: KindQuestion, Question: rephraseFollowUp(msg, history)}
	}
	if hasVerb {
		return Classification{Kind: KindCommand, Plan: parsePlanHeuristic(msg)}
	}
	if isFollowUp(lower) {
		return Classification{Kind: KindQuestion, Question: rephraseFollowUp(msg, history)}
	}
	// Last resort: a few phrasings read as questions even without the usual
	// opener. Anything else is a command attempt; execution is confirmation
	// gated, so a stray command still just produces a preview.
	for _, cue := range []string{"how many", "what is", "who is", "members", "overview", "assigned to", "their", "they"} {
		if strings.Contains(lower, cue) {
			return Classification{Kind: KindQuestion, Question: rephraseFollowUp(msg, history)}
		}
	}
	return Classification{Kind: KindCommand, Plan: parsePlanHeuristic(msg)}
}

func isFollowUp(lower string) bool {
	if followUpRe.MatchString(lower) {
		return true
	}
	return len(lower) < 25 && !strings.Contains(lower, "#")
}

// rephraseFollowUp expands a pronoun-heavy fragment into a standalone
// question using the most recent task reference in the last few turns. With
// no usable referent the message passes through unchanged.
func rephraseFollowUp(message string, history []domain.ConversationTurn) string {
	if !isFollowUp(strings.ToLower(message)) {
		return message
	}
	ref := lastTaskRef(history)
	if ref == "" {
		return message
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "assign"):
		return fmt.Sprintf("Who is assigned to %s?", ref)
	case strings.Contains(lower, "status"):
		return fmt.Sprintf("What is the status of %s?", ref)
	case strings.Contains(lower, "due") || strings.Contains(lower, "deadline"):
		return fmt.Sprintf("When is %s due?", ref)
	}
	return fmt.Sprintf("%s (regarding %s)", message, ref)
}

// lastTaskRef scans the last four turns, newest first, for a task reference.
func lastTaskRef(history []domain.ConversationTurn) string {
	start := len(history) - 4
	if start < 0 {
		start = 0
	}
	for i := len(history) - 1; i >= start; i-- {
		if m := taskRefRe.FindStringSubmatch(history[i].Content); m != nil {
			return "task #" + m[1]
		}
	}
	return ""
}
