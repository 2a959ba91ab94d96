// Package assistant turns natural-language chat messages into project
// queries and confirmed command executions. The pipeline is classify,
// plan, preview, then execute only after the caller confirms.
package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

// Service is the assistant orchestrator. LLM may be nil, in which case every
// message goes through the deterministic local pipeline.
type Service struct {
	Repo   repo.Repo
	Events events.Writer
	LLM    CompletionClient
	Config *config.Config
	Logger *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, llm CompletionClient, logger *zap.Logger) *Service {
	return &Service{
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		LLM:    llm,
		Config: cfg,
		Logger: logger,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func (s *Service) temperature() float64 {
	if s.Config != nil && s.Config.Assistant.Temperature > 0 {
		return s.Config.Assistant.Temperature
	}
	return 0.2
}

func (s *Service) historyWindow() int {
	if s.Config != nil && s.Config.Assistant.HistoryWindow > 0 {
		return s.Config.Assistant.HistoryWindow
	}
	return 15
}

// Response types. Information answers stand alone; command responses carry a
// plan that the client echoes back for execution after user confirmation.
const (
	ResponseInformation = "information"
	ResponseCommand     = "command"
	ResponseError       = "error"
)

type Response struct {
	Type                 string       `json:"type" enum:"information,command,error"`
	Message              string       `json:"message"`
	CommandData          *CommandPlan `json:"command_data,omitempty"`
	RequiresConfirmation bool         `json:"requires_confirmation,omitempty"`
}

// ProcessMessage handles one user message in a session: records it, decides
// intent, and returns either an informational answer or a command preview
// awaiting confirmation. Mutation never happens here.
func (s *Service) ProcessMessage(ctx context.Context, project domain.Project, sessionID, message string, actingUserID int64) (Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Response{}, validationf("empty message")
	}
	history, err := s.Repo.RecentTurns(ctx, project.ID, sessionID, s.historyWindow())
	if err != nil {
		return Response{}, err
	}
	if err := s.recordTurn(ctx, project.ID, sessionID, "user", message); err != nil {
		return Response{}, err
	}

	resp, err := s.respond(ctx, project, message, history, actingUserID)
	if err != nil {
		return Response{}, err
	}
	if err := s.recordTurn(ctx, project.ID, sessionID, "assistant", resp.Message); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (s *Service) respond(ctx context.Context, project domain.Project, message string, history []domain.ConversationTurn, actingUserID int64) (Response, error) {
	c := s.Classify(ctx, project, message, history)
	if c.Kind == KindQuestion {
		q := c.Question
		if q == "" {
			q = message
		}
		answer, err := s.answerQuestion(ctx, project, q, actingUserID)
		if err != nil {
			return Response{}, err
		}
		return Response{Type: ResponseInformation, Message: answer}, nil
	}

	pr, err := s.GeneratePlan(ctx, project, message, c.Plan, actingUserID)
	if err != nil {
		// Plan-stage validation reads as conversation, not as a failure.
		var ve ValidationError
		if errors.As(err, &ve) {
			return Response{Type: ResponseInformation, Message: ve.Msg}, nil
		}
		return Response{}, err
	}
	if pr.Plan == nil {
		return Response{Type: ResponseInformation, Message: pr.Preview}, nil
	}
	return Response{
		Type:                 ResponseCommand,
		Message:              pr.Preview,
		CommandData:          pr.Plan,
		RequiresConfirmation: true,
	}, nil
}

// ExecuteCommand runs a confirmed plan and records the outcome in the session
// history when a session id is given.
func (s *Service) ExecuteCommand(ctx context.Context, project domain.Project, sessionID string, plan *CommandPlan, actingUserID int64) (string, error) {
	msg, err := s.Execute(ctx, project, plan, actingUserID)
	if err != nil {
		return "", err
	}
	if sessionID != "" {
		if rerr := s.recordTurn(ctx, project.ID, sessionID, "assistant", msg); rerr != nil {
			s.logger().Warn("record execution turn failed", zap.Error(rerr))
		}
	}
	return msg, nil
}

func (s *Service) recordTurn(ctx context.Context, projectID int64, sessionID, role, content string) error {
	return s.Repo.AppendTurn(ctx, domain.ConversationTurn{
		ProjectID: projectID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	})
}

// answerQuestion resolves a standalone question against project state. It
// never calls the completion backend; answers come straight from storage.
func (s *Service) answerQuestion(ctx context.Context, project domain.Project, question string, actingUserID int64) (string, error) {
	lower := strings.ToLower(question)

	if strings.Contains(lower, "member") || strings.Contains(lower, "who is on") || strings.Contains(lower, "who works on") {
		return s.describeMembers(ctx, project)
	}
	if strings.Contains(lower, "overview") || strings.Contains(lower, "summary") || strings.Contains(lower, "about this project") || strings.Contains(lower, "about the project") {
		return s.describeProject(ctx, project)
	}

	f := questionFilters(project, question, lower)
	counting := strings.Contains(lower, "how many") || strings.Contains(lower, "count")
	if counting && f.onlyStatus() {
		counts, err := s.Repo.CountTasksByStatus(ctx, project.ID)
		if err != nil {
			return "", err
		}
		if f.Status == "" {
			total := 0
			for _, n := range counts {
				total += n
			}
			return fmt.Sprintf("%s has %d task(s).", project.Name, total), nil
		}
		st, _ := ResolveStatus(project.Methodology, f.Status)
		return fmt.Sprintf("%d task(s) in %s.", counts[st], PhaseLabel(project.Methodology, st)), nil
	}

	tasks, err := s.FindTasks(ctx, project, f, actingUserID)
	if err != nil {
		return "", err
	}
	if counting {
		return fmt.Sprintf("%d matching task(s).", len(tasks)), nil
	}
	if len(tasks) == 0 {
		return "No matching tasks found.", nil
	}
	return s.formatTaskList(ctx, project, tasks), nil
}

// questionFilters derives lookup filters from question phrasing.
func questionFilters(project domain.Project, question, lower string) Filters {
	f := Filters{Text: question}
	if m := taskRefRe.FindStringSubmatch(question); m != nil {
		f.TaskID, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if strings.Contains(lower, "my task") || strings.Contains(lower, "assigned to me") || strings.Contains(lower, "am i") {
		f.Assignee = "me"
	} else if m := assignedToRe.FindStringSubmatch(question); m != nil {
		f.Assignee = strings.Trim(strings.TrimSpace(m[1]), ".,?")
	}
	if m := createdByRe.FindStringSubmatch(question); m != nil {
		f.Creator = strings.Trim(strings.TrimSpace(m[1]), ".,?")
	}
	if m := milestoneRe.FindStringSubmatch(question); m != nil {
		f.Milestone = strings.Trim(strings.TrimSpace(m[1]), ".,?\"'")
	}
	for _, p := range []string{"today", "yesterday", "tomorrow", "this week", "last week", "next week"} {
		if strings.Contains(lower, p) {
			f.Period = p
			break
		}
	}
	if f.Period != "" {
		if strings.Contains(lower, "due") || strings.Contains(lower, "deadline") {
			f.DateField = "due"
		} else {
			f.DateField = "created"
		}
	}
	// Board labels can span words ("in progress"), so match phrases against
	// the whole message before falling back to single-word synonyms.
	for _, st := range domain.Statuses() {
		if strings.Contains(lower, strings.ToLower(PhaseLabel(project.Methodology, st))) || strings.Contains(lower, string(st)) {
			f.Status = string(st)
			break
		}
	}
	if f.Status == "" {
		for _, w := range strings.Fields(lower) {
			w = strings.Trim(w, ".,?!\"'")
			if _, ok := ResolveStatus(project.Methodology, w); ok {
				f.Status = w
				break
			}
		}
	}
	return f
}

func (f Filters) onlyStatus() bool {
	return f.TaskID == 0 && f.Assignee == "" && f.Creator == "" && f.Milestone == "" && f.Period == ""
}

var (
	assignedToRe = regexp.MustCompile(`(?i)\bassigned\s+to\s+([@\w .'-]+)`)
	createdByRe  = regexp.MustCompile(`(?i)\bcreated\s+by\s+([@\w .'-]+)`)
	milestoneRe  = regexp.MustCompile(`(?i)\bmilestone\s+"?([\w -]+)"?`)
)

func (s *Service) describeMembers(ctx context.Context, project domain.Project) (string, error) {
	users, err := s.projectUsers(ctx, project)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return fmt.Sprintf("%s has no members yet.", project.Name), nil
	}
	parts := make([]string, 0, len(users))
	for _, u := range users {
		label := u.Name
		if u.ID == project.CreatorID {
			label += " (owner)"
		}
		parts = append(parts, label)
	}
	return fmt.Sprintf("%s: %s.", project.Name, strings.Join(parts, ", ")), nil
}

func (s *Service) describeProject(ctx context.Context, project domain.Project) (string, error) {
	counts, err := s.Repo.CountTasksByStatus(ctx, project.ID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s runs %s.", project.Name, project.Methodology)
	if project.Description != "" {
		fmt.Fprintf(&b, " %s.", strings.TrimSuffix(project.Description, "."))
	}
	total := 0
	var parts []string
	for _, st := range domain.Statuses() {
		total += counts[st]
		if counts[st] > 0 {
			parts = append(parts, fmt.Sprintf("%d in %s", counts[st], PhaseLabel(project.Methodology, st)))
		}
	}
	if total == 0 {
		b.WriteString(" No tasks yet.")
	} else {
		fmt.Fprintf(&b, " %d task(s): %s.", total, strings.Join(parts, ", "))
	}
	return b.String(), nil
}

func (s *Service) formatTaskList(ctx context.Context, project domain.Project, tasks []domain.Task) string {
	names := map[int64]string{}
	var b strings.Builder
	if len(tasks) == 1 {
		b.WriteString("1 task:\n")
	} else {
		fmt.Fprintf(&b, "%d tasks:\n", len(tasks))
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "- #%d %s [%s, %s]", t.ID, t.Title, PhaseLabel(project.Methodology, t.Status), t.Priority)
		if t.AssigneeID != nil {
			name, ok := names[*t.AssigneeID]
			if !ok {
				if u, err := s.Repo.GetUser(ctx, *t.AssigneeID); err == nil {
					name = u.Name
				}
				names[*t.AssigneeID] = name
			}
			if name != "" {
				fmt.Fprintf(&b, " assigned to %s", name)
			}
		}
		if t.EndDate != "" {
			fmt.Fprintf(&b, " (due %s)", t.EndDate)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
