package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"taskboard/internal/domain"
)

// Command types accepted by the executor. Everything the classifier or
// completion backend emits is normalized into this set before execution.
const (
	CmdCreateTask        = "create_task"
	CmdTaskUpdate        = "task_update"
	CmdTaskDelete        = "task_delete"
	CmdBulkUpdate        = "bulk_update"
	CmdBulkAssign        = "bulk_assign"
	CmdBulkDelete        = "bulk_delete"
	CmdBulkDeleteOverdue = "bulk_delete_overdue"
	CmdBulkDeleteAll     = "bulk_delete_all"
	CmdUpdateProject     = "update_project"
)

// CommandPlan is the declarative mutation proposal shown to the user before
// execution. Selector targets one task by id; Filters target a set.
type CommandPlan struct {
	Type         string         `json:"type"`
	Selector     int64          `json:"selector,omitempty"`
	Filters      *Filters       `json:"filters,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Updates      map[string]any `json:"updates,omitempty"`
	AssigneeHint string         `json:"assignee_hint,omitempty"`
}

var commandTypeSynonyms = map[string]string{
	"create":              CmdCreateTask,
	"create_task":         CmdCreateTask,
	"add_task":            CmdCreateTask,
	"new_task":            CmdCreateTask,
	"task_create":         CmdCreateTask,
	"update":              CmdTaskUpdate,
	"task_update":         CmdTaskUpdate,
	"update_task":         CmdTaskUpdate,
	"edit_task":           CmdTaskUpdate,
	"move_task":           CmdTaskUpdate,
	"change_task":         CmdTaskUpdate,
	"assign_task":         CmdTaskUpdate,
	"delete":              CmdTaskDelete,
	"task_delete":         CmdTaskDelete,
	"delete_task":         CmdTaskDelete,
	"remove_task":         CmdTaskDelete,
	"remove":              CmdTaskDelete,
	"bulk_update":         CmdBulkUpdate,
	"mass_update":         CmdBulkUpdate,
	"update_all":          CmdBulkUpdate,
	"update_tasks":        CmdBulkUpdate,
	"bulk_assign":         CmdBulkAssign,
	"assign_all":          CmdBulkAssign,
	"mass_assign":         CmdBulkAssign,
	"reassign_all":        CmdBulkAssign,
	"bulk_delete":         CmdBulkDelete,
	"delete_filtered":     CmdBulkDelete,
	"mass_delete":         CmdBulkDelete,
	"delete_tasks":        CmdBulkDelete,
	"bulk_delete_overdue": CmdBulkDeleteOverdue,
	"delete_overdue":      CmdBulkDeleteOverdue,
	"cleanup_overdue":     CmdBulkDeleteOverdue,
	"bulk_delete_all":     CmdBulkDeleteAll,
	"delete_all":          CmdBulkDeleteAll,
	"delete_all_tasks":    CmdBulkDeleteAll,
	"clear_tasks":         CmdBulkDeleteAll,
	"clear_board":         CmdBulkDeleteAll,
	"update_project":      CmdUpdateProject,
	"project_update":      CmdUpdateProject,
	"edit_project":        CmdUpdateProject,
	"rename_project":      CmdUpdateProject,
}

// NormalizeCommandType folds synonyms into the canonical command set.
func NormalizeCommandType(t string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(t))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	c, ok := commandTypeSynonyms[key]
	return c, ok
}

// PlanResult pairs a validated plan with its human preview. Plan is nil when
// the message could not be mapped to a safe command; Preview then carries the
// explanation and the caller answers informationally instead.
type PlanResult struct {
	Plan    *CommandPlan
	Preview string
}

// GeneratePlan validates and completes a classifier-proposed plan, falling
// back to heuristic parsing of the raw message when no proposal exists.
func (s *Service) GeneratePlan(ctx context.Context, project domain.Project, message string, hint *CommandPlan, actingUserID int64) (PlanResult, error) {
	plan := hint
	if plan == nil {
		plan = parsePlanHeuristic(message)
	}
	if plan == nil || plan.Type == "" {
		return PlanResult{Preview: "I couldn't map that to a project command. Try something like \"create a task called Fix login\" or \"move task #3 to done\"."}, nil
	}
	cmdType, ok := NormalizeCommandType(plan.Type)
	if !ok {
		return PlanResult{Preview: fmt.Sprintf("I don't know the command %q. I can create, update, assign and delete tasks, or update the project.", plan.Type)}, nil
	}
	plan.Type = cmdType

	// Fill gaps from the raw message so a thin backend proposal still works.
	if plan.Selector == 0 {
		if m := taskRefRe.FindStringSubmatch(message); m != nil {
			plan.Selector, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	if plan.Filters == nil {
		plan.Filters = &Filters{}
	}
	if plan.Filters.Text == "" {
		plan.Filters.Text = message
	}

	switch cmdType {
	case CmdCreateTask:
		if title, _ := stringField(plan.Payload, "title", "name"); title == "" {
			if t := extractTitle(message); t != "" {
				if plan.Payload == nil {
					plan.Payload = map[string]any{}
				}
				plan.Payload["title"] = t
			} else {
				return PlanResult{Preview: "What should the new task be called?"}, nil
			}
		}
	case CmdTaskUpdate, CmdTaskDelete:
		if plan.Selector <= 0 {
			return PlanResult{Preview: "Which task? Reference it by number, e.g. \"task #3\"."}, nil
		}
	case CmdBulkAssign:
		if plan.AssigneeHint == "" {
			plan.AssigneeHint = extractAssigneeHint(message)
		}
		if plan.AssigneeHint == "" {
			return PlanResult{Preview: "Who should those tasks be assigned to?"}, nil
		}
	case CmdBulkUpdate:
		if len(plan.Changes) == 0 {
			return PlanResult{Preview: "What should change on those tasks? E.g. \"mark all review tasks as done\"."}, nil
		}
	case CmdUpdateProject:
		if len(plan.Updates) == 0 {
			return PlanResult{Preview: "Which project field should change? I can update the name, description, start date and end date."}, nil
		}
	}

	preview, err := s.previewPlan(ctx, project, plan, actingUserID)
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{Plan: plan, Preview: preview}, nil
}

// previewPlan renders the confirmation message shown before execution.
func (s *Service) previewPlan(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	switch plan.Type {
	case CmdCreateTask:
		title, _ := stringField(plan.Payload, "title", "name")
		extras := []string{}
		if v, ok := stringField(plan.Payload, "priority"); ok {
			extras = append(extras, "priority "+v)
		}
		if v, ok := stringField(plan.Payload, "status"); ok {
			extras = append(extras, "status "+v)
		}
		if plan.AssigneeHint != "" {
			extras = append(extras, "assigned to "+plan.AssigneeHint)
		}
		if v, ok := stringField(plan.Payload, "end_date", "due_date"); ok {
			extras = append(extras, "due "+v)
		}
		msg := fmt.Sprintf("Create task %q", title)
		if len(extras) > 0 {
			msg += " (" + strings.Join(extras, ", ") + ")"
		}
		return msg + ".", nil
	case CmdTaskUpdate:
		return fmt.Sprintf("Update task #%d: %s.", plan.Selector, describeChanges(project.Methodology, plan.Changes, plan.AssigneeHint)), nil
	case CmdTaskDelete:
		return fmt.Sprintf("Delete task #%d. This cannot be undone.", plan.Selector), nil
	case CmdBulkUpdate:
		n, err := s.countMatches(ctx, project, plan, actingUserID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Update %d matching task(s): %s.", n, describeChanges(project.Methodology, plan.Changes, plan.AssigneeHint)), nil
	case CmdBulkAssign:
		n, err := s.countMatches(ctx, project, plan, actingUserID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Assign %d matching task(s) to %s.", n, plan.AssigneeHint), nil
	case CmdBulkDelete:
		n, err := s.countMatches(ctx, project, plan, actingUserID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Delete %d matching task(s). This cannot be undone.", n), nil
	case CmdBulkDeleteOverdue:
		return "Delete every overdue task that is not done. This cannot be undone.", nil
	case CmdBulkDeleteAll:
		counts, err := s.Repo.CountTasksByStatus(ctx, project.ID)
		if err != nil {
			return "", err
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		return fmt.Sprintf("Delete ALL %d task(s) in %s. This cannot be undone.", total, project.Name), nil
	case CmdUpdateProject:
		parts := make([]string, 0, len(plan.Updates))
		for _, k := range []string{"name", "description", "start_date", "end_date"} {
			if v, ok := stringField(plan.Updates, k); ok {
				parts = append(parts, fmt.Sprintf("%s to %q", strings.ReplaceAll(k, "_", " "), v))
			}
		}
		return fmt.Sprintf("Update project %s: set %s.", project.Name, strings.Join(parts, ", ")), nil
	}
	return "", validationf("unhandled command type %q", plan.Type)
}

func (s *Service) countMatches(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (int, error) {
	tasks, err := s.matchTasks(ctx, project, *plan.Filters, actingUserID)
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

func describeChanges(m domain.Methodology, changes map[string]any, assigneeHint string) string {
	var parts []string
	if v, ok := stringField(changes, "title"); ok {
		parts = append(parts, fmt.Sprintf("rename to %q", v))
	}
	if v, ok := stringField(changes, "status"); ok {
		if st, resolved := ResolveStatus(m, v); resolved {
			parts = append(parts, "status to "+PhaseLabel(m, st))
		} else {
			parts = append(parts, "status to "+v)
		}
	}
	if v, ok := stringField(changes, "priority"); ok {
		parts = append(parts, "priority to "+v)
	}
	if _, ok := stringField(changes, "description"); ok {
		if mode, _ := stringField(changes, "description_mode"); mode == "append" {
			parts = append(parts, "append to description")
		} else {
			parts = append(parts, "replace description")
		}
	}
	if v, ok := stringField(changes, "start_date"); ok {
		parts = append(parts, "start date to "+v)
	}
	if v, ok := stringField(changes, "end_date", "due_date"); ok {
		parts = append(parts, "due date to "+v)
	}
	if assigneeHint == "" {
		if v, ok := stringField(changes, "assignee"); ok {
			assigneeHint = v
		}
	}
	if assigneeHint != "" {
		parts = append(parts, "assign to "+assigneeHint)
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// stringField reads the first non-empty string under any of the keys.
func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch s := v.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s), true
				}
			case fmt.Stringer:
				return s.String(), true
			}
		}
	}
	return "", false
}

var (
	createRe   = regexp.MustCompile(`(?i)\b(?:create|add|make)\s+(?:a\s+)?(?:new\s+)?(?:task|todo|item)\b\s*(?:called|named|titled|for|to|:)?\s*(.*)`)
	assignToRe = regexp.MustCompile(`(?i)\bassign(?:ed)?\b.*?\bto\s+([@\w .'-]+)`)
	moveToRe   = regexp.MustCompile(`(?i)\b(?:move|set|mark|change)\b.*?\b(?:to|as|into)\s+([\w -]+)`)
	priorityRe = regexp.MustCompile(`(?i)\b(urgent|high|medium|low|critical|blocker|minor|trivial|p[0-3])\b(?:\s+priority)?`)
	dueRe      = regexp.MustCompile(`(?i)\b(?:due|by|before)\s+(\d{4}-\d{2}-\d{2})`)
	statusOfRe = regexp.MustCompile(`(?i)\ball\s+(?:the\s+)?([\w -]+?)\s+tasks\b`)
)

// parsePlanHeuristic builds a plan from the message alone. It is the offline
// complement of the completion backend: narrower, but deterministic.
func parsePlanHeuristic(message string) *CommandPlan {
	msg := strings.TrimSpace(message)
	lower := strings.ToLower(msg)
	plan := &CommandPlan{Filters: &Filters{Text: msg}}

	taskRef := int64(0)
	if m := taskRefRe.FindStringSubmatch(msg); m != nil {
		taskRef, _ = strconv.ParseInt(m[1], 10, 64)
	}
	bulk := strings.Contains(lower, "all ") || strings.Contains(lower, "every ") || strings.Contains(lower, " everything")

	switch {
	case createRe.MatchString(msg):
		plan.Type = CmdCreateTask
		plan.Payload = map[string]any{}
		if t := extractTitle(msg); t != "" {
			plan.Payload["title"] = t
		}
		if m := priorityRe.FindStringSubmatch(lower); m != nil {
			plan.Payload["priority"] = m[1]
		}
		if m := dueRe.FindStringSubmatch(msg); m != nil {
			plan.Payload["end_date"] = m[1]
		}
		plan.AssigneeHint = extractAssigneeHint(msg)
		if strings.Contains(lower, "milestone") {
			plan.Payload["milestone"] = true
		}
		return plan
	case strings.Contains(lower, "delete") || strings.Contains(lower, "remove") || strings.Contains(lower, "clear"):
		switch {
		case strings.Contains(lower, "overdue"):
			plan.Type = CmdBulkDeleteOverdue
		case bulk && (strings.Contains(lower, "all tasks") || strings.Contains(lower, "every task") || strings.Contains(lower, "everything")):
			if m := statusOfRe.FindStringSubmatch(lower); m != nil && m[1] != "the" {
				plan.Type = CmdBulkDelete
				plan.Filters.Status = m[1]
			} else {
				plan.Type = CmdBulkDeleteAll
			}
		case bulk:
			plan.Type = CmdBulkDelete
			if m := statusOfRe.FindStringSubmatch(lower); m != nil {
				plan.Filters.Status = m[1]
			}
		default:
			plan.Type = CmdTaskDelete
			plan.Selector = taskRef
		}
		return plan
	case strings.Contains(lower, "assign") && bulk:
		plan.Type = CmdBulkAssign
		plan.AssigneeHint = extractAssigneeHint(msg)
		if m := statusOfRe.FindStringSubmatch(lower); m != nil {
			plan.Filters.Status = m[1]
		}
		return plan
	case bulk && (strings.Contains(lower, "mark") || strings.Contains(lower, "move") || strings.Contains(lower, "set") || strings.Contains(lower, "update") || strings.Contains(lower, "change")):
		plan.Type = CmdBulkUpdate
		plan.Changes = map[string]any{}
		if m := statusOfRe.FindStringSubmatch(lower); m != nil {
			plan.Filters.Status = m[1]
		}
		if m := moveToRe.FindStringSubmatch(msg); m != nil {
			plan.Changes["status"] = strings.TrimSpace(m[1])
		}
		if m := priorityRe.FindStringSubmatch(lower); m != nil {
			plan.Changes["priority"] = m[1]
		}
		return plan
	case strings.Contains(lower, "rename") && strings.Contains(lower, "project"):
		plan.Type = CmdUpdateProject
		plan.Updates = map[string]any{}
		if m := regexp.MustCompile(`(?i)rename\s+(?:the\s+)?project\s+(?:to\s+)?(.+)`).FindStringSubmatch(msg); m != nil {
			plan.Updates["name"] = strings.Trim(strings.TrimSpace(m[1]), `"'“”`)
		}
		return plan
	case taskRef > 0:
		plan.Type = CmdTaskUpdate
		plan.Selector = taskRef
		plan.Changes = map[string]any{}
		if strings.Contains(lower, "assign") {
			plan.AssigneeHint = extractAssigneeHint(msg)
		}
		if m := moveToRe.FindStringSubmatch(msg); m != nil && plan.AssigneeHint == "" {
			plan.Changes["status"] = strings.TrimSpace(m[1])
		}
		if m := priorityRe.FindStringSubmatch(lower); m != nil {
			plan.Changes["priority"] = m[1]
		}
		if m := dueRe.FindStringSubmatch(msg); m != nil {
			plan.Changes["end_date"] = m[1]
		}
		if strings.Contains(lower, "done") || strings.Contains(lower, "complete") || strings.Contains(lower, "finish") {
			if _, ok := plan.Changes["status"]; !ok {
				plan.Changes["status"] = "done"
			}
		}
		return plan
	}
	return nil
}

// extractTitle pulls the new task title out of a create message, preferring a
// quoted phrase over the free tail after the create verb.
func extractTitle(message string) string {
	if m := quotedRe.FindStringSubmatch(message); m != nil {
		return m[1] + m[2] + m[3]
	}
	m := createRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(m[1])
	// Trailing clauses about assignment, priority or dates are not part of
	// the title.
	for _, re := range []*regexp.Regexp{assignToRe, priorityRe, dueRe} {
		if loc := re.FindStringIndex(title); loc != nil {
			title = strings.TrimSpace(title[:loc[0]])
		}
	}
	title = strings.TrimSuffix(title, " and")
	title = strings.TrimSuffix(title, " with")
	title = strings.Trim(title, `"'“”.,`)
	return strings.TrimSpace(title)
}

func extractAssigneeHint(message string) string {
	m := assignToRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	hint := strings.TrimSpace(m[1])
	// The capture is greedy across spaces; stop at clause boundaries.
	for _, stop := range []string{" and ", " with ", " due ", " by ", " priority"} {
		if i := strings.Index(strings.ToLower(hint), stop); i >= 0 {
			hint = hint[:i]
		}
	}
	return strings.Trim(strings.TrimSpace(hint), ".,")
}
