package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/domain"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

// Execute runs a confirmed plan against the project and returns the outcome
// message. Errors are typed: ValidationError for bad plans, NotFoundError for
// missing targets, AuthorizationError for ownership violations.
func (s *Service) Execute(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	if plan == nil || plan.Type == "" {
		return "", validationf("empty command plan")
	}
	cmdType, ok := NormalizeCommandType(plan.Type)
	if !ok {
		return "", validationf("unknown command type %q", plan.Type)
	}
	switch cmdType {
	case CmdCreateTask:
		return s.execCreateTask(ctx, project, plan, actingUserID)
	case CmdTaskUpdate:
		return s.execTaskUpdate(ctx, project, plan, actingUserID)
	case CmdTaskDelete:
		return s.execTaskDelete(ctx, project, plan, actingUserID)
	case CmdBulkUpdate:
		return s.execBulkUpdate(ctx, project, plan, actingUserID)
	case CmdBulkAssign:
		return s.execBulkAssign(ctx, project, plan, actingUserID)
	case CmdBulkDelete:
		return s.execBulkDelete(ctx, project, plan, actingUserID)
	case CmdBulkDeleteOverdue:
		return s.execBulkDeleteOverdue(ctx, project, actingUserID)
	case CmdBulkDeleteAll:
		return s.execBulkDeleteAll(ctx, project, actingUserID)
	case CmdUpdateProject:
		return s.execUpdateProject(ctx, project, plan, actingUserID)
	}
	return "", validationf("unhandled command type %q", cmdType)
}

func (s *Service) execCreateTask(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	title, _ := stringField(plan.Payload, "title", "name")
	if title == "" {
		return "", validationf("a task needs a title")
	}
	now := s.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ProjectID: project.ID,
		Title:     title,
		Status:    domain.StatusTodo,
		Priority:  domain.PriorityMedium,
		CreatorID: actingUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if v, ok := stringField(plan.Payload, "description"); ok {
		t.Description = v
	}
	// Unknown status or priority tokens silently fall back to the defaults.
	if v, ok := stringField(plan.Payload, "status"); ok {
		if st, resolved := ResolveStatus(project.Methodology, v); resolved {
			t.Status = st
		}
	}
	if v, ok := stringField(plan.Payload, "priority"); ok {
		if p, resolved := ResolvePriority(v); resolved {
			t.Priority = p
		}
	}
	if v, ok := stringField(plan.Payload, "start_date"); ok {
		t.StartDate = v
	}
	if v, ok := stringField(plan.Payload, "end_date", "due_date"); ok {
		t.EndDate = v
	}
	if v, ok := plan.Payload["milestone"].(bool); ok {
		t.Milestone = v
	}

	hint := plan.AssigneeHint
	if hint == "" {
		hint, _ = stringField(plan.Payload, "assignee")
	}
	unresolvedHint := ""
	if hint != "" {
		id, resolved, err := s.ResolveAssignee(ctx, project, hint, actingUserID)
		if err != nil {
			return "", err
		}
		if resolved {
			t.AssigneeID = &id
		} else {
			// Creation proceeds unassigned; only bulk mutations abort on an
			// unresolved assignee.
			unresolvedHint = hint
		}
	}

	id, err := s.Repo.InsertTask(ctx, t)
	if err != nil {
		return "", err
	}
	s.audit(ctx, "task.created", project.ID, "task", id, actingUserID, events.EventPayload{"title": title})

	msg := fmt.Sprintf("Created task #%d %q (%s, %s priority).", id, title, PhaseLabel(project.Methodology, t.Status), t.Priority)
	if t.AssigneeID != nil {
		if u, err := s.Repo.GetUser(ctx, *t.AssigneeID); err == nil {
			msg += fmt.Sprintf(" Assigned to %s.", u.Name)
		}
	} else if unresolvedHint != "" {
		msg += fmt.Sprintf(" I couldn't find %q in this project, so it is unassigned.", unresolvedHint)
	}
	return msg, nil
}

func (s *Service) execTaskUpdate(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	if plan.Selector <= 0 {
		return "", validationf("task update needs a task number")
	}
	t, err := s.Repo.GetTask(ctx, project.ID, plan.Selector)
	if errors.Is(err, repo.ErrNotFound) {
		return "", NotFoundError{Msg: fmt.Sprintf("task #%d does not exist in this project", plan.Selector)}
	}
	if err != nil {
		return "", err
	}
	changed, err := s.applyTaskChanges(ctx, project, &t, plan.Changes, plan.AssigneeHint, actingUserID, true)
	if err != nil {
		return "", err
	}
	if !changed {
		return fmt.Sprintf("Task #%d already matches; nothing to update.", t.ID), nil
	}
	t.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.Repo.UpdateTask(ctx, t); err != nil {
		return "", err
	}
	s.audit(ctx, "task.updated", project.ID, "task", t.ID, actingUserID, events.EventPayload{"changes": describeChanges(project.Methodology, plan.Changes, plan.AssigneeHint)})
	return fmt.Sprintf("Updated task #%d: %s.", t.ID, describeChanges(project.Methodology, plan.Changes, plan.AssigneeHint)), nil
}

func (s *Service) execTaskDelete(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	if plan.Selector <= 0 {
		return "", validationf("task delete needs a task number")
	}
	t, err := s.Repo.GetTask(ctx, project.ID, plan.Selector)
	if errors.Is(err, repo.ErrNotFound) {
		return "", NotFoundError{Msg: fmt.Sprintf("task #%d does not exist in this project", plan.Selector)}
	}
	if err != nil {
		return "", err
	}
	if err := s.Repo.DeleteTask(ctx, project.ID, t.ID); err != nil {
		return "", err
	}
	s.audit(ctx, "task.deleted", project.ID, "task", t.ID, actingUserID, events.EventPayload{"title": t.Title})
	return fmt.Sprintf("Deleted task #%d %q.", t.ID, t.Title), nil
}

func (s *Service) execBulkUpdate(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	if len(plan.Changes) == 0 && plan.AssigneeHint == "" {
		return "", validationf("bulk update needs at least one change")
	}
	tasks, err := s.matchTasks(ctx, project, filtersOf(plan), actingUserID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks matched; nothing was updated.", nil
	}
	// A rename only makes sense for a single task. Abort before touching any
	// row so an ambiguous rename leaves the board untouched.
	allowRename := false
	if _, ok := stringField(plan.Changes, "title"); ok {
		if len(tasks) > 1 {
			return "", validationf("the title change matched %d tasks; narrow the filter until exactly one remains", len(tasks))
		}
		allowRename = true
	}
	updated := 0
	for i := range tasks {
		t := tasks[i]
		changed, err := s.applyTaskChanges(ctx, project, &t, plan.Changes, plan.AssigneeHint, actingUserID, allowRename)
		if err != nil {
			return "", err
		}
		if !changed {
			continue
		}
		t.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		if err := s.Repo.UpdateTask(ctx, t); err != nil {
			s.logger().Warn("bulk update skipped task", zap.Int64("task", t.ID), zap.Error(err))
			continue
		}
		updated++
	}
	s.audit(ctx, "tasks.bulk_updated", project.ID, "task", 0, actingUserID, events.EventPayload{"matched": len(tasks), "updated": updated})
	return fmt.Sprintf("Updated %d of %d matching task(s).", updated, len(tasks)), nil
}

func (s *Service) execBulkAssign(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	hint := plan.AssigneeHint
	if hint == "" {
		hint, _ = stringField(plan.Changes, "assignee")
	}
	if hint == "" {
		return "", validationf("bulk assign needs an assignee")
	}
	assigneeID, resolved, err := s.ResolveAssignee(ctx, project, hint, actingUserID)
	if err != nil {
		return "", err
	}
	if !resolved {
		return "", validationf("%q is not the owner or a member of this project", hint)
	}
	tasks, err := s.matchTasks(ctx, project, filtersOf(plan), actingUserID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks matched; nothing was assigned.", nil
	}
	assigned := 0
	for i := range tasks {
		t := tasks[i]
		if t.AssigneeID != nil && *t.AssigneeID == assigneeID {
			continue
		}
		t.AssigneeID = &assigneeID
		t.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		if err := s.Repo.UpdateTask(ctx, t); err != nil {
			s.logger().Warn("bulk assign skipped task", zap.Int64("task", t.ID), zap.Error(err))
			continue
		}
		assigned++
	}
	u, err := s.Repo.GetUser(ctx, assigneeID)
	if err != nil {
		return "", err
	}
	s.audit(ctx, "tasks.bulk_assigned", project.ID, "task", 0, actingUserID, events.EventPayload{"assignee": assigneeID, "assigned": assigned})
	return fmt.Sprintf("Assigned %d task(s) to %s.", assigned, u.Name), nil
}

func (s *Service) execBulkDelete(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	f := filtersOf(plan)
	if f.empty() {
		return "", validationf("bulk delete needs a filter; say \"delete all tasks\" to clear the whole project")
	}
	tasks, err := s.matchTasks(ctx, project, f, actingUserID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks matched; nothing was deleted.", nil
	}
	deleted := 0
	for _, t := range tasks {
		if err := s.Repo.DeleteTask(ctx, project.ID, t.ID); err != nil {
			s.logger().Warn("bulk delete skipped task", zap.Int64("task", t.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	s.audit(ctx, "tasks.bulk_deleted", project.ID, "task", 0, actingUserID, events.EventPayload{"deleted": deleted})
	return fmt.Sprintf("Deleted %d task(s).", deleted), nil
}

// execBulkDeleteOverdue removes tasks whose due date is strictly before today
// and whose status is not done. Tasks without a parseable due date are left
// alone.
func (s *Service) execBulkDeleteOverdue(ctx context.Context, project domain.Project, actingUserID int64) (string, error) {
	tasks, err := s.Repo.SearchTasks(ctx, repo.TaskSearch{ProjectID: project.ID})
	if err != nil {
		return "", err
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	deleted := 0
	for _, t := range tasks {
		if t.Status.Terminal() || t.EndDate == "" {
			continue
		}
		due, err := parseDate(t.EndDate)
		if err != nil {
			continue
		}
		if !due.Before(today) {
			continue
		}
		if err := s.Repo.DeleteTask(ctx, project.ID, t.ID); err != nil {
			s.logger().Warn("overdue delete skipped task", zap.Int64("task", t.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	s.audit(ctx, "tasks.bulk_deleted", project.ID, "task", 0, actingUserID, events.EventPayload{"deleted": deleted, "overdue": true})
	if deleted == 0 {
		return "No overdue tasks to delete.", nil
	}
	return fmt.Sprintf("Deleted %d overdue task(s).", deleted), nil
}

func (s *Service) execBulkDeleteAll(ctx context.Context, project domain.Project, actingUserID int64) (string, error) {
	n, err := s.Repo.DeleteAllTasks(ctx, project.ID)
	if err != nil {
		return "", err
	}
	s.audit(ctx, "tasks.bulk_deleted", project.ID, "task", 0, actingUserID, events.EventPayload{"deleted": n, "all": true})
	return fmt.Sprintf("Deleted all %d task(s) in %s.", n, project.Name), nil
}

func (s *Service) execUpdateProject(ctx context.Context, project domain.Project, plan *CommandPlan, actingUserID int64) (string, error) {
	if actingUserID != project.CreatorID {
		return "", AuthorizationError{Msg: "only the project creator can update project fields"}
	}
	var upd repo.ProjectUpdate
	fields := 0
	if v, ok := stringField(plan.Updates, "name"); ok {
		upd.Name = &v
		fields++
	}
	if v, ok := stringField(plan.Updates, "description"); ok {
		upd.Description = &v
		fields++
	}
	if v, ok := stringField(plan.Updates, "start_date"); ok {
		upd.StartDate = &v
		fields++
	}
	if v, ok := stringField(plan.Updates, "end_date"); ok {
		upd.EndDate = &v
		fields++
	}
	if fields == 0 {
		return "", validationf("no updatable project fields in the request; I can change the name, description, start date and end date")
	}
	if err := s.Repo.UpdateProject(ctx, project.ID, upd); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", NotFoundError{Msg: "project not found"}
		}
		return "", err
	}
	s.audit(ctx, "project.updated", project.ID, "project", project.ID, actingUserID, events.EventPayload{"fields": fields})
	name := project.Name
	if upd.Name != nil {
		name = *upd.Name
	}
	return fmt.Sprintf("Updated project %s (%d field(s)).", name, fields), nil
}

// applyTaskChanges mutates t in memory from a changes map and returns whether
// anything changed. allowRename permits title changes; callers grant it only
// when the change targets exactly one task. An
// unresolvable assignee aborts with ValidationError; unresolvable status or
// priority tokens are skipped silently so a bulk pass does not fail halfway.
func (s *Service) applyTaskChanges(ctx context.Context, project domain.Project, t *domain.Task, changes map[string]any, assigneeHint string, actingUserID int64, allowRename bool) (bool, error) {
	changed := false
	if v, ok := stringField(changes, "title"); ok && allowRename && v != t.Title {
		t.Title = v
		changed = true
	}
	if v, ok := stringField(changes, "status"); ok {
		if st, resolved := ResolveStatus(project.Methodology, v); resolved && st != t.Status {
			t.Status = st
			changed = true
		}
	}
	if v, ok := stringField(changes, "priority"); ok {
		if p, resolved := ResolvePriority(v); resolved && p != t.Priority {
			t.Priority = p
			changed = true
		}
	}
	if v, ok := stringField(changes, "description"); ok {
		mode, _ := stringField(changes, "description_mode")
		if mode == "append" {
			if v != "" {
				if t.Description == "" {
					t.Description = v
				} else {
					t.Description = t.Description + "\n\n" + v
				}
				changed = true
			}
		} else if v != t.Description {
			t.Description = v
			changed = true
		}
	}
	if v, ok := stringField(changes, "start_date"); ok && v != t.StartDate {
		t.StartDate = v
		changed = true
	}
	if v, ok := stringField(changes, "end_date", "due_date"); ok && v != t.EndDate {
		t.EndDate = v
		changed = true
	}
	hint := assigneeHint
	if hint == "" {
		hint, _ = stringField(changes, "assignee")
	}
	if hint != "" {
		id, resolved, err := s.ResolveAssignee(ctx, project, hint, actingUserID)
		if err != nil {
			return changed, err
		}
		if !resolved {
			return changed, validationf("%q is not the owner or a member of this project", hint)
		}
		if t.AssigneeID == nil || *t.AssigneeID != id {
			t.AssigneeID = &id
			changed = true
		}
	}
	return changed, nil
}

func filtersOf(plan *CommandPlan) Filters {
	if plan.Filters == nil {
		return Filters{}
	}
	return *plan.Filters
}

// parseDate accepts the stored date-only form and full timestamps.
func parseDate(v string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", v); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}

func (s *Service) audit(ctx context.Context, evtType string, projectID int64, entityKind string, entityID, actorID int64, payload events.EventPayload) {
	id := ""
	if entityID > 0 {
		id = strconv.FormatInt(entityID, 10)
	}
	if err := s.Events.Append(ctx, evtType, projectID, entityKind, id, actorID, payload); err != nil {
		s.logger().Warn("audit append failed", zap.String("type", evtType), zap.Error(err))
	}
}
