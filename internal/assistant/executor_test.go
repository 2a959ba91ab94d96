package assistant

import (
	"context"
	"strings"
	"testing"

	"taskboard/internal/domain"
)

func TestExecuteCreateTaskDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:    CmdCreateTask,
		Payload: map[string]any{"title": "Ship beta", "status": "sideways", "priority": "whenever"},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "Ship beta") {
		t.Fatalf("message %q", msg)
	}
	task, err := f.svc.Repo.GetTask(ctx, f.project.ID, 1)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	// Unknown tokens fall back silently.
	if task.Status != domain.StatusTodo || task.Priority != domain.PriorityMedium {
		t.Fatalf("got %s/%s, want todo/medium defaults", task.Status, task.Priority)
	}
	if task.CreatorID != f.alice.ID {
		t.Fatalf("creator = %d", task.CreatorID)
	}
}

func TestExecuteCreateTaskMissingTitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.project, &CommandPlan{Type: CmdCreateTask}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExecuteCreateTaskUnresolvedAssigneeStaysUnassigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:         CmdCreateTask,
		Payload:      map[string]any{"title": "Plan retro"},
		AssigneeHint: "zelda",
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	task, _ := f.svc.Repo.GetTask(ctx, f.project.ID, 1)
	if task.AssigneeID != nil {
		t.Fatalf("task assigned to %d despite unresolved hint", *task.AssigneeID)
	}
	if !strings.Contains(msg, "unassigned") {
		t.Fatalf("message %q should mention the unresolved assignee", msg)
	}
}

func TestExecuteCreateTaskResolvesAssigneeAndLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Scrum relabels todo as Backlog in the outcome message.
	scrum := f.project
	scrum.Methodology = domain.MethodologyScrum

	msg, err := f.svc.Execute(ctx, scrum, &CommandPlan{
		Type:         CmdCreateTask,
		Payload:      map[string]any{"title": "Groom backlog"},
		AssigneeHint: "bob",
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "Backlog") || !strings.Contains(msg, "Bob Stone") {
		t.Fatalf("message %q", msg)
	}
	task, _ := f.svc.Repo.GetTask(ctx, f.project.ID, 1)
	if task.AssigneeID == nil || *task.AssigneeID != f.bob.ID {
		t.Fatalf("assignee = %v, want bob", task.AssigneeID)
	}
}

func TestExecuteTaskUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, domain.Task{Title: "Fix login", Description: "Initial notes"})

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:     CmdTaskUpdate,
		Selector: task.ID,
		Changes: map[string]any{
			"status":           "wip",
			"priority":         "critical",
			"description":      "Blocked on SSO",
			"description_mode": "append",
		},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, _ := f.svc.Repo.GetTask(ctx, f.project.ID, task.ID)
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Priority != domain.PriorityUrgent {
		t.Fatalf("priority = %s", got.Priority)
	}
	if got.Description != "Initial notes\n\nBlocked on SSO" {
		t.Fatalf("description = %q, want append", got.Description)
	}
	if got.UpdatedAt == task.UpdatedAt {
		t.Fatalf("updated_at not bumped")
	}
}

func TestExecuteTaskUpdateRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, domain.Task{Title: "Old name"})

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type: CmdTaskUpdate, Selector: task.ID,
		Changes: map[string]any{"title": "New name"},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, _ := f.svc.Repo.GetTask(ctx, f.project.ID, task.ID)
	if got.Title != "New name" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestExecuteTaskUpdateNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.project, &CommandPlan{
		Type: CmdTaskUpdate, Selector: 99, Changes: map[string]any{"status": "done"},
	}, f.alice.ID)
	if _, ok := err.(NotFoundError); !ok {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestExecuteTaskUpdateUnresolvedAssigneeAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, domain.Task{Title: "Fix login"})

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type: CmdTaskUpdate, Selector: task.ID,
		Changes:      map[string]any{"status": "done"},
		AssigneeHint: "zelda",
	}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	got, _ := f.svc.Repo.GetTask(ctx, f.project.ID, task.ID)
	if got.Status != domain.StatusTodo {
		t.Fatalf("status mutated to %s despite aborted update", got.Status)
	}
}

func TestExecuteTaskDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, domain.Task{Title: "Scrap me"})

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{Type: CmdTaskDelete, Selector: task.ID}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "Scrap me") {
		t.Fatalf("message %q", msg)
	}
	if _, err := f.svc.Repo.GetTask(ctx, f.project.ID, task.ID); err == nil {
		t.Fatalf("task still present")
	}

	_, err = f.svc.Execute(ctx, f.project, &CommandPlan{Type: CmdTaskDelete, Selector: task.ID}, f.alice.ID)
	if _, ok := err.(NotFoundError); !ok {
		t.Fatalf("second delete err = %v, want NotFoundError", err)
	}
}

func TestExecuteBulkUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A", Status: domain.StatusReview})
	f.addTask(t, domain.Task{Title: "B", Status: domain.StatusReview})
	f.addTask(t, domain.Task{Title: "C", Status: domain.StatusTodo})

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:    CmdBulkUpdate,
		Filters: &Filters{Status: "review"},
		Changes: map[string]any{"status": "done"},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "2") {
		t.Fatalf("message %q, want 2 updates", msg)
	}
	counts, _ := f.svc.Repo.CountTasksByStatus(ctx, f.project.ID)
	if counts[domain.StatusDone] != 2 || counts[domain.StatusTodo] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestExecuteBulkUpdateRenamesSingleMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, domain.Task{Title: "Old", Status: domain.StatusReview})
	f.addTask(t, domain.Task{Title: "Other", Status: domain.StatusTodo})

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:    CmdBulkUpdate,
		Filters: &Filters{Status: "review"},
		Changes: map[string]any{"title": "New name"},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, _ := f.svc.Repo.GetTask(ctx, f.project.ID, task.ID)
	if got.Title != "New name" {
		t.Fatalf("title = %q, want rename applied to the single match", got.Title)
	}
}

func TestExecuteBulkUpdateAmbiguousRenameAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A", Status: domain.StatusTodo})
	f.addTask(t, domain.Task{Title: "B", Status: domain.StatusTodo})

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:    CmdBulkUpdate,
		Filters: &Filters{Status: "todo"},
		Changes: map[string]any{"title": "Same", "priority": "high"},
	}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError for ambiguous rename", err)
	}
	tasks, _ := f.svc.matchTasks(ctx, f.project, Filters{Status: "todo"}, f.alice.ID)
	for _, task := range tasks {
		if task.Title == "Same" {
			t.Fatalf("task #%d renamed despite ambiguous rename", task.ID)
		}
		if task.Priority != domain.PriorityMedium {
			t.Fatalf("task #%d mutated despite aborted bulk update", task.ID)
		}
	}
}

func TestExecuteBulkAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A", Status: domain.StatusTodo})
	f.addTask(t, domain.Task{Title: "B", Status: domain.StatusTodo})
	f.addTask(t, domain.Task{Title: "C", Status: domain.StatusDone})

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:         CmdBulkAssign,
		Filters:      &Filters{Status: "todo"},
		AssigneeHint: "bob",
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "Bob Stone") {
		t.Fatalf("message %q", msg)
	}
	tasks, _ := f.svc.matchTasks(ctx, f.project, Filters{Status: "todo"}, f.alice.ID)
	for _, task := range tasks {
		if task.AssigneeID == nil || *task.AssigneeID != f.bob.ID {
			t.Fatalf("task #%d not assigned to bob", task.ID)
		}
	}
	done, _ := f.svc.Repo.GetTask(ctx, f.project.ID, 3)
	if done.AssigneeID != nil {
		t.Fatalf("filter leaked onto done task")
	}
}

func TestExecuteBulkAssignUnresolvedAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A"})

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:         CmdBulkAssign,
		Filters:      &Filters{Status: "todo"},
		AssigneeHint: "carol",
	}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError for non-member", err)
	}
	task, _ := f.svc.Repo.GetTask(ctx, f.project.ID, 1)
	if task.AssigneeID != nil {
		t.Fatalf("task assigned despite aborted bulk assign")
	}
}

func TestExecuteBulkDeleteRequiresFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.project, &CommandPlan{Type: CmdBulkDelete}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExecuteBulkDeleteByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A", Status: domain.StatusDone})
	f.addTask(t, domain.Task{Title: "B", Status: domain.StatusDone})
	f.addTask(t, domain.Task{Title: "C", Status: domain.StatusTodo})

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:    CmdBulkDelete,
		Filters: &Filters{Status: "done"},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "2") {
		t.Fatalf("message %q", msg)
	}
	counts, _ := f.svc.Repo.CountTasksByStatus(ctx, f.project.ID)
	if counts[domain.StatusDone] != 0 || counts[domain.StatusTodo] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestExecuteBulkDeleteOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Clock is 2025-03-12.
	f.addTask(t, domain.Task{Title: "OverdueOpen", EndDate: "2025-03-01"})
	f.addTask(t, domain.Task{Title: "OverdueDone", EndDate: "2025-03-01", Status: domain.StatusDone})
	f.addTask(t, domain.Task{Title: "DueToday", EndDate: "2025-03-12"})
	f.addTask(t, domain.Task{Title: "NoDueDate"})
	f.addTask(t, domain.Task{Title: "BadDate", EndDate: "soonish"})

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{Type: CmdBulkDeleteOverdue}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "1") {
		t.Fatalf("message %q, want exactly one deletion", msg)
	}
	remaining, _ := f.svc.Repo.SearchTasks(ctx, searchAll(f.project.ID))
	if len(remaining) != 4 {
		t.Fatalf("%d tasks remain, want 4", len(remaining))
	}
	for _, task := range remaining {
		if task.Title == "OverdueOpen" {
			t.Fatalf("overdue open task survived")
		}
	}
}

func TestExecuteBulkDeleteAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A"})
	f.addTask(t, domain.Task{Title: "B"})

	msg, err := f.svc.Execute(ctx, f.project, &CommandPlan{Type: CmdBulkDeleteAll}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(msg, "2") {
		t.Fatalf("message %q", msg)
	}
	remaining, _ := f.svc.Repo.SearchTasks(ctx, searchAll(f.project.ID))
	if len(remaining) != 0 {
		t.Fatalf("%d tasks remain", len(remaining))
	}
}

func TestExecuteUpdateProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type:    CmdUpdateProject,
		Updates: map[string]any{"name": "Phoenix", "end_date": "2025-06-30"},
	}, f.alice.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, _ := f.svc.Repo.GetProject(ctx, f.project.ID)
	if got.Name != "Phoenix" || got.EndDate != "2025-06-30" {
		t.Fatalf("project = %+v", got)
	}
}

func TestExecuteUpdateProjectOnlyCreator(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.project, &CommandPlan{
		Type:    CmdUpdateProject,
		Updates: map[string]any{"name": "Phoenix"},
	}, f.bob.ID)
	if _, ok := err.(AuthorizationError); !ok {
		t.Fatalf("err = %v, want AuthorizationError", err)
	}
}

func TestExecuteUpdateProjectNoFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.project, &CommandPlan{
		Type:    CmdUpdateProject,
		Updates: map[string]any{"mood": "great"},
	}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExecuteUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.project, &CommandPlan{Type: "launch_rocket"}, f.alice.ID)
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExecuteTypeSynonyms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// "create" and "delete_all" arrive from looser backends.
	if _, err := f.svc.Execute(ctx, f.project, &CommandPlan{
		Type: "create", Payload: map[string]any{"title": "From synonym"},
	}, f.alice.ID); err != nil {
		t.Fatalf("create synonym: %v", err)
	}
	if _, err := f.svc.Execute(ctx, f.project, &CommandPlan{Type: "delete_all"}, f.alice.ID); err != nil {
		t.Fatalf("delete_all synonym: %v", err)
	}
	remaining, _ := f.svc.Repo.SearchTasks(ctx, searchAll(f.project.ID))
	if len(remaining) != 0 {
		t.Fatalf("%d tasks remain", len(remaining))
	}
}
