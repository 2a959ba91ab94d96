package assistant

import (
	"context"
	"testing"
	"time"

	"taskboard/internal/domain"
)

func TestFindTasksShortCircuitsOnID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addTask(t, domain.Task{Title: "Fix login", Status: domain.StatusDone})
	f.addTask(t, domain.Task{Title: "Write login tests", Status: domain.StatusTodo})

	// Both an id and a status are present; the id wins.
	got, err := f.svc.FindTasks(ctx, f.project, Filters{TaskID: a.ID, Status: "todo", Text: "task #1 todo"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("got %d tasks, want exactly #%d", len(got), a.ID)
	}
}

func TestFindTasksAssigneeBeatsKeywords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "Deploy service", AssigneeID: &f.bob.ID})
	f.addTask(t, domain.Task{Title: "Deploy docs"})

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Assignee: "bob", Text: "deploy tasks for bob"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Deploy service" {
		t.Fatalf("got %+v, want only bob's task", got)
	}
}

func TestFindTasksStatusWithAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "A", Status: domain.StatusDone, AssigneeID: &f.bob.ID})
	f.addTask(t, domain.Task{Title: "B", Status: domain.StatusTodo, AssigneeID: &f.bob.ID})
	f.addTask(t, domain.Task{Title: "C", Status: domain.StatusDone})

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Assignee: "bob", Status: "done"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Title != "A" {
		t.Fatalf("got %+v, want bob's done task only", got)
	}
}

func TestFindTasksUnresolvedAssigneeFallsThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "Prepare launch checklist"})

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Assignee: "dave", Text: "dave's launch tasks"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	// Strategy falls to keyword search instead of erroring.
	if len(got) != 1 || got[0].Title != "Prepare launch checklist" {
		t.Fatalf("got %+v, want keyword fallback hit", got)
	}
}

func TestFindTasksMilestone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "Beta release", Milestone: true})
	f.addTask(t, domain.Task{Title: "Beta feedback triage"})

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Milestone: "beta"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || !got[0].Milestone {
		t.Fatalf("got %+v, want the milestone only", got)
	}
}

func TestFindTasksCreatedPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Fixture clock is Wednesday 2025-03-12.
	f.addTask(t, domain.Task{Title: "Today", CreatedAt: "2025-03-12T09:00:00Z"})
	f.addTask(t, domain.Task{Title: "Monday", CreatedAt: "2025-03-10T09:00:00Z"})
	f.addTask(t, domain.Task{Title: "LastFriday", CreatedAt: "2025-03-07T09:00:00Z"})

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Period: "today", DateField: "created"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find today: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Today" {
		t.Fatalf("today: got %+v", got)
	}

	got, err = f.svc.FindTasks(ctx, f.project, Filters{Period: "this week", DateField: "created"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find this week: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("this week: got %d tasks, want Monday+Today", len(got))
	}
	// Date-range results read oldest first.
	if got[0].Title != "Monday" || got[1].Title != "Today" {
		t.Fatalf("this week order = [%s, %s], want creation-time ascending", got[0].Title, got[1].Title)
	}

	got, err = f.svc.FindTasks(ctx, f.project, Filters{Period: "last week", DateField: "created"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find last week: %v", err)
	}
	if len(got) != 1 || got[0].Title != "LastFriday" {
		t.Fatalf("last week: got %+v", got)
	}
}

func TestFindTasksDuePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTask(t, domain.Task{Title: "DueTomorrow", EndDate: "2025-03-13"})
	f.addTask(t, domain.Task{Title: "DueNextMonth", EndDate: "2025-04-10"})

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Period: "tomorrow", DateField: "due"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Title != "DueTomorrow" {
		t.Fatalf("got %+v", got)
	}
}

func TestFindTasksOrdinalWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, ts := range []string{"2025-03-01T10:00:00Z", "2025-03-02T10:00:00Z", "2025-03-03T10:00:00Z"} {
		f.addTask(t, domain.Task{Title: string(rune('A' + i)), CreatedAt: ts})
	}

	got, err := f.svc.FindTasks(ctx, f.project, Filters{Text: "show the first 2 tasks"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find first: %v", err)
	}
	if len(got) != 2 || got[0].Title != "A" || got[1].Title != "B" {
		t.Fatalf("first 2: got %+v", got)
	}

	got, err = f.svc.FindTasks(ctx, f.project, Filters{Text: "show the last task"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find last: %v", err)
	}
	if len(got) != 1 || got[0].Title != "C" {
		t.Fatalf("last: got %+v", got)
	}
}

func TestFindTasksCapAtTen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 14; i++ {
		f.addTask(t, domain.Task{Title: "chore", Status: domain.StatusTodo})
	}
	got, err := f.svc.FindTasks(ctx, f.project, Filters{Status: "todo"}, f.alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d tasks, want cap of 10", len(got))
	}
}

func TestMatchTasksUncappedAndEmptyFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 14; i++ {
		f.addTask(t, domain.Task{Title: "chore", Status: domain.StatusTodo})
	}
	got, err := f.svc.matchTasks(ctx, f.project, Filters{Status: "todo"}, f.alice.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 14 {
		t.Fatalf("got %d, want all 14 for bulk targeting", len(got))
	}

	got, err = f.svc.matchTasks(ctx, f.project, Filters{}, f.alice.ID)
	if err != nil {
		t.Fatalf("match empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty filters matched %d tasks, want none", len(got))
	}
}

func TestPeriodBounds(t *testing.T) {
	// Wednesday.
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		period string
		from   string
		to     string
	}{
		{"today", "2025-03-12", "2025-03-12"},
		{"yesterday", "2025-03-11", "2025-03-11"},
		{"tomorrow", "2025-03-13", "2025-03-13"},
		{"this week", "2025-03-10", "2025-03-16"},
		{"last week", "2025-03-03", "2025-03-09"},
		{"next week", "2025-03-17", "2025-03-23"},
	}
	for _, c := range cases {
		from, to, ok := periodBounds(now, c.period)
		if !ok {
			t.Fatalf("period %q did not resolve", c.period)
		}
		if got := from.Format("2006-01-02"); got != c.from {
			t.Errorf("%s from = %s, want %s", c.period, got, c.from)
		}
		if got := to.Format("2006-01-02"); got != c.to {
			t.Errorf("%s to = %s, want %s", c.period, got, c.to)
		}
	}
	if _, _, ok := periodBounds(now, "someday"); ok {
		t.Fatalf("unknown period resolved")
	}
}

func TestPeriodBoundsWeekStartsMondayOnSunday(t *testing.T) {
	// On a Sunday, "this week" still starts the previous Monday.
	sunday := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)
	from, to, ok := periodBounds(sunday, "this week")
	if !ok {
		t.Fatal("this week did not resolve")
	}
	if from.Format("2006-01-02") != "2025-03-10" || to.Format("2006-01-02") != "2025-03-16" {
		t.Fatalf("got %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
}

func TestParseOrdinal(t *testing.T) {
	cases := []struct {
		text  string
		want  Ordinal
		found bool
	}{
		{"show the first 3 tasks", Ordinal{FromStart: true, Count: 3}, true},
		{"top five tasks", Ordinal{FromStart: true, Count: 5}, true},
		{"the last task", Ordinal{Count: 1}, true},
		{"latest 2 tasks", Ordinal{Count: 2}, true},
		{"oldest task", Ordinal{FromStart: true, Count: 1}, true},
		{"all my tasks", Ordinal{}, false},
	}
	for _, c := range cases {
		got, found := parseOrdinal(c.text)
		if found != c.found || got != c.want {
			t.Errorf("parseOrdinal(%q) = (%+v, %v), want (%+v, %v)", c.text, got, found, c.want, c.found)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords(`show me the tasks about the "login page" and authentication from 2024`)
	want := map[string]bool{"login page": true, "authentication": true}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for _, k := range got {
		if !want[k] {
			t.Fatalf("unexpected keyword %q in %v", k, got)
		}
	}
	if kws := ExtractKeywords("show all the tasks"); len(kws) != 0 {
		t.Fatalf("filler-only message produced keywords %v", kws)
	}
}
