package assistant

import (
	"context"
	"testing"

	"taskboard/internal/domain"
)

func TestPhaseLabelRoundTrip(t *testing.T) {
	for _, m := range domain.Methodologies() {
		for _, s := range domain.Statuses() {
			label := PhaseLabel(m, s)
			got, ok := StatusForLabel(m, label)
			if !ok {
				t.Fatalf("%s: label %q did not resolve", m, label)
			}
			if got != s {
				t.Fatalf("%s: %s -> %q -> %s", m, s, label, got)
			}
		}
	}
}

func TestResolveStatus(t *testing.T) {
	cases := []struct {
		methodology domain.Methodology
		token       string
		want        domain.Status
		ok          bool
	}{
		{domain.MethodologyKanban, "todo", domain.StatusTodo, true},
		{domain.MethodologyKanban, "In Progress", domain.StatusInProgress, true},
		{domain.MethodologyKanban, "in-progress", domain.StatusInProgress, true},
		{domain.MethodologyKanban, "WIP", domain.StatusInProgress, true},
		{domain.MethodologyKanban, "doing", domain.StatusInProgress, true},
		{domain.MethodologyKanban, "qa", domain.StatusReview, true},
		{domain.MethodologyKanban, "testing", domain.StatusReview, true},
		{domain.MethodologyKanban, "finished", domain.StatusDone, true},
		{domain.MethodologyKanban, "complete", domain.StatusDone, true},
		{domain.MethodologyKanban, "backlog", domain.StatusTodo, true},
		{domain.MethodologyScrum, "Backlog", domain.StatusTodo, true},
		{domain.MethodologyScrum, "Testing", domain.StatusReview, true},
		{domain.MethodologyWaterfall, "Verification", domain.StatusReview, true},
		{domain.MethodologyWaterfall, "Delivered", domain.StatusDone, true},
		{domain.MethodologyLean, "Validation", domain.StatusReview, true},
		{domain.MethodologyKanban, "done status", domain.StatusDone, true},
		{domain.MethodologyKanban, "banana", "", false},
		{domain.MethodologyKanban, "", "", false},
	}
	for _, c := range cases {
		got, ok := ResolveStatus(c.methodology, c.token)
		if ok != c.ok || got != c.want {
			t.Errorf("ResolveStatus(%s, %q) = (%q, %v), want (%q, %v)", c.methodology, c.token, got, ok, c.want, c.ok)
		}
	}
}

func TestResolvePriority(t *testing.T) {
	cases := []struct {
		token string
		want  domain.Priority
		ok    bool
	}{
		{"low", domain.PriorityLow, true},
		{"Urgent", domain.PriorityUrgent, true},
		{"critical", domain.PriorityUrgent, true},
		{"blocker", domain.PriorityUrgent, true},
		{"p0", domain.PriorityUrgent, true},
		{"p1", domain.PriorityHigh, true},
		{"normal", domain.PriorityMedium, true},
		{"minor", domain.PriorityLow, true},
		{"trivial", domain.PriorityLow, true},
		{"high priority", domain.PriorityHigh, true},
		{"whenever", "", false},
	}
	for _, c := range cases {
		got, ok := ResolvePriority(c.token)
		if ok != c.ok || got != c.want {
			t.Errorf("ResolvePriority(%q) = (%q, %v), want (%q, %v)", c.token, got, ok, c.want, c.ok)
		}
	}
}

func TestResolveAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		hint   string
		acting int64
		want   int64
		ok     bool
	}{
		{"me", f.bob.ID, f.bob.ID, true},
		{"myself", f.alice.ID, f.alice.ID, true},
		{"owner", f.bob.ID, f.alice.ID, true},
		{"project creator", f.bob.ID, f.alice.ID, true},
		{"bob@example.com", f.alice.ID, f.bob.ID, true},
		{"BOB@EXAMPLE.COM", f.alice.ID, f.bob.ID, true},
		{"Bob Stone", f.alice.ID, f.bob.ID, true},
		{"bob", f.alice.ID, f.bob.ID, true},
		{"@bob", f.alice.ID, f.bob.ID, true},
		{"Bob's", f.alice.ID, f.bob.ID, true},
		{"alice", f.bob.ID, f.alice.ID, true},
		{"", f.alice.ID, 0, false},
		{"dave", f.alice.ID, 0, false},
	}
	for _, c := range cases {
		got, ok, err := f.svc.ResolveAssignee(ctx, f.project, c.hint, c.acting)
		if err != nil {
			t.Fatalf("ResolveAssignee(%q): %v", c.hint, err)
		}
		if ok != c.ok || got != c.want {
			t.Errorf("ResolveAssignee(%q) = (%d, %v), want (%d, %v)", c.hint, got, ok, c.want, c.ok)
		}
	}
}

func TestResolveAssigneeNeverLeavesProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Carol exists but is not on the project: name, email and id must all fail.
	for _, hint := range []string{"carol", "Carol Reyes", "carol@example.com"} {
		if _, ok, err := f.svc.ResolveAssignee(ctx, f.project, hint, f.alice.ID); err != nil {
			t.Fatalf("resolve %q: %v", hint, err)
		} else if ok {
			t.Errorf("hint %q resolved to a non-member", hint)
		}
	}
	if _, ok, err := f.svc.ResolveAssignee(ctx, f.project, "3", f.alice.ID); err != nil {
		t.Fatalf("resolve numeric: %v", err)
	} else if ok {
		t.Errorf("numeric id of a non-member resolved")
	}
}

func TestResolveAssigneeNumericID(t *testing.T) {
	f := newFixture(t)
	got, ok, err := f.svc.ResolveAssignee(context.Background(), f.project, "2", f.alice.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || got != f.bob.ID {
		t.Fatalf("got (%d, %v), want bob by id", got, ok)
	}
}
