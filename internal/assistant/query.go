package assistant

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

// Filters is the declarative task predicate carried inside a command plan or
// derived from a question. String fields hold free-text tokens; resolution to
// canonical values happens at lookup time against the project.
type Filters struct {
	TaskID    int64    `json:"task_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Creator   string   `json:"creator,omitempty"`
	Milestone string   `json:"milestone,omitempty"`
	DateField string   `json:"date_field,omitempty" enum:"created,due"`
	Period    string   `json:"period,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`

	// Text is the raw user message, used for keyword extraction and ordinal
	// parsing when the structured fields above are empty.
	Text string `json:"text,omitempty"`
}

func (f Filters) empty() bool {
	return f.TaskID == 0 && f.Status == "" && f.Assignee == "" && f.Creator == "" &&
		f.Milestone == "" && f.Period == "" && len(f.Keywords) == 0 && f.Text == ""
}

const lookupCap = 10

// FindTasks runs the lookup strategies in precedence order and returns the
// first non-empty result, capped at ten tasks. Intended for answering
// questions; bulk mutations go through matchTasks which does not cap.
func (s *Service) FindTasks(ctx context.Context, project domain.Project, f Filters, actingUserID int64) ([]domain.Task, error) {
	return s.lookup(ctx, project, f, actingUserID, lookupCap)
}

// matchTasks is the uncapped variant used to gather targets for bulk
// mutations. An empty filter set matches nothing rather than everything;
// delete-everything has its own explicit command type.
func (s *Service) matchTasks(ctx context.Context, project domain.Project, f Filters, actingUserID int64) ([]domain.Task, error) {
	if f.empty() {
		return []domain.Task{}, nil
	}
	return s.lookup(ctx, project, f, actingUserID, 0)
}

func (s *Service) lookup(ctx context.Context, project domain.Project, f Filters, actingUserID int64, cap int) ([]domain.Task, error) {
	order := repo.OrderNewestFirst
	limit := cap
	if ord, ok := parseOrdinal(f.Text); ok {
		limit = ord.Count
		if ord.FromStart {
			order = repo.OrderOldestFirst
		}
	}
	base := repo.TaskSearch{ProjectID: project.ID, Order: order, Limit: limit}

	// Each strategy short-circuits on the first non-empty result so a message
	// naming both a task id and a status answers for the id.
	if f.TaskID > 0 {
		res, err := s.Repo.SearchTasks(ctx, withID(base, f.TaskID))
		if err != nil || len(res) > 0 {
			return res, err
		}
	}
	if f.Assignee != "" {
		if id, ok, err := s.ResolveAssignee(ctx, project, f.Assignee, actingUserID); err != nil {
			return nil, err
		} else if ok {
			search := base
			search.AssigneeID = id
			if st, ok := ResolveStatus(project.Methodology, f.Status); ok {
				search.Status = st
			}
			res, err := s.Repo.SearchTasks(ctx, search)
			if err != nil || len(res) > 0 {
				return res, err
			}
		}
	}
	if f.Creator != "" {
		if id, ok, err := s.ResolveAssignee(ctx, project, f.Creator, actingUserID); err != nil {
			return nil, err
		} else if ok {
			search := base
			search.CreatorID = id
			res, err := s.Repo.SearchTasks(ctx, search)
			if err != nil || len(res) > 0 {
				return res, err
			}
		}
	}
	if f.Milestone != "" {
		search := base
		search.MilestoneName = f.Milestone
		res, err := s.Repo.SearchTasks(ctx, search)
		if err != nil || len(res) > 0 {
			return res, err
		}
	}
	if st, ok := ResolveStatus(project.Methodology, f.Status); ok {
		search := base
		search.Status = st
		res, err := s.Repo.SearchTasks(ctx, search)
		if err != nil || len(res) > 0 {
			return res, err
		}
	}
	if f.Period != "" {
		if res, ok, err := s.searchByPeriod(ctx, base, f); err != nil {
			return nil, err
		} else if ok && len(res) > 0 {
			return res, nil
		}
	}
	// A bare positional request ("show the first 3 tasks") lists the project
	// without further filtering.
	if _, ok := parseOrdinal(f.Text); ok {
		res, err := s.Repo.SearchTasks(ctx, base)
		if err != nil || len(res) > 0 {
			return res, err
		}
	}
	keywords := f.Keywords
	if len(keywords) == 0 {
		keywords = ExtractKeywords(f.Text)
	}
	if len(keywords) > 0 {
		search := base
		search.Keywords = keywords
		return s.Repo.SearchTasks(ctx, search)
	}
	return []domain.Task{}, nil
}

func withID(base repo.TaskSearch, id int64) repo.TaskSearch {
	base.ID = id
	base.Limit = 1
	return base
}

func (s *Service) searchByPeriod(ctx context.Context, base repo.TaskSearch, f Filters) ([]domain.Task, bool, error) {
	from, to, ok := periodBounds(s.now(), f.Period)
	if !ok {
		return nil, false, nil
	}
	search := base
	if f.DateField == "due" {
		search.DueFrom = from.Format("2006-01-02")
		search.DueTo = to.Format("2006-01-02")
		if search.Order == repo.OrderNewestFirst {
			search.Order = repo.OrderEndDateAsc
		}
	} else {
		search.CreatedFrom = from.UTC().Format(time.RFC3339)
		search.CreatedTo = to.UTC().Format(time.RFC3339)
		if search.Order == repo.OrderNewestFirst {
			search.Order = repo.OrderOldestFirst
		}
	}
	res, err := s.Repo.SearchTasks(ctx, search)
	return res, true, err
}

// periodBounds resolves a named period to an inclusive [from, to] window.
// Weeks run Monday through Sunday.
func periodBounds(now time.Time, period string) (time.Time, time.Time, bool) {
	p := strings.ToLower(strings.TrimSpace(period))
	p = strings.ReplaceAll(p, "_", " ")
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOf := func(t time.Time) time.Time { return t.Add(24*time.Hour - time.Second) }
	weekStart := func(t time.Time) time.Time {
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return t.AddDate(0, 0, -(wd - 1))
	}
	switch p {
	case "today":
		return day, endOf(day), true
	case "yesterday":
		d := day.AddDate(0, 0, -1)
		return d, endOf(d), true
	case "tomorrow":
		d := day.AddDate(0, 0, 1)
		return d, endOf(d), true
	case "this week":
		start := weekStart(day)
		return start, endOf(start.AddDate(0, 0, 6)), true
	case "last week":
		start := weekStart(day).AddDate(0, 0, -7)
		return start, endOf(start.AddDate(0, 0, 6)), true
	case "next week":
		start := weekStart(day).AddDate(0, 0, 7)
		return start, endOf(start.AddDate(0, 0, 6)), true
	}
	return time.Time{}, time.Time{}, false
}

// Ordinal is a positional window parsed from phrases like "first 3 tasks" or
// "the last task".
type Ordinal struct {
	FromStart bool
	Count     int
}

var ordinalRe = regexp.MustCompile(`(?i)\b(first|top|oldest|last|latest|newest)(?:\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten))?\s+tasks?\b`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func parseOrdinal(text string) (Ordinal, bool) {
	m := ordinalRe.FindStringSubmatch(text)
	if m == nil {
		return Ordinal{}, false
	}
	ord := Ordinal{Count: 1}
	switch strings.ToLower(m[1]) {
	case "first", "top", "oldest":
		ord.FromStart = true
	}
	if m[2] != "" {
		w := strings.ToLower(m[2])
		if n, ok := numberWords[w]; ok {
			ord.Count = n
		} else if n, err := strconv.Atoi(w); err == nil && n > 0 {
			ord.Count = n
		}
	}
	return ord, true
}

// stopwords are chat filler and command vocabulary excluded from keyword
// search so "show me the tasks about the login page" keys on "login"/"page".
var stopwords = map[string]bool{
	"task": true, "tasks": true, "show": true, "list": true, "find": true,
	"what": true, "which": true, "with": true, "that": true, "this": true,
	"these": true, "those": true, "from": true, "have": true, "does": true,
	"about": true, "please": true, "give": true, "display": true, "tell": true,
	"them": true, "their": true, "there": true, "where": true, "when": true,
	"project": true, "status": true, "assigned": true, "assignee": true,
	"created": true, "priority": true, "update": true, "delete": true,
	"all": true, "the": true, "and": true, "are": true, "you": true,
	"can": true, "get": true, "for": true, "related": true, "anything": true,
	"everything": true, "whats": true, "into": true, "onto": true,
	"first": true, "last": true, "latest": true, "oldest": true, "newest": true,
	"week": true, "today": true, "yesterday": true, "tomorrow": true,
}

var wordRe = regexp.MustCompile(`[A-Za-z0-9']+`)
var quotedRe = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|'([^']{2,})'`)

// ExtractKeywords pulls search terms out of a raw message: quoted phrases
// verbatim, then words longer than three characters that are neither
// stopwords nor numerals.
func ExtractKeywords(text string) []string {
	var res []string
	seen := map[string]bool{}
	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		res = append(res, k)
	}
	rest := text
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		phrase := m[1] + m[2] + m[3]
		add(phrase)
		rest = strings.Replace(rest, phrase, "", 1)
	}
	for _, w := range wordRe.FindAllString(rest, -1) {
		w = strings.Trim(w, "'")
		if len(w) <= 3 || stopwords[strings.ToLower(w)] {
			continue
		}
		if _, err := strconv.Atoi(w); err == nil {
			continue
		}
		add(w)
	}
	return res
}
