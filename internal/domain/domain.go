package domain

// Status is the canonical task state. It is the single stored representation;
// methodology-specific board labels are a display concern resolved elsewhere.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses returns all canonical statuses in board order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}
}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Terminal reports whether the status represents finished work.
func (s Status) Terminal() bool { return s == StatusDone }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Methodology is the per-project display convention for the four canonical
// statuses. Closed set; unknown values fall back to kanban at the call sites
// that render labels.
type Methodology string

const (
	MethodologyKanban    Methodology = "kanban"
	MethodologyScrum     Methodology = "scrum"
	MethodologyAgile     Methodology = "agile"
	MethodologyWaterfall Methodology = "waterfall"
	MethodologyLean      Methodology = "lean"
)

func Methodologies() []Methodology {
	return []Methodology{MethodologyKanban, MethodologyScrum, MethodologyAgile, MethodologyWaterfall, MethodologyLean}
}

func (m Methodology) Valid() bool {
	switch m {
	case MethodologyKanban, MethodologyScrum, MethodologyAgile, MethodologyWaterfall, MethodologyLean:
		return true
	}
	return false
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	StartDate   string      `json:"start_date,omitempty" format:"date"`
	EndDate     string      `json:"end_date,omitempty" format:"date"`
	Methodology Methodology `json:"methodology" enum:"kanban,scrum,agile,waterfall,lean"`
	CreatorID   int64       `json:"creator_id"`
	CreatedAt   string      `json:"created_at" format:"date-time"`
}

type Task struct {
	ID          int64    `json:"id"`
	ProjectID   int64    `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status" enum:"todo,inprogress,review,done"`
	Priority    Priority `json:"priority" enum:"low,medium,high,urgent"`
	StartDate   string   `json:"start_date,omitempty" format:"date"`
	EndDate     string   `json:"end_date,omitempty" format:"date"`
	Milestone   bool     `json:"milestone,omitempty"`
	CreatorID   int64    `json:"creator_id"`
	AssigneeID  *int64   `json:"assignee_id,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// ConversationTurn is one utterance in an assistant session. Turns are
// append-only; retention is bounded only when read back for context.
type ConversationTurn struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role" enum:"user,assistant"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  int64  `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
