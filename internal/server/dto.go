package server

import (
	"taskboard/internal/assistant"
	"taskboard/internal/domain"
)

type CreateUserRequest struct {
	Name  string `json:"name" minLength:"1"`
	Email string `json:"email" format:"email"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" minLength:"1"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date,omitempty" format:"date"`
	EndDate     string `json:"end_date,omitempty" format:"date"`
	Methodology string `json:"methodology,omitempty" enum:"kanban,scrum,agile,waterfall,lean,"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Methodology *string `json:"methodology,omitempty"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	StartDate   string `json:"start_date,omitempty" format:"date"`
	EndDate     string `json:"end_date,omitempty" format:"date"`
	Milestone   bool   `json:"milestone,omitempty"`
	AssigneeID  *int64 `json:"assignee_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	AssigneeID  *int64  `json:"assignee_id,omitempty"`
}

type AddMemberRequest struct {
	UserID int64 `json:"user_id" minimum:"1"`
}

// AssistantMessageRequest is one chat turn. SessionID groups turns into a
// conversation; clients reuse it across the confirm round trip.
type AssistantMessageRequest struct {
	SessionID string `json:"session_id" minLength:"1"`
	Message   string `json:"message" minLength:"1"`
}

type AssistantExecuteRequest struct {
	SessionID   string                 `json:"session_id,omitempty"`
	CommandData *assistant.CommandPlan `json:"command_data"`
}

type AssistantExecuteResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	ProjectID  int64          `json:"project_id"`
	Name       string         `json:"name"`
	TaskCounts map[string]int `json:"task_counts"`
}

func taskCountsByLabel(p domain.Project, counts map[domain.Status]int) map[string]int {
	res := map[string]int{}
	for _, st := range domain.Statuses() {
		res[assistant.PhaseLabel(p.Methodology, st)] = counts[st]
	}
	return res
}
