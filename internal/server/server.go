// Package server exposes the taskboard HTTP API over huma and chi.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskboard/internal/assistant"
	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	DB        *sql.DB
	Assistant *assistant.Service
	AppConfig *config.Config
	BasePath  string
	Auth      AuthConfig
	Logger    *zap.Logger
	Now       func() time.Time
}

type server struct {
	repo      repo.Repo
	events    events.Writer
	assistant *assistant.Service
	logger    *zap.Logger
	now       func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task #42 does not exist in this project"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope shared by every endpoint.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Taskboard API.
func New(cfg Config) (http.Handler, error) {
	if cfg.DB == nil {
		return nil, errors.New("server: DB is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	asst := cfg.Assistant
	if asst == nil {
		asst = assistant.New(cfg.DB, cfg.AppConfig, nil, logger)
	}
	s := &server{
		repo:      repo.Repo{DB: cfg.DB},
		events:    events.Writer{DB: cfg.DB, Now: now},
		assistant: asst,
		logger:    logger,
		now:       now,
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Taskboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	s.registerUsers(group)
	s.registerProjects(group)
	s.registerTasks(group)
	s.registerMembers(group)
	s.registerEvents(group)
	s.registerAssistant(group)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message, Details: details},
	}
}

// handleError maps the assistant error taxonomy and storage sentinels onto
// HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve assistant.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", ve.Msg, nil)
	}
	var nf assistant.NotFoundError
	if errors.As(err, &nf) {
		return newAPIError(http.StatusNotFound, "not_found", nf.Msg, nil)
	}
	var ae assistant.AuthorizationError
	if errors.As(err, &ae) {
		return newAPIError(http.StatusForbidden, "forbidden", ae.Msg, nil)
	}
	var ue assistant.UpstreamError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusBadGateway, "upstream_error", "assistant backend unavailable", nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requireMember loads the project and checks the caller is its creator or a
// member. Every project-scoped endpoint funnels through here.
func (s *server) requireMember(ctx context.Context, projectID int64) (domain.Project, int64, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return domain.Project{}, 0, authErr
	}
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, 0, handleError(err)
	}
	ok, err := s.repo.IsMember(ctx, p.ID, userID)
	if err != nil {
		return domain.Project{}, 0, handleError(err)
	}
	if !ok {
		return domain.Project{}, 0, newAPIError(http.StatusForbidden, "forbidden", "not a member of this project", nil)
	}
	return p, userID, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *server) registerUsers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		u := domain.User{
			Name:      strings.TrimSpace(input.Body.Name),
			Email:     strings.TrimSpace(input.Body.Email),
			CreatedAt: s.now().UTC().Format(time.RFC3339),
		}
		id, err := s.repo.InsertUser(ctx, u)
		if err != nil {
			return nil, handleError(err)
		}
		u.ID = id
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID int64 `path:"user_id"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		u, err := s.repo.GetUser(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func (s *server) registerProjects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		methodology := domain.Methodology(input.Body.Methodology)
		if input.Body.Methodology == "" {
			methodology = domain.MethodologyKanban
		}
		if !methodology.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown methodology %q", input.Body.Methodology), nil)
		}
		p := domain.Project{
			Name:        strings.TrimSpace(input.Body.Name),
			Description: input.Body.Description,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Methodology: methodology,
			CreatorID:   userID,
			CreatedAt:   s.now().UTC().Format(time.RFC3339),
		}
		id, err := s.repo.InsertProject(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		p.ID = id
		if err := s.events.Append(ctx, "project.created", id, "project", fmt.Sprint(id), userID, nil); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := s.repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, _, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64                `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if userID != p.CreatorID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the project creator can update project fields", nil)
		}
		if input.Body.Methodology != nil && !domain.Methodology(*input.Body.Methodology).Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown methodology %q", *input.Body.Methodology), nil)
		}
		upd := repo.ProjectUpdate{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Methodology: input.Body.Methodology,
		}
		if err := s.repo.UpdateProject(ctx, p.ID, upd); err != nil {
			return nil, handleError(err)
		}
		updated, err := s.repo.GetProject(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := s.events.Append(ctx, "project.updated", p.ID, "project", fmt.Sprint(p.ID), userID, nil); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/status",
		Summary:     "Project status",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
	}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		p, _, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		counts, err := s.repo.CountTasksByStatus(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: StatusResponse{
			ProjectID:  p.ID,
			Name:       p.Name,
			TaskCounts: taskCountsByLabel(p, counts),
		}}, nil
	})
}

func (s *server) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID int64             `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		status := domain.StatusTodo
		if input.Body.Status != "" {
			status = domain.Status(input.Body.Status)
			if !status.Valid() {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", input.Body.Status), nil)
			}
		}
		priority := domain.PriorityMedium
		if input.Body.Priority != "" {
			priority = domain.Priority(input.Body.Priority)
			if !priority.Valid() {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown priority %q", input.Body.Priority), nil)
			}
		}
		if input.Body.AssigneeID != nil {
			ok, err := s.repo.IsMember(ctx, p.ID, *input.Body.AssigneeID)
			if err != nil {
				return nil, handleError(err)
			}
			if !ok {
				return nil, newAPIError(http.StatusUnprocessableEntity, "validation_failed", "assignee is not a member of this project", nil)
			}
		}
		now := s.now().UTC().Format(time.RFC3339)
		t := domain.Task{
			ProjectID:   p.ID,
			Title:       strings.TrimSpace(input.Body.Title),
			Description: input.Body.Description,
			Status:      status,
			Priority:    priority,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Milestone:   input.Body.Milestone,
			CreatorID:   userID,
			AssigneeID:  input.Body.AssigneeID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		id, err := s.repo.InsertTask(ctx, t)
		if err != nil {
			return nil, handleError(err)
		}
		t.ID = id
		if err := s.events.Append(ctx, "task.created", p.ID, "task", fmt.Sprint(id), userID, events.EventPayload{"title": t.Title}); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  int64  `path:"project_id"`
		Status     string `query:"status"`
		AssigneeID int64  `query:"assignee_id"`
		Keyword    string `query:"keyword"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		p, _, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		search := repo.TaskSearch{
			ProjectID:  p.ID,
			AssigneeID: input.AssigneeID,
			Limit:      input.Limit,
		}
		if input.Status != "" {
			st := domain.Status(input.Status)
			if !st.Valid() {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", input.Status), nil)
			}
			search.Status = st
		}
		if input.Keyword != "" {
			search.Keywords = []string{input.Keyword}
		}
		items, err := s.repo.SearchTasks(ctx, search)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		TaskID    int64 `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		p, _, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		t, err := s.repo.GetTask(ctx, p.ID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID int64             `path:"project_id"`
		TaskID    int64             `path:"task_id"`
		Body      UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		t, err := s.repo.GetTask(ctx, p.ID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Title != nil {
			if strings.TrimSpace(*input.Body.Title) == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "title must not be empty", nil)
			}
			t.Title = strings.TrimSpace(*input.Body.Title)
		}
		if input.Body.Description != nil {
			t.Description = *input.Body.Description
		}
		if input.Body.Status != nil {
			st := domain.Status(*input.Body.Status)
			if !st.Valid() {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", *input.Body.Status), nil)
			}
			t.Status = st
		}
		if input.Body.Priority != nil {
			pr := domain.Priority(*input.Body.Priority)
			if !pr.Valid() {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown priority %q", *input.Body.Priority), nil)
			}
			t.Priority = pr
		}
		if input.Body.StartDate != nil {
			t.StartDate = *input.Body.StartDate
		}
		if input.Body.EndDate != nil {
			t.EndDate = *input.Body.EndDate
		}
		if input.Body.AssigneeID != nil {
			if *input.Body.AssigneeID == 0 {
				t.AssigneeID = nil
			} else {
				ok, err := s.repo.IsMember(ctx, p.ID, *input.Body.AssigneeID)
				if err != nil {
					return nil, handleError(err)
				}
				if !ok {
					return nil, newAPIError(http.StatusUnprocessableEntity, "validation_failed", "assignee is not a member of this project", nil)
				}
				t.AssigneeID = input.Body.AssigneeID
			}
		}
		t.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		if err := s.repo.UpdateTask(ctx, t); err != nil {
			return nil, handleError(err)
		}
		if err := s.events.Append(ctx, "task.updated", p.ID, "task", fmt.Sprint(t.ID), userID, nil); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		TaskID    int64 `path:"task_id"`
	}) (*struct{}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.repo.DeleteTask(ctx, p.ID, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		if err := s.events.Append(ctx, "task.deleted", p.ID, "task", fmt.Sprint(input.TaskID), userID, nil); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
		return &struct{}{}, nil
	})
}

func (s *server) registerMembers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/members",
		Summary:     "List project members",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		p, _, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		members, err := s.repo.ListMembers(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: members}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-member",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/members",
		Summary:       "Add project member",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64            `path:"project_id"`
		Body      AddMemberRequest `json:"body"`
	}) (*struct{}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if userID != p.CreatorID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the project creator can manage members", nil)
		}
		if _, err := s.repo.GetUser(ctx, input.Body.UserID); err != nil {
			return nil, handleError(err)
		}
		if err := s.repo.AddMember(ctx, p.ID, input.Body.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-member",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/members/{user_id}",
		Summary:     "Remove project member",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		UserID    int64 `path:"user_id"`
	}) (*struct{}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if userID != p.CreatorID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the project creator can manage members", nil)
		}
		if err := s.repo.RemoveMember(ctx, p.ID, input.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func (s *server) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "Latest audit events",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64  `path:"project_id"`
		Type      string `query:"type"`
		Limit     int    `query:"limit" default:"20"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		p, _, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.repo.LatestEvents(ctx, input.Limit, p.ID, input.Type, "", "")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func (s *server) registerAssistant(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "assistant-message",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/assistant/message",
		Summary:     "Send a chat message to the assistant",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ProjectID int64                   `path:"project_id"`
		Body      AssistantMessageRequest `json:"body"`
	}) (*struct {
		Body assistant.Response `json:"body"`
	}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.SessionID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "session_id is required", nil)
		}
		resp, err := s.assistant.ProcessMessage(ctx, p, input.Body.SessionID, input.Body.Message, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body assistant.Response `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assistant-execute",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/assistant/execute",
		Summary:     "Execute a confirmed assistant command",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID int64                   `path:"project_id"`
		Body      AssistantExecuteRequest `json:"body"`
	}) (*struct {
		Body AssistantExecuteResponse `json:"body"`
	}, error) {
		p, userID, authErr := s.requireMember(ctx, input.ProjectID)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.CommandData == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "command_data is required", nil)
		}
		msg, err := s.assistant.ExecuteCommand(ctx, p, input.Body.SessionID, input.Body.CommandData, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssistantExecuteResponse `json:"body"`
		}{Body: AssistantExecuteResponse{Message: msg}}, nil
	})
}
