package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"taskboard/internal/app"
	"taskboard/internal/assistant"
	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
	"taskboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard manages projects and tasks and ships a conversational assistant.
- Workspace: your .taskboard directory holding the database; config lives in taskboard.yml.
- Project: owns tasks, members, and the conversation history; statuses are shown with
  labels that match the project's methodology (kanban, scrum, agile, waterfall, lean).
- Tasks: flow todo -> inprogress -> review -> done with low/medium/high/urgent priority.
- Assistant: 'tb ask "..."' understands plain language; mutations always come back as a
  plan you confirm before anything changes.
- Event log: diary of changes, view with 'tb log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("actor-id", 0, "acting user id (0 uses the local default user)")
	rootCmd.PersistentFlags().Int64("project", 0, "project id (overrides auto-detection)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// env bundles what most commands need once the workspace is open.
type env struct {
	repo    repo.Repo
	cfg     *config.Config
	actor   domain.User
	project domain.Project
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func withEnv(ctx context.Context, fn func(context.Context, env) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	actor, err := app.ResolveActor(ctx, r, viper.GetInt64("actor-id"))
	if err != nil {
		return err
	}
	project, cfg, err := app.ResolveProjectAndConfig(ctx, workspace, viper.GetInt64("project"), actor, r)
	if err != nil {
		return err
	}
	return fn(ctx, env{repo: r, cfg: cfg, actor: actor, project: project})
}

func withAssistant(ctx context.Context, fn func(context.Context, env, *assistant.Service) error) error {
	return withEnv(ctx, func(ctx context.Context, e env) error {
		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()
		var llm assistant.CompletionClient
		if e.cfg.Assistant.Enabled {
			if key := e.cfg.APIKey(); key != "" {
				llm = assistant.NewOpenAIClient(key, e.cfg.Assistant.Model)
			}
		}
		svc := assistant.New(e.repo.DB, e.cfg, llm, logger)
		return fn(ctx, e, svc)
	})
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
			}
			fmt.Printf("Workspace ready at %s\n", db.Path(workspace))
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrIndent(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err == nil {
				err = c.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userGetCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u := domain.User{
					Name:      name,
					Email:     email,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				id, err := r.InsertUser(ctx, u)
				if err != nil {
					return err
				}
				u.ID = id
				return printJSONOrIndent(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrIndent(u)
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Methodology", "Creator"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Methodology, p.CreatorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var name, description, methodology, startDate, endDate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actor, err := app.ResolveActor(ctx, r, viper.GetInt64("actor-id"))
				if err != nil {
					return err
				}
				m := domain.Methodology(methodology)
				if !m.Valid() {
					return fmt.Errorf("unknown methodology %q", methodology)
				}
				p := domain.Project{
					Name:        name,
					Description: description,
					StartDate:   startDate,
					EndDate:     endDate,
					Methodology: m,
					CreatorID:   actor.ID,
					CreatedAt:   time.Now().UTC().Format(time.RFC3339),
				}
				id, err := r.InsertProject(ctx, p)
				if err != nil {
					return err
				}
				p.ID = id
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&methodology, "methodology", "kanban", "kanban, scrum, agile, waterfall or lean")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				return printJSONOrIndent(e.project)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, description, methodology, startDate, endDate string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				if e.actor.ID != e.project.CreatorID {
					return fmt.Errorf("only the project creator can update project fields")
				}
				var upd repo.ProjectUpdate
				if cmd.Flags().Changed("name") {
					upd.Name = &name
				}
				if cmd.Flags().Changed("description") {
					upd.Description = &description
				}
				if cmd.Flags().Changed("methodology") {
					if !domain.Methodology(methodology).Valid() {
						return fmt.Errorf("unknown methodology %q", methodology)
					}
					upd.Methodology = &methodology
				}
				if cmd.Flags().Changed("start-date") {
					upd.StartDate = &startDate
				}
				if cmd.Flags().Changed("end-date") {
					upd.EndDate = &endDate
				}
				if err := e.repo.UpdateProject(ctx, e.project.ID, upd); err != nil {
					return err
				}
				p, err := e.repo.GetProject(ctx, e.project.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&methodology, "methodology", "", "methodology")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date (YYYY-MM-DD)")
	return cmd
}

func memberCmd() *cobra.Command {
	member := &cobra.Command{Use: "member", Short: "Manage project members"}
	member.AddCommand(&cobra.Command{
		Use:   "add <user-id>",
		Short: "Add a member to the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				if e.actor.ID != e.project.CreatorID {
					return fmt.Errorf("only the project creator can manage members")
				}
				if _, err := e.repo.GetUser(ctx, id); err != nil {
					return err
				}
				return e.repo.AddMember(ctx, e.project.ID, id)
			})
		},
	})
	member.AddCommand(&cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a member from the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				if e.actor.ID != e.project.CreatorID {
					return fmt.Errorf("only the project creator can manage members")
				}
				return e.repo.RemoveMember(ctx, e.project.ID, id)
			})
		},
	})
	member.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List members of the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				members, err := e.repo.ListMembers(ctx, e.project.ID)
				if err != nil {
					return err
				}
				owner, err := e.repo.GetUser(ctx, e.project.CreatorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(append([]domain.User{owner}, members...))
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
				tw.AppendRow(table.Row{owner.ID, owner.Name, owner.Email, "owner"})
				for _, m := range members {
					tw.AppendRow(table.Row{m.ID, m.Name, m.Email, "member"})
				}
				tw.Render()
				return nil
			})
		},
	})
	return member
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks flow todo -> inprogress -> review -> done. Status labels in listings follow the project methodology.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var title, description, status, priority, startDate, endDate string
	var assigneeID int64
	var milestone bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				st := domain.Status(status)
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				pr := domain.Priority(priority)
				if !pr.Valid() {
					return fmt.Errorf("unknown priority %q", priority)
				}
				var assignee *int64
				if cmd.Flags().Changed("assignee-id") {
					ok, err := e.repo.IsMember(ctx, e.project.ID, assigneeID)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("user %d is not a member of project %d", assigneeID, e.project.ID)
					}
					assignee = &assigneeID
				}
				now := time.Now().UTC().Format(time.RFC3339)
				t := domain.Task{
					ProjectID:   e.project.ID,
					Title:       title,
					Description: description,
					Status:      st,
					Priority:    pr,
					StartDate:   startDate,
					EndDate:     endDate,
					Milestone:   milestone,
					CreatorID:   e.actor.ID,
					AssigneeID:  assignee,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				id, err := e.repo.InsertTask(ctx, t)
				if err != nil {
					return err
				}
				t.ID = id
				return printJSONOrIndent(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "todo", "todo, inprogress, review or done")
	cmd.Flags().StringVar(&priority, "priority", "medium", "low, medium, high or urgent")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&assigneeID, "assignee-id", 0, "assignee user id")
	cmd.Flags().BoolVar(&milestone, "milestone", false, "mark as milestone")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var status, keyword string
	var assigneeID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				search := repo.TaskSearch{
					ProjectID:  e.project.ID,
					AssigneeID: assigneeID,
					Limit:      limit,
				}
				if status != "" {
					st := domain.Status(status)
					if !st.Valid() {
						return fmt.Errorf("unknown status %q", status)
					}
					search.Status = st
				}
				if keyword != "" {
					search.Keywords = []string{keyword}
				}
				tasks, err := e.repo.SearchTasks(ctx, search)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Due"})
				for _, t := range tasks {
					assignee := ""
					if t.AssigneeID != nil {
						assignee = fmt.Sprint(*t.AssigneeID)
					}
					label := assistant.PhaseLabel(e.project.Methodology, t.Status)
					tw.AppendRow(table.Row{t.ID, t.Title, label, t.Priority, assignee, t.EndDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().Int64Var(&assigneeID, "assignee-id", 0, "assignee filter")
	cmd.Flags().StringVar(&keyword, "keyword", "", "keyword filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				t, err := e.repo.GetTask(ctx, e.project.ID, id)
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, status, priority, startDate, endDate string
	var assigneeID int64
	var unassign bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				t, err := e.repo.GetTask(ctx, e.project.ID, id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("title") {
					t.Title = title
				}
				if cmd.Flags().Changed("description") {
					t.Description = description
				}
				if cmd.Flags().Changed("status") {
					st := domain.Status(status)
					if !st.Valid() {
						return fmt.Errorf("unknown status %q", status)
					}
					t.Status = st
				}
				if cmd.Flags().Changed("priority") {
					pr := domain.Priority(priority)
					if !pr.Valid() {
						return fmt.Errorf("unknown priority %q", priority)
					}
					t.Priority = pr
				}
				if cmd.Flags().Changed("start-date") {
					t.StartDate = startDate
				}
				if cmd.Flags().Changed("due") {
					t.EndDate = endDate
				}
				if unassign {
					t.AssigneeID = nil
				} else if cmd.Flags().Changed("assignee-id") {
					ok, err := e.repo.IsMember(ctx, e.project.ID, assigneeID)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("user %d is not a member of project %d", assigneeID, e.project.ID)
					}
					t.AssigneeID = &assigneeID
				}
				t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
				if err := e.repo.UpdateTask(ctx, t); err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&assigneeID, "assignee-id", 0, "assignee user id")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "clear assignee")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				return e.repo.DeleteTask(ctx, e.project.ID, id)
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				counts, err := e.repo.CountTasksByStatus(ctx, e.project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"project_id":  e.project.ID,
						"name":        e.project.Name,
						"methodology": e.project.Methodology,
						"task_counts": counts,
					})
				}
				fmt.Printf("Project: %s (%s)\n", e.project.Name, e.project.Methodology)
				fmt.Println("Tasks:")
				for _, st := range domain.Statuses() {
					fmt.Printf("  %s: %d\n", assistant.PhaseLabel(e.project.Methodology, st), counts[st])
				}
				return nil
			})
		},
	}
	return cmd
}

func askCmd() *cobra.Command {
	var session string
	var yes bool
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Talk to the project assistant",
		Long:  "Ask questions or give commands in plain language. Mutations come back as a plan; confirm with y or pass --yes.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			if session == "" {
				session = uuid.NewString()
			}
			return withAssistant(cmd.Context(), func(ctx context.Context, e env, svc *assistant.Service) error {
				resp, err := svc.ProcessMessage(ctx, e.project, session, message, e.actor.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(resp)
				}
				fmt.Println(resp.Message)
				if !resp.RequiresConfirmation || resp.CommandData == nil {
					return nil
				}
				if !yes && !confirm("Proceed? [y/N] ") {
					fmt.Println("Cancelled.")
					return nil
				}
				out, err := svc.ExecuteCommand(ctx, e.project, session, resp.CommandData, e.actor.ID)
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "conversation session id (random if omitted)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "execute without confirmation prompt")
	return cmd
}

func execCmd() *cobra.Command {
	var session, planJSON string
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute an assistant plan",
		Long:  "Run a command plan previously returned by 'tb ask --json' (its command_data field). Pass the JSON via --plan or on stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := planJSON
			if raw == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				raw = string(data)
			}
			var plan assistant.CommandPlan
			if err := json.Unmarshal([]byte(raw), &plan); err != nil {
				return fmt.Errorf("invalid plan JSON: %w", err)
			}
			return withAssistant(cmd.Context(), func(ctx context.Context, e env, svc *assistant.Service) error {
				out, err := svc.ExecuteCommand(ctx, e.project, session, &plan, e.actor.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"message": out})
				}
				fmt.Println(out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "conversation session id to record the outcome under")
	cmd.Flags().StringVar(&planJSON, "plan", "", "command plan JSON (reads stdin if omitted)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	var evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e env) error {
				events, err := e.repo.LatestEvents(ctx, n, e.project.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(events)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	log.AddCommand(tail)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			secret := os.Getenv("TASKBOARD_JWT_SECRET")
			if secret == "" && !allowLegacy {
				return fmt.Errorf("TASKBOARD_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor-header)")
			}
			var llm assistant.CompletionClient
			if cfg.Assistant.Enabled {
				if key := cfg.APIKey(); key != "" {
					llm = assistant.NewOpenAIClient(key, cfg.Assistant.Model)
				}
			}
			handler, err := server.New(server.Config{
				DB:        conn,
				Assistant: assistant.New(conn, cfg, llm, logger),
				AppConfig: cfg,
				BasePath:  basePath,
				Auth: server.AuthConfig{
					JWTSecret:              secret,
					AllowLegacyActorHeader: allowLegacy,
					Logger:                 logger,
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskboard API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id without a token (dev only)")
	return cmd
}

// --- helpers ---

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
