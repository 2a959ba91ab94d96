package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskboard/internal/domain"
)

const taskColumns = `id,project_id,title,description,status,priority,start_date,end_date,milestone,creator_id,assignee_id,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, start, end sql.NullString
	var milestone int
	var assignee sql.NullInt64
	err := scan(&t.ID, &t.ProjectID, &t.Title, &desc, &t.Status, &t.Priority, &start, &end, &milestone, &t.CreatorID, &assignee, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Description = desc.String
	t.StartDate = start.String
	t.EndDate = end.String
	t.Milestone = milestone != 0
	if assignee.Valid {
		t.AssigneeID = &assignee.Int64
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(project_id,title,description,status,priority,start_date,end_date,milestone,creator_id,assignee_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ProjectID, t.Title, nullable(t.Description), t.Status, t.Priority, nullable(t.StartDate), nullable(t.EndDate),
		boolToInt(t.Milestone), t.CreatorID, nullableInt64Ptr(t.AssigneeID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTask fetches a task scoped to the project; ids from other projects are
// treated as absent.
func (r Repo) GetTask(ctx context.Context, projectID, id int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND project_id=?`, id, projectID)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, status=?, priority=?, start_date=?, end_date=?, milestone=?, assignee_id=?, updated_at=? WHERE id=? AND project_id=?`,
		t.Title, nullable(t.Description), t.Status, t.Priority, nullable(t.StartDate), nullable(t.EndDate),
		boolToInt(t.Milestone), nullableInt64Ptr(t.AssigneeID), t.UpdatedAt, t.ID, t.ProjectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, projectID, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND project_id=?`, id, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAllTasks(ctx context.Context, projectID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE project_id=?`, projectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) CountTasksByStatus(ctx context.Context, projectID int64) (map[domain.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.Status]int{}
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// TaskOrder constrains ORDER BY to a fixed set; the search query is assembled
// from string fragments, so this must never carry caller input verbatim.
type TaskOrder string

const (
	OrderNewestFirst  TaskOrder = "created_at DESC, id DESC"
	OrderOldestFirst  TaskOrder = "created_at ASC, id ASC"
	OrderEndDateAsc   TaskOrder = "end_date ASC, id ASC"
	OrderStartDateAsc TaskOrder = "start_date ASC, id ASC"
)

// TaskSearch is a predicate set for project-scoped task lookup. Zero values
// mean "no constraint"; the assistant's query builder decides which fields to
// populate for a given message.
type TaskSearch struct {
	ProjectID     int64
	ID            int64
	Status        domain.Status
	AssigneeID    int64
	CreatorID     int64
	MilestoneName string
	CreatedFrom   string
	CreatedTo     string
	DueFrom       string
	DueTo         string
	Keywords      []string
	Order         TaskOrder
	Limit         int
}

func (r Repo) SearchTasks(ctx context.Context, f TaskSearch) ([]domain.Task, error) {
	clauses := []string{"project_id=?"}
	args := []any{f.ProjectID}
	if f.ID > 0 {
		clauses = append(clauses, "id=?")
		args = append(args, f.ID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID > 0 {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.CreatorID > 0 {
		clauses = append(clauses, "creator_id=?")
		args = append(args, f.CreatorID)
	}
	if f.MilestoneName != "" {
		clauses = append(clauses, "milestone=1 AND lower(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.MilestoneName)+"%")
	}
	if f.CreatedFrom != "" && f.CreatedTo != "" {
		clauses = append(clauses, "created_at>=? AND created_at<=?")
		args = append(args, f.CreatedFrom, f.CreatedTo)
	}
	if f.DueFrom != "" && f.DueTo != "" {
		clauses = append(clauses, "end_date IS NOT NULL AND end_date>=? AND end_date<=?")
		args = append(args, f.DueFrom, f.DueTo)
	}
	if len(f.Keywords) > 0 {
		var kw []string
		for _, k := range f.Keywords {
			kw = append(kw, "(lower(title) LIKE ? OR lower(description) LIKE ?)")
			pat := "%" + strings.ToLower(k) + "%"
			args = append(args, pat, pat)
		}
		clauses = append(clauses, "("+strings.Join(kw, " OR ")+")")
	}
	order := f.Order
	if order == "" {
		order = OrderNewestFirst
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY %s`, taskColumns, strings.Join(clauses, " AND "), order)
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
