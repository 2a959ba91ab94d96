package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// --- users ---

func (r Repo) InsertUser(ctx context.Context, u domain.User) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users(name,email,created_at) VALUES (?,?,?)`,
		u.Name, u.Email, u.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,created_at FROM users WHERE lower(email)=lower(?)`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// --- projects ---

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var desc, start, end sql.NullString
	err := row.Scan(&p.ID, &p.Name, &desc, &start, &end, &p.Methodology, &p.CreatorID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Description = desc.String
	p.StartDate = start.String
	p.EndDate = end.String
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO projects(name,description,start_date,end_date,methodology,creator_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.Name, nullable(p.Description), nullable(p.StartDate), nullable(p.EndDate), p.Methodology, p.CreatorID, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx,
		`SELECT id,name,description,start_date,end_date,methodology,creator_id,created_at FROM projects WHERE id=?`, id))
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,description,start_date,end_date,methodology,creator_id,created_at FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var desc, start, end sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &start, &end, &p.Methodology, &p.CreatorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		p.StartDate = start.String
		p.EndDate = end.String
		res = append(res, p)
	}
	return res, rows.Err()
}

// ProjectUpdate carries the mutable project fields; nil means leave unchanged.
type ProjectUpdate struct {
	Name        *string
	Description *string
	StartDate   *string
	EndDate     *string
	Methodology *string
}

func (r Repo) UpdateProject(ctx context.Context, id int64, u ProjectUpdate) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*u.Description))
	}
	if u.StartDate != nil {
		fields = append(fields, "start_date=?")
		args = append(args, nullable(*u.StartDate))
	}
	if u.EndDate != nil {
		fields = append(fields, "end_date=?")
		args = append(args, nullable(*u.EndDate))
	}
	if u.Methodology != nil {
		fields = append(fields, "methodology=?")
		args = append(args, *u.Methodology)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- members ---

func (r Repo) AddMember(ctx context.Context, projectID, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id,user_id) VALUES (?,?)`, projectID, userID)
	return err
}

func (r Repo) RemoveMember(ctx context.Context, projectID, userID int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMembers returns the project's members. The creator is not implicitly
// included; callers that need the full candidate set prepend the owner.
func (r Repo) ListMembers(ctx context.Context, projectID int64) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT u.id,u.name,u.email,u.created_at
FROM project_members m JOIN users u ON u.id=m.user_id
WHERE m.project_id=? ORDER BY u.name`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// IsMember reports whether the user is the project creator or a member.
func (r Repo) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id=? AND creator_id=?
UNION SELECT 1 FROM project_members WHERE project_id=? AND user_id=? LIMIT 1`,
		projectID, userID, projectID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
