package repo

import (
	"context"

	"taskboard/internal/domain"
)

func (r Repo) AppendTurn(ctx context.Context, t domain.ConversationTurn) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO conversation_turns(project_id,session_id,role,content,created_at) VALUES (?,?,?,?,?)`,
		t.ProjectID, t.SessionID, t.Role, t.Content, t.CreatedAt)
	return err
}

// RecentTurns returns the last limit turns for a session, oldest first.
func (r Repo) RecentTurns(ctx context.Context, projectID int64, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 15
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,session_id,role,content,created_at
FROM conversation_turns WHERE project_id=? AND session_id=? ORDER BY id DESC LIMIT ?`,
		projectID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest-N reversed to oldest-first
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}
