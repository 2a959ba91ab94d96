package assistant

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

// ResolveStatus maps a free-text status token to a canonical status under the
// project's methodology. Returns false for unresolvable tokens; callers never
// store the raw token.
func ResolveStatus(m domain.Methodology, token string) (domain.Status, bool) {
	if s := domain.Status(strings.ToLower(strings.TrimSpace(token))); s.Valid() {
		return s, true
	}
	return StatusForLabel(m, token)
}

var prioritySynonyms = map[string]domain.Priority{
	"critical":  domain.PriorityUrgent,
	"blocker":   domain.PriorityUrgent,
	"asap":      domain.PriorityUrgent,
	"p0":        domain.PriorityUrgent,
	"important": domain.PriorityHigh,
	"major":     domain.PriorityHigh,
	"p1":        domain.PriorityHigh,
	"normal":    domain.PriorityMedium,
	"moderate":  domain.PriorityMedium,
	"standard":  domain.PriorityMedium,
	"p2":        domain.PriorityMedium,
	"minor":     domain.PriorityLow,
	"trivial":   domain.PriorityLow,
	"lowest":    domain.PriorityLow,
	"p3":        domain.PriorityLow,
}

// ResolvePriority maps a free-text priority token to a canonical priority.
func ResolvePriority(token string) (domain.Priority, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.TrimSuffix(t, " priority")
	if p := domain.Priority(t); p.Valid() {
		return p, true
	}
	if p, ok := prioritySynonyms[t]; ok {
		return p, true
	}
	return "", false
}

// ResolveAssignee turns a free-text assignee hint into a user id, restricted
// to the project creator and members. The second return is false when the
// hint is empty or matches nobody in the project; mutating callers treat that
// as a validation failure rather than assigning to an outsider.
func (s *Service) ResolveAssignee(ctx context.Context, project domain.Project, hint string, actingUserID int64) (int64, bool, error) {
	h := strings.TrimSpace(hint)
	h = strings.TrimPrefix(h, "@")
	h = strings.TrimSuffix(h, "'s")
	h = strings.TrimSuffix(h, "’s")
	h = strings.TrimSpace(h)
	if h == "" {
		return 0, false, nil
	}

	switch strings.ToLower(h) {
	case "me", "myself", "i":
		if actingUserID <= 0 {
			return 0, false, nil
		}
		return s.memberOrNone(ctx, project, actingUserID)
	case "owner", "creator", "project owner", "project creator":
		return project.CreatorID, true, nil
	case "nobody", "no one", "unassigned":
		return 0, false, nil
	}

	if id, err := strconv.ParseInt(h, 10, 64); err == nil && id > 0 {
		return s.memberOrNone(ctx, project, id)
	}

	if strings.Contains(h, "@") {
		u, err := s.Repo.GetUserByEmail(ctx, h)
		if errors.Is(err, repo.ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return s.memberOrNone(ctx, project, u.ID)
	}

	candidates, err := s.projectUsers(ctx, project)
	if err != nil {
		return 0, false, err
	}
	low := strings.ToLower(h)
	for _, u := range candidates {
		if strings.ToLower(u.Name) == low {
			return u.ID, true, nil
		}
	}
	for _, u := range candidates {
		name := strings.ToLower(u.Name)
		if strings.Contains(name, low) || strings.Contains(low, name) {
			return u.ID, true, nil
		}
	}
	return 0, false, nil
}

func (s *Service) memberOrNone(ctx context.Context, project domain.Project, userID int64) (int64, bool, error) {
	ok, err := s.Repo.IsMember(ctx, project.ID, userID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	return userID, true, nil
}

// projectUsers returns the creator followed by the members, deduplicated.
func (s *Service) projectUsers(ctx context.Context, project domain.Project) ([]domain.User, error) {
	members, err := s.Repo.ListMembers(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	owner, err := s.Repo.GetUser(ctx, project.CreatorID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	res := make([]domain.User, 0, len(members)+1)
	if owner.ID > 0 {
		res = append(res, owner)
	}
	for _, m := range members {
		if m.ID == owner.ID {
			continue
		}
		res = append(res, m)
	}
	return res, nil
}
