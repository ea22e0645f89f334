package engine

import (
	"context"
	"sort"

	"github.com/jghoshh/taskvibe/backend/models"
)

// AssignPriority returns the position a new task takes in the user's bucket: one past
// the highest priority among the incomplete tasks already there. Gaps left by
// completed or deleted tasks are never closed.
func (s *Service) AssignPriority(ctx context.Context, userID string, urgency models.Urgency) (int, error) {
	max, err := s.store.MaxPriority(ctx, userID, urgency)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// SortTasks orders tasks for display: immediate before medium before delayed, then
// ascending priority, then newest first.
func SortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if ra, rb := a.Urgency.Rank(), b.Urgency.Rank(); ra != rb {
			return ra < rb
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
