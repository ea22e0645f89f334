package engine

import (
	"context"

	"github.com/jghoshh/taskvibe/backend/models"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
)

// recentAchievementCount is how many achievements the dashboard shows.
const recentAchievementCount = 3

// MaxDailyStatDays bounds the history GetDailyStats returns.
const MaxDailyStatDays = 365

// UserStats is the dashboard summary. Every field is computed on request.
type UserStats struct {
	TotalCompleted     int                  `json:"totalCompleted"`
	TodayCompleted     int                  `json:"todayCompleted"`
	ImmediateCount     int                  `json:"immediateCount"`
	MediumCount        int                  `json:"mediumCount"`
	DelayedCount       int                  `json:"delayedCount"`
	RecentAchievements []models.Achievement `json:"recentAchievements"`
}

// GetUserStats counts completed work overall and since local midnight, pending work
// per bucket, and returns the latest achievements.
func (s *Service) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	done, pending := true, false
	today := s.today()
	stats := &UserStats{}

	var err error
	if stats.TotalCompleted, err = s.store.CountTasks(ctx, storage.TaskFilter{UserID: userID, Completed: &done}); err != nil {
		return nil, err
	}
	if stats.TodayCompleted, err = s.store.CountTasks(ctx, storage.TaskFilter{UserID: userID, Completed: &done, CompletedSince: &today}); err != nil {
		return nil, err
	}

	counts := map[models.Urgency]*int{
		models.UrgencyImmediate: &stats.ImmediateCount,
		models.UrgencyMedium:    &stats.MediumCount,
		models.UrgencyDelayed:   &stats.DelayedCount,
	}
	for urgency, dst := range counts {
		u := urgency
		n, err := s.store.CountTasks(ctx, storage.TaskFilter{UserID: userID, Completed: &pending, Urgency: &u})
		if err != nil {
			return nil, err
		}
		*dst = n
	}

	if stats.RecentAchievements, err = s.store.FindAchievements(ctx, userID, recentAchievementCount); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetDailyStats returns the stored rows of the last days calendar days including
// today, oldest first. Days without completions have no row.
func (s *Service) GetDailyStats(ctx context.Context, userID string, days int) ([]models.DailyStat, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if days < 1 || days > MaxDailyStatDays {
		return nil, invalid("days", "Days must be between 1 and 365")
	}

	today := s.today()
	from := today.AddDate(0, 0, -(days - 1))
	return s.store.FindDailyStats(ctx, userID, from, today.AddDate(0, 0, 1))
}
