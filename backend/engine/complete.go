package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jghoshh/taskvibe/backend/models"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
)

// CompleteResult describes what a completion or un-completion did.
type CompleteResult struct {
	Task        *models.Task        `json:"task"`
	XPDelta     int                 `json:"xpDelta"`
	LevelBefore int                 `json:"levelBefore"`
	LevelAfter  int                 `json:"levelAfter"`
	LevelUp     bool                `json:"levelUp"`
	Achievement *models.Achievement `json:"achievement,omitempty"`
}

// CompleteTask moves an active task to completed, books its XP on today's stats and
// the user, and unlocks a single level achievement when the level goes up.
// Completing a task that is already completed changes nothing.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID string) (*CompleteResult, error) {
	return s.setCompletion(ctx, userID, taskID, true)
}

// UncompleteTask moves a completed task back to active and takes back exactly what
// completing it gave, from the day it was completed. Achievements are kept.
func (s *Service) UncompleteTask(ctx context.Context, userID, taskID string) (*CompleteResult, error) {
	return s.setCompletion(ctx, userID, taskID, false)
}

func (s *Service) setCompletion(ctx context.Context, userID, taskID string, completed bool) (*CompleteResult, error) {
	if err := s.requireStoredUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock()
	before, err := s.store.SetTaskCompletion(ctx, taskID, userID, completed, now)
	if errors.Is(err, storage.ErrUnchanged) {
		return s.unchanged(ctx, userID, taskID)
	}
	if err != nil {
		return nil, err
	}

	// A completed task cannot change urgency, so before.Urgency is the bucket the
	// completion was booked under.
	xp := XPForUrgency(before.Urgency)
	sign := 1
	if !completed {
		sign = -1
	}
	if err := s.bookDailyStat(ctx, userID, before, now, completed, xp); err != nil {
		return nil, err
	}

	// Only completions count as activity.
	var activeAt *time.Time
	if completed {
		activeAt = &now
	}

	userBefore, userAfter, err := s.store.AdjustUserXP(ctx, userID, sign*xp, activeAt)
	if err != nil {
		return nil, fmt.Errorf("user xp: %w", err)
	}
	result := &CompleteResult{
		XPDelta:     userAfter.XP - userBefore.XP,
		LevelBefore: userBefore.Level,
		LevelAfter:  userAfter.Level,
	}

	task, err := s.store.GetTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	result.Task = task

	if completed {
		s.emit(ctx, Event{UserID: userID, Kind: EventTaskCompleted, Title: "Great job!", Message: "Task completed!", At: now})
	} else {
		s.emit(ctx, Event{UserID: userID, Kind: EventTaskRestored, Title: "Task restored", Message: "Task moved back to active list", At: now})
	}

	if completed && result.LevelAfter > result.LevelBefore {
		result.LevelUp = true
		achievement, err := s.UnlockAchievement(ctx, userID, LevelUpAchievement(result.LevelAfter))
		if err != nil {
			return nil, fmt.Errorf("level achievement: %w", err)
		}
		result.Achievement = achievement
	}

	return result, nil
}

// bookDailyStat adds a completion to today's row, or takes it back from the row of
// the day the task was completed. A missing row on that day has nothing to take back.
func (s *Service) bookDailyStat(ctx context.Context, userID string, before *models.Task, now time.Time, completed bool, xp int) error {
	if completed {
		if _, err := s.store.AdjustDailyStat(ctx, userID, models.DayStart(now), models.NewDailyStatDelta(before.Urgency, xp, 1)); err != nil {
			return fmt.Errorf("daily stats: %w", err)
		}
		return nil
	}

	day := models.DayStart(now)
	if before.CompletedAt != nil {
		day = models.DayStart(before.CompletedAt.In(s.loc))
	}
	_, err := s.store.GetDailyStat(ctx, userID, day)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("daily stats: %w", err)
	}
	if _, err := s.store.AdjustDailyStat(ctx, userID, day, models.NewDailyStatDelta(before.Urgency, xp, -1)); err != nil {
		return fmt.Errorf("daily stats: %w", err)
	}
	return nil
}

// unchanged reports a no-op transition with the task as stored.
func (s *Service) unchanged(ctx context.Context, userID, taskID string) (*CompleteResult, error) {
	task, err := s.store.GetTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	result := &CompleteResult{Task: task}
	if user, err := s.store.GetUser(ctx, userID); err == nil {
		result.LevelBefore = user.Level
		result.LevelAfter = user.Level
	}
	return result, nil
}
